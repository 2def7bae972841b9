package sim

import (
	"fmt"
	"image/color"

	"github.com/milosgajdos/go-localize/viz"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// New2DPlot creates new plot of the simulation result res:
// ground truth:   blue line
// observations:   green scatter
// dead reckoning: dark line
// ekf:            red line
// covariance:     red ellipse of the final estimate scaled by chi
// It returns error if res is nil or empty, or gonum plot fails to be created.
func New2DPlot(res *Result, chi float64) (*plot.Plot, error) {
	if res == nil || len(res.GroundTruth) == 0 {
		return nil, fmt.Errorf("invalid result supplied")
	}

	p := plot.New()

	p.Title.Text = "EKF localization"
	p.X.Label.Text = "X [m]"
	p.Y.Label.Text = "Y [m]"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	obs, err := plotter.NewScatter(res.Observations.XYs())
	if err != nil {
		return nil, err
	}
	obs.GlyphStyle.Color = colorObservation
	obs.GlyphStyle.Radius = vg.Points(1)
	p.Add(obs)
	p.Legend.Add("observation", obs)

	lines := []struct {
		name  string
		traj  Trajectory
		color color.Color
	}{
		{"ground truth", res.GroundTruth, color.RGBA{B: 255, A: 255}},
		{"dead reckoning", res.DeadReckoning, colorDeadReckoning},
		{"ekf", res.Estimates, colorEKF},
	}

	for _, l := range lines {
		line, err := plotter.NewLine(l.traj.XYs())
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", l.name, err)
		}
		line.LineStyle.Color = l.color
		line.LineStyle.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(l.name, line)
	}

	if res.Estimate == nil {
		return p, nil
	}

	x := res.Estimate.Val()
	e, err := viz.CovarianceEllipse(x.AtVec(0), x.AtVec(1), positionCov(res.Estimate.Cov()), chi)
	if err != nil {
		return nil, err
	}

	ellipse, err := plotter.NewLine(Trajectory(e.Polyline()).XYs())
	if err != nil {
		return nil, err
	}
	ellipse.LineStyle.Color = colorEKF
	ellipse.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(ellipse)
	p.Legend.Add("covariance", ellipse)

	return p, nil
}

// XYs returns t as gonum plot points.
func (t Trajectory) XYs() plotter.XYs {
	pts := make(plotter.XYs, len(t))
	for i := range t {
		pts[i].X = t[i].X
		pts[i].Y = t[i].Y
	}

	return pts
}
