package viz

import (
	"fmt"
	"image/color"
	"path"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot keeps the latest payload of every topic and renders them into an image on Flush.
type Plot struct {
	mu     sync.Mutex
	file   string
	title  string
	width  vg.Length
	height vg.Length
	topics []string
	latest map[string]Payload
}

// NewPlot creates new plot sink which renders into file.
// The image format is derived from the file extension.
func NewPlot(file, title string) *Plot {
	return &Plot{
		file:   file,
		title:  title,
		width:  6 * vg.Inch,
		height: 6 * vg.Inch,
		latest: make(map[string]Payload),
	}
}

// Record stores p as the latest payload of topic.
func (p *Plot) Record(topic string, ts float64, payload Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.latest[topic]; !ok {
		p.topics = append(p.topics, topic)
	}
	p.latest[topic] = payload

	return nil
}

// Flush renders the latest payloads and saves the image.
func (p *Plot) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	plt := plot.New()
	plt.Title.Text = p.title
	plt.X.Label.Text = "X [m]"
	plt.Y.Label.Text = "Y [m]"
	plt.Legend.Top = true

	for _, topic := range p.topics {
		payload := p.latest[topic]
		xys := make(plotter.XYs, len(payload.Points()))
		for i, pt := range payload.Points() {
			xys[i].X, xys[i].Y = pt.X, pt.Y
		}

		name := path.Base(topic)
		switch v := payload.(type) {
		case Scatter:
			s, err := plotter.NewScatter(xys)
			if err != nil {
				return fmt.Errorf("topic %s: %w", topic, err)
			}
			s.GlyphStyle.Color = v.Color
			s.GlyphStyle.Radius = vg.Points(1)
			plt.Add(s)
			plt.Legend.Add(name, s)
		case Polyline:
			if err := addLine(plt, name, xys, v.Color); err != nil {
				return fmt.Errorf("topic %s: %w", topic, err)
			}
		default:
			if err := addLine(plt, name, xys, color.Black); err != nil {
				return fmt.Errorf("topic %s: %w", topic, err)
			}
		}
	}

	return plt.Save(p.width, p.height, p.file)
}

func addLine(plt *plot.Plot, name string, xys plotter.XYs, c color.Color) error {
	l, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	l.LineStyle.Color = c
	plt.Add(l)
	plt.Legend.Add(name, l)

	return nil
}
