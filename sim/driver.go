package sim

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/config"
	"github.com/milosgajdos/go-localize/estimate"
	"github.com/milosgajdos/go-localize/internal/log"
	"github.com/milosgajdos/go-localize/kalman"
	"github.com/milosgajdos/go-localize/kalman/ekf"
	"github.com/milosgajdos/go-localize/matrix"
	"github.com/milosgajdos/go-localize/model"
	"github.com/milosgajdos/go-localize/noise"
	"github.com/milosgajdos/go-localize/viz"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Visualization topics
const (
	TopicGroundTruth   = "localization/extended_kalman_filter/ground_truth"
	TopicObservation   = "localization/extended_kalman_filter/observation"
	TopicDeadReckoning = "localization/extended_kalman_filter/dead_reckoning"
	TopicEKF           = "localization/extended_kalman_filter/ekf_path"
	TopicCovariance    = "localization/extended_kalman_filter/pest"
)

var (
	colorObservation   = color.RGBA{G: 255, A: 255}
	colorDeadReckoning = color.RGBA{R: 10, G: 50, B: 100, A: 255}
	colorEKF           = color.RGBA{R: 255, A: 255}
)

// observationRadius is the scatter radius of observations
const observationRadius = 0.02

// ErrAlreadyRun is returned when Run is called more than once
var ErrAlreadyRun = errors.New("driver already run")

// ControlFunc returns control input (v, yawrate) at simulation time t
type ControlFunc func(t float64) mat.Vector

// Option configures Driver
type Option func(*Driver)

// WithSink sets visualization sink. Sink failures are logged and never stop the run.
func WithSink(s viz.Sink) Option {
	return func(d *Driver) {
		d.sink = s
	}
}

// WithLogger sets driver logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithSamplers sets standard normal samplers of GPS and input noise.
// A nil sampler falls back to the seeded default.
func WithSamplers(gps, input filter.Sampler) Option {
	return func(d *Driver) {
		d.gpsSrc = gps
		d.inputSrc = input
	}
}

// WithControl sets control policy. Constant control from config is used by default.
func WithControl(c ControlFunc) Option {
	return func(d *Driver) {
		d.control = c
	}
}

// Trajectory is an ordered sequence of planar positions
type Trajectory []viz.Point

// Result is the outcome of a simulation run
type Result struct {
	// Times stores elapsed time of each trajectory point
	Times []float64
	// GroundTruth is true robot trajectory
	GroundTruth Trajectory
	// Observations are noisy position fixes; the first point is the initial position
	Observations Trajectory
	// DeadReckoning is trajectory integrated from noisy control only
	DeadReckoning Trajectory
	// Estimates is EKF trajectory
	Estimates Trajectory
	// EstimateErrors stores EKF position error of each point
	EstimateErrors []float64
	// DeadReckoningErrors stores dead reckoning position error of each point
	DeadReckoningErrors []float64
	// Truth is final true state
	Truth mat.Vector
	// DeadReckoned is final dead reckoning state
	DeadReckoned mat.Vector
	// Estimate is final EKF estimate
	Estimate filter.Estimate
	// SinkErrors counts failed visualization records
	SinkErrors int
}

// RMSE returns root mean square position error of EKF and dead reckoning.
func (r *Result) RMSE() (est, dr float64) {
	return rmse(r.EstimateErrors), rmse(r.DeadReckoningErrors)
}

func rmse(e []float64) float64 {
	if len(e) == 0 {
		return 0
	}

	return math.Sqrt(floats.Dot(e, e) / float64(len(e)))
}

// Driver runs localization simulation: it propagates ground truth, dead reckoning
// and EKF estimate tick by tick. Driver runs exactly once.
type Driver struct {
	cfg      *config.Config
	model    *model.Unicycle
	filter   kalman.Kalman
	gps      filter.Noise
	input    filter.Noise
	truth    filter.Noise
	gpsSrc   filter.Sampler
	inputSrc filter.Sampler
	control  ControlFunc
	sink     viz.Sink
	isoSink  *viz.Isolated
	logger   *slog.Logger
	init     filter.InitCond
	ran      bool
}

// NewDriver creates new simulation driver configured by cfg.
// It returns error if cfg is invalid or the filter can't be created.
func NewDriver(cfg *config.Config, opts ...Option) (*Driver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalid)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Driver{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = log.L()
	}

	// both noise sources share one seeded stream unless overridden
	if d.gpsSrc == nil || d.inputSrc == nil {
		src := noise.NewNormal(cfg.Seed)
		if d.gpsSrc == nil {
			d.gpsSrc = src
		}
		if d.inputSrc == nil {
			d.inputSrc = src
		}
	}

	if d.control == nil {
		u := mat.NewVecDense(model.InputDim, []float64{cfg.Control.Velocity, cfg.Control.YawRate})
		d.control = func(float64) mat.Vector { return u }
	}

	m, err := model.NewUnicycle(cfg.Dt)
	if err != nil {
		return nil, err
	}
	d.model = m

	f, err := ekf.New(m, cfg.Q(), cfg.R())
	if err != nil {
		return nil, fmt.Errorf("create filter: %w", err)
	}
	d.filter = f

	if d.gps, err = noise.NewGaussian(cfg.GPSNoise(), d.gpsSrc); err != nil {
		return nil, fmt.Errorf("%w: gps noise: %v", config.ErrInvalid, err)
	}

	if d.input, err = noise.NewGaussian(cfg.InputNoise(), d.inputSrc); err != nil {
		return nil, fmt.Errorf("%w: input noise: %v", config.ErrInvalid, err)
	}

	// ground truth is propagated without process noise
	d.truth = noise.NewNone()

	if d.sink != nil {
		d.isoSink = viz.Isolate(d.sink, d.logger)
	}

	d.init = NewInitCond(mat.NewVecDense(model.StateDim, nil), matrix.Diag(1, 1, 1, 1))

	return d, nil
}

// Filter returns the driver's filter.
func (d *Driver) Filter() kalman.Kalman {
	return d.filter
}

// Run runs the simulation for the configured number of ticks and returns its result.
// It returns error if the filter fails numerically or ctx is cancelled; the run is then halted.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if d.ran {
		return nil, ErrAlreadyRun
	}
	d.ran = true

	xTrue := d.init.State()
	xDR := d.init.State()
	var est filter.Estimate
	est, err := estimate.NewBaseWithCov(d.init.State(), d.init.Cov())
	if err != nil {
		return nil, err
	}

	n := d.cfg.Ticks + 1
	res := &Result{
		Times:               make([]float64, 0, n),
		GroundTruth:         make(Trajectory, 0, n),
		Observations:        make(Trajectory, 0, n),
		DeadReckoning:       make(Trajectory, 0, n),
		Estimates:           make(Trajectory, 0, n),
		EstimateErrors:      make([]float64, 0, n),
		DeadReckoningErrors: make([]float64, 0, n),
	}
	res.append(0, xTrue, xTrue.AtVec(0), xTrue.AtVec(1), xDR, est.Val())

	d.logger.Info("simulation started", "ticks", d.cfg.Ticks, "dt", d.cfg.Dt, "seed", d.cfg.Seed)

	for i := 0; i < d.cfg.Ticks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("tick %d: %w", i, err)
		}

		t := float64(i) * d.cfg.Dt
		u := d.control(t)

		xTrue, err = d.model.Propagate(xTrue, u, d.truth.Sample())
		if err != nil {
			return nil, fmt.Errorf("tick %d: ground truth: %w", i, err)
		}

		z, err := d.model.Observe(xTrue, u, d.gps.Sample())
		if err != nil {
			return nil, fmt.Errorf("tick %d: observation: %w", i, err)
		}

		ud := &mat.VecDense{}
		ud.AddVec(u, d.input.Sample())

		xDR, err = d.model.Propagate(xDR, ud, nil)
		if err != nil {
			return nil, fmt.Errorf("tick %d: dead reckoning: %w", i, err)
		}

		// the filter only sees noisy control and noisy observation
		est, err = d.filter.Run(est.Val(), est.Cov(), ud, z)
		if err != nil {
			d.logger.Error("filter failed", "tick", i, "err", err)
			return nil, fmt.Errorf("tick %d: %w", i, err)
		}

		res.append(float64(i+1)*d.cfg.Dt, xTrue, z.AtVec(0), z.AtVec(1), xDR, est.Val())
		d.logger.Debug("tick",
			"tick", i,
			"x", est.Val().AtVec(0),
			"y", est.Val().AtVec(1),
			"yaw", est.Val().AtVec(2),
			"err", res.EstimateErrors[len(res.EstimateErrors)-1],
		)

		d.emit(t, res, est)
	}

	res.Truth = xTrue
	res.DeadReckoned = xDR
	res.Estimate = est
	if d.isoSink != nil {
		res.SinkErrors = d.isoSink.Failures()
	}

	estRMSE, drRMSE := res.RMSE()
	d.logger.Info("simulation finished", "ekf_rmse", estRMSE, "dr_rmse", drRMSE, "sink_errors", res.SinkErrors)

	return res, nil
}

func (r *Result) append(t float64, xTrue mat.Vector, zx, zy float64, xDR, xEst mat.Vector) {
	truth := viz.Point{X: xTrue.AtVec(0), Y: xTrue.AtVec(1)}
	dr := viz.Point{X: xDR.AtVec(0), Y: xDR.AtVec(1)}
	est := viz.Point{X: xEst.AtVec(0), Y: xEst.AtVec(1)}

	r.Times = append(r.Times, t)
	r.GroundTruth = append(r.GroundTruth, truth)
	r.Observations = append(r.Observations, viz.Point{X: zx, Y: zy})
	r.DeadReckoning = append(r.DeadReckoning, dr)
	r.Estimates = append(r.Estimates, est)
	r.EstimateErrors = append(r.EstimateErrors, math.Hypot(est.X-truth.X, est.Y-truth.Y))
	r.DeadReckoningErrors = append(r.DeadReckoningErrors, math.Hypot(dr.X-truth.X, dr.Y-truth.Y))
}

// emit sends the current trajectories and covariance ellipse to the sink.
func (d *Driver) emit(t float64, res *Result, est filter.Estimate) {
	if d.isoSink == nil {
		return
	}

	// capped slices: sinks can't append into the result's backing arrays
	n := len(res.GroundTruth)
	_ = d.isoSink.Record(TopicGroundTruth, t, viz.Path{Pts: res.GroundTruth[:n:n]})
	_ = d.isoSink.Record(TopicObservation, t, viz.Scatter{
		Pts:    res.Observations[:n:n],
		Color:  colorObservation,
		Radius: observationRadius,
	})
	_ = d.isoSink.Record(TopicDeadReckoning, t, viz.Polyline{Pts: res.DeadReckoning[:n:n], Color: colorDeadReckoning})
	_ = d.isoSink.Record(TopicEKF, t, viz.Polyline{Pts: res.Estimates[:n:n], Color: colorEKF})

	x := est.Val()
	e, err := viz.CovarianceEllipse(x.AtVec(0), x.AtVec(1), positionCov(est.Cov()), d.cfg.Chi)
	if err != nil {
		d.logger.Warn("covariance ellipse failed", "time", t, "err", err)
		return
	}
	_ = d.isoSink.Record(TopicCovariance, t, viz.Polyline{Pts: e.Polyline(), Color: colorEKF})
}

// positionCov returns the position block of state covariance p.
func positionCov(p mat.Symmetric) *mat.SymDense {
	return mat.NewSymDense(2, []float64{
		p.At(0, 0), p.At(0, 1),
		p.At(1, 0), p.At(1, 1),
	})
}
