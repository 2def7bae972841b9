// Package cartpole simulates a linearized inverted pendulum on a cart.
//
// State is (x, dx, theta, dtheta): cart position and velocity,
// pole angle from upright and its angular velocity. Input is the force on the cart.
package cartpole

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"math"

	"github.com/milosgajdos/go-localize/internal/log"
	"github.com/milosgajdos/go-localize/sim"
	"github.com/milosgajdos/go-localize/viz"
	"gonum.org/v1/gonum/mat"
)

const (
	// BarLength is pole length [m]
	BarLength = 2.0
	// CartMass is cart mass [kg]
	CartMass = 1.0
	// BobMass is mass at the pole tip [kg]
	BobMass = 0.1
	// Gravity is gravitational acceleration [m/s^2]
	Gravity = 9.8
	// Dt is simulation time step [s]
	Dt = 0.1
	// Horizon is simulated time [s]
	Horizon = 5.0
	// Force is the default constant input
	Force = 0.2
)

const (
	cartWidth   = 1.0
	cartHeight  = 0.5
	wheelRadius = 0.1
	// wheelStep is angular sampling step of wheels in degrees
	wheelStep = 3
)

// Topic is the visualization topic prefix of cart geometry
const Topic = "control/inverted_pendulum/cart"

var colorCart = color.RGBA{B: 255, A: 255}

// InitState returns default initial state: pole tilted by 0.3 rad.
func InitState() *mat.VecDense {
	return mat.NewVecDense(4, []float64{0, 0, 0.3, 0})
}

// Discretization selects how the continuous cart-pole model is discretized
type Discretization int

const (
	// Euler uses Ad = I + A*dt; B is the per step input gain (1/M, 1/(M*L)) and is not scaled by dt
	Euler Discretization = iota
	// ZeroOrderHold uses Ad = exp(A*dt) and B integrated over the step
	ZeroOrderHold
)

// String implements the Stringer interface.
func (d Discretization) String() string {
	switch d {
	case Euler:
		return "euler"
	case ZeroOrderHold:
		return "zoh"
	default:
		return fmt.Sprintf("Discretization(%d)", int(d))
	}
}

// ParseDiscretization returns Discretization named s.
func ParseDiscretization(s string) (Discretization, error) {
	for _, d := range []Discretization{Euler, ZeroOrderHold} {
		if d.String() == s {
			return d, nil
		}
	}

	return 0, fmt.Errorf("unknown discretization: %q", s)
}

// NewModel returns the cart-pole model discretized by d with time step dt.
func NewModel(dt float64, d Discretization) (*sim.Discrete, error) {
	A := mat.NewDense(4, 4, []float64{
		0, 1, 0, 0,
		0, 0, BobMass * Gravity / CartMass, 0,
		0, 0, 0, 1,
		0, 0, Gravity * (CartMass + BobMass) / (CartMass * BarLength), 0,
	})
	B := mat.NewDense(4, 1, []float64{0, 1.0 / CartMass, 0, 1.0 / (CartMass * BarLength)})
	C := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 0, 1, 0,
	})

	ct, err := sim.NewContinuous(A, B, C, nil, nil)
	if err != nil {
		return nil, err
	}

	switch d {
	case Euler:
		return ct.Euler(dt, false)
	case ZeroOrderHold:
		return ct.ToDiscrete(dt)
	default:
		return nil, fmt.Errorf("unknown discretization: %d", int(d))
	}
}

// Shape is cart-pole geometry
type Shape struct {
	Cart       []viz.Point
	Pole       []viz.Point
	RightWheel []viz.Point
	LeftWheel  []viz.Point
	Bob        []viz.Point
}

// Part is a named polyline of the shape
type Part struct {
	Name string
	Pts  []viz.Point
}

// Parts returns shape polylines in drawing order.
func (s Shape) Parts() []Part {
	return []Part{
		{Name: "cart", Pts: s.Cart},
		{Name: "pole", Pts: s.Pole},
		{Name: "right_wheel", Pts: s.RightWheel},
		{Name: "left_wheel", Pts: s.LeftWheel},
		{Name: "bob", Pts: s.Bob},
	}
}

// Geometry returns cart-pole shape for cart position x and pole angle theta.
func Geometry(x, theta float64) (Shape, error) {
	var (
		s   Shape
		err error
	)

	base := 2 * wheelRadius
	cx := []float64{-cartWidth / 2, cartWidth / 2, cartWidth / 2, -cartWidth / 2, -cartWidth / 2}
	cy := []float64{0, 0, cartHeight, cartHeight, 0}
	for i := range cx {
		cx[i] += x
		cy[i] += base
	}
	if s.Cart, err = viz.PointsToPolyline(cx, cy); err != nil {
		return Shape{}, err
	}

	tipX := x + BarLength*math.Sin(-theta)
	tipY := BarLength*math.Cos(-theta) + cartHeight + base
	if s.Pole, err = viz.PointsToPolyline([]float64{x, tipX}, []float64{cartHeight + base, tipY}); err != nil {
		return Shape{}, err
	}

	if s.RightWheel, err = circle(x+cartWidth/4, wheelRadius); err != nil {
		return Shape{}, err
	}
	if s.LeftWheel, err = circle(x-cartWidth/4, wheelRadius); err != nil {
		return Shape{}, err
	}
	if s.Bob, err = circle(tipX, tipY); err != nil {
		return Shape{}, err
	}

	return s, nil
}

func circle(cx, cy float64) ([]viz.Point, error) {
	n := 360/wheelStep + 1
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		sin, cos := math.Sincos(float64(i*wheelStep) * math.Pi / 180.0)
		xs[i] = cx + wheelRadius*cos
		ys[i] = cy + wheelRadius*sin
	}

	return viz.PointsToPolyline(xs, ys)
}

// Run propagates the cart-pole model m from x0 under constant force u until Horizon
// and sends its geometry to sink every step. sink may be nil.
// It returns the states of every step, x0 included.
func Run(ctx context.Context, m *sim.Discrete, x0 mat.Vector, u float64, sink viz.Sink, logger *slog.Logger) ([]mat.Vector, error) {
	if m == nil {
		return nil, fmt.Errorf("nil cart-pole model")
	}

	if logger == nil {
		logger = log.L()
	}

	if sink != nil {
		sink = viz.Isolate(sink, logger)
	}

	steps := int(math.Round(Horizon / Dt))
	states := make([]mat.Vector, 0, steps+1)
	states = append(states, x0)

	in := mat.NewVecDense(1, []float64{u})
	var err error
	x := x0
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if x, err = m.Propagate(x, in, nil); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		states = append(states, x)

		logger.Debug("cartpole", "step", i, "x", x.AtVec(0), "theta", x.AtVec(2))

		if sink == nil {
			continue
		}

		shape, err := Geometry(x.AtVec(0), x.AtVec(2))
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		t := float64(i+1) * Dt
		for _, part := range shape.Parts() {
			_ = sink.Record(Topic+"/"+part.Name, t, viz.Polyline{Pts: part.Pts, Color: colorCart})
		}
	}

	return states, nil
}
