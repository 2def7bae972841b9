package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// StateDim is the length of the unicycle state vector: x, y, yaw, v
	StateDim = 4
	// InputDim is the length of the control vector: v, yawrate
	InputDim = 2
	// OutputDim is the length of the observation vector: x, y
	OutputDim = 2
)

// Unicycle is a discrete-time planar unicycle model observed through its position.
//
//	x[n+1] = F*x[n] + B(x[n])*u[n]
//	z[n]   = H*x[n]
//
// The state is (x, y, yaw, v) and the control input is (v, yawrate).
type Unicycle struct {
	// Dt is the time step in seconds
	Dt float64
}

// NewUnicycle creates new Unicycle model advanced by time step dt.
// It returns error if dt is not positive.
func NewUnicycle(dt float64) (*Unicycle, error) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("invalid time step: %v", dt)
	}

	return &Unicycle{Dt: dt}, nil
}

// Propagate propagates state x to the next step given control input u.
// q is added to the new state as process noise if its length matches the state length.
//
// The velocity of x is not carried over: F has a zero in its velocity slot
// and the next velocity is taken entirely from the control input.
// This is a modelling choice, not an oversight.
func (m *Unicycle) Propagate(x, u, q mat.Vector) (mat.Vector, error) {
	if err := checkDims(x, u); err != nil {
		return nil, err
	}

	yaw := x.AtVec(2)
	v, yawRate := u.AtVec(0), u.AtVec(1)

	out := mat.NewVecDense(StateDim, []float64{
		x.AtVec(0) + m.Dt*math.Cos(yaw)*v,
		x.AtVec(1) + m.Dt*math.Sin(yaw)*v,
		yaw + m.Dt*yawRate,
		v,
	})

	if q != nil && q.Len() == StateDim {
		out.AddVec(out, q)
	}

	return out, nil
}

// Observe returns the position (x, y) of state x.
// r is added to the output as measurement noise if its length matches the output length.
func (m *Unicycle) Observe(x, u, r mat.Vector) (mat.Vector, error) {
	if x == nil || x.Len() != StateDim {
		return nil, fmt.Errorf("invalid state vector")
	}

	out := &mat.VecDense{}
	out.MulVec(outputMatrix, x)

	if r != nil && r.Len() == OutputDim {
		out.AddVec(out, r)
	}

	return out, nil
}

// StateJacobian returns Jacobian of Propagate with respect to the state, evaluated at x and u.
// The velocity column uses the velocity of the control input u.
func (m *Unicycle) StateJacobian(x, u mat.Vector) (*mat.Dense, error) {
	if err := checkDims(x, u); err != nil {
		return nil, err
	}

	yaw := x.AtVec(2)
	v := u.AtVec(0)
	sin, cos := math.Sincos(yaw)

	return mat.NewDense(StateDim, StateDim, []float64{
		1.0, 0.0, -m.Dt * v * sin, m.Dt * cos,
		0.0, 1.0, m.Dt * v * cos, m.Dt * sin,
		0.0, 0.0, 1.0, 0.0,
		0.0, 0.0, 0.0, 1.0,
	}), nil
}

// OutputJacobian returns Jacobian of Observe which is the constant output matrix.
func (m *Unicycle) OutputJacobian(x, u mat.Vector) (*mat.Dense, error) {
	return mat.DenseCopyOf(outputMatrix), nil
}

// SystemDims returns state, input, output and disturbance dimensions.
func (m *Unicycle) SystemDims() (nx, nu, ny, nz int) {
	return StateDim, InputDim, OutputDim, 0
}

var outputMatrix = mat.NewDense(OutputDim, StateDim, []float64{
	1.0, 0.0, 0.0, 0.0,
	0.0, 1.0, 0.0, 0.0,
})

func checkDims(x, u mat.Vector) error {
	if x == nil || x.Len() != StateDim {
		return fmt.Errorf("invalid state vector")
	}

	if u == nil || u.Len() != InputDim {
		return fmt.Errorf("invalid input vector")
	}

	return nil
}
