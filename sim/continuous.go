package sim

import (
	"fmt"

	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// integrationSteps is number of quadrature steps used to discretize B of singular systems
const integrationSteps = 100

// Continuous is a basic model of a linear, continuous-time, dynamical system
//
//	dx/dt = A*x + B*u
//	y = C*x + D*u
type Continuous struct {
	System
}

// NewContinuous creates a linear continuous-time model.
func NewContinuous(A, B, C, D, E *mat.Dense) (*Continuous, error) {
	if A == nil {
		return nil, fmt.Errorf("system matrix must be defined for a model")
	}

	if r, c := A.Dims(); r != c {
		return nil, fmt.Errorf("system matrix must be square: [%d x %d]", r, c)
	}

	return &Continuous{System: newSystem(A, B, C, D, E)}, nil
}

// ToDiscrete converts the model to discrete-time with zero-order hold and sampling time ts.
//
//	Ad = exp(A*ts)
//	Bd = integrate(exp(A*t), 0, ts) * B
func (ct *Continuous) ToDiscrete(ts float64) (*Discrete, error) {
	if ts <= 0 {
		return nil, fmt.Errorf("invalid sampling time: %v", ts)
	}

	nx, _, _, _ := ct.SystemDims()
	dsys := newSystem(ct.A, ct.B, ct.C, ct.D, ct.E)

	dsys.A.Scale(ts, dsys.A)
	dsys.A.Exp(dsys.A)

	if ct.B == nil {
		return &Discrete{dsys}, nil
	}

	eye, err := matrix.NewDenseValIdentity(nx, 1.0)
	if err != nil {
		return nil, err
	}

	aux := mat.NewDense(nx, nx, nil)
	aInv := mat.NewDense(nx, nx, nil)
	if err := aInv.Inverse(ct.A); err == nil {
		// Bd = (exp(A*ts) - I) * inv(A) * B
		aux.Sub(dsys.A, eye)
		aux.Mul(aux, aInv)
		dsys.B.Mul(aux, ct.B)
		return &Discrete{dsys}, nil
	}

	// A is singular: integrate exp(A*t) numerically with the trapezoidal rule
	sum := mat.NewDense(nx, nx, nil)
	dt := ts / float64(integrationSteps)
	for i := 0; i <= integrationSteps; i++ {
		aux.Scale(dt*float64(i), ct.A)
		aux.Exp(aux)
		w := dt
		if i == 0 || i == integrationSteps {
			w = dt / 2
		}
		aux.Scale(w, aux)
		sum.Add(sum, aux)
	}
	dsys.B.Mul(sum, ct.B)

	return &Discrete{dsys}, nil
}

// Euler converts the model to discrete-time with forward Euler: Ad = I + A*ts.
// B is scaled by ts unless scaleB is false, in which case B is taken
// as the per-step input gain.
func (ct *Continuous) Euler(ts float64, scaleB bool) (*Discrete, error) {
	if ts <= 0 {
		return nil, fmt.Errorf("invalid sampling time: %v", ts)
	}

	nx, _, _, _ := ct.SystemDims()
	eye, err := matrix.NewDenseValIdentity(nx, 1.0)
	if err != nil {
		return nil, err
	}

	dsys := newSystem(ct.A, ct.B, ct.C, ct.D, ct.E)
	dsys.A.Scale(ts, dsys.A)
	dsys.A.Add(dsys.A, eye)

	if dsys.B != nil && scaleB {
		dsys.B.Scale(ts, dsys.B)
	}

	return &Discrete{dsys}, nil
}
