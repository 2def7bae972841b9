package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// System is a linear time-invariant plant in state space form:
//
//	x' = A*x + B*u + E*z
//	y  = C*x + D*u
//
// Only A is mandatory. E is carried for dimension bookkeeping; disturbances are passed
// to Propagate directly as state noise.
type System struct {
	// A maps state to state
	A *mat.Dense
	// B maps input to state
	B *mat.Dense
	// C maps state to output
	C *mat.Dense
	// D maps input to output
	D *mat.Dense
	// E maps disturbances to state
	E *mat.Dense
}

// newSystem returns System holding copies of the given matrices.
func newSystem(A, B, C, D, E *mat.Dense) System {
	return System{
		A: denseCopy(A),
		B: denseCopy(B),
		C: denseCopy(C),
		D: denseCopy(D),
		E: denseCopy(E),
	}
}

func denseCopy(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}

	return mat.DenseCopyOf(m)
}

// SystemDims returns lengths of state (nx), input (nu), output (ny) and disturbance (nz) vectors.
// Dimensions of missing matrices are zero.
func (s System) SystemDims() (nx, nu, ny, nz int) {
	nx, _ = s.A.Dims()
	if s.B != nil {
		_, nu = s.B.Dims()
	}
	if s.C != nil {
		ny, _ = s.C.Dims()
	}
	if s.E != nil {
		_, nz = s.E.Dims()
	}

	return nx, nu, ny, nz
}

// SystemMatrix returns A.
func (s System) SystemMatrix() mat.Matrix { return s.A }

// ControlMatrix returns B or nil.
func (s System) ControlMatrix() mat.Matrix { return orNil(s.B) }

// OutputMatrix returns C or nil.
func (s System) OutputMatrix() mat.Matrix { return orNil(s.C) }

// FeedForwardMatrix returns D or nil.
func (s System) FeedForwardMatrix() mat.Matrix { return orNil(s.D) }

// orNil keeps a nil *mat.Dense from turning into a non-nil mat.Matrix.
func orNil(m *mat.Dense) mat.Matrix {
	if m == nil {
		return nil
	}

	return m
}

// Observe returns output C*x + D*u for state x and input u; wn is added as output noise
// when its length matches the output. It returns error if the system has no C
// or x and u have wrong dimensions.
func (s System) Observe(x, u, wn mat.Vector) (mat.Vector, error) {
	if s.C == nil {
		return nil, fmt.Errorf("system has no output matrix")
	}

	nx, nu, ny, _ := s.SystemDims()
	if x == nil || x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	if u != nil && u.Len() != nu {
		return nil, fmt.Errorf("invalid input vector")
	}

	y := &mat.VecDense{}
	y.MulVec(s.C, x)

	if u != nil && s.D != nil {
		du := &mat.VecDense{}
		du.MulVec(s.D, u)
		y.AddVec(y, du)
	}

	if wn != nil && wn.Len() == ny {
		y.AddVec(y, wn)
	}

	return y, nil
}
