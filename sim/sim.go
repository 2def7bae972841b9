package sim

import "gonum.org/v1/gonum/mat"

// InitCond is the state and covariance a simulation starts from.
type InitCond struct {
	x *mat.VecDense
	p *mat.SymDense
}

// NewInitCond copies state x and covariance p into a new InitCond.
func NewInitCond(x mat.Vector, p mat.Symmetric) *InitCond {
	return &InitCond{
		x: mat.VecDenseCopyOf(x),
		p: symCopy(p),
	}
}

// State returns a copy of the initial state.
func (c *InitCond) State() mat.Vector {
	return mat.VecDenseCopyOf(c.x)
}

// Cov returns a copy of the initial covariance.
func (c *InitCond) Cov() mat.Symmetric {
	return symCopy(c.p)
}

func symCopy(p mat.Symmetric) *mat.SymDense {
	s := mat.NewSymDense(p.SymmetricDim(), nil)
	s.CopySym(p)

	return s
}
