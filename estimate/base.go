package estimate

import (
	"fmt"

	"github.com/milosgajdos/go-localize/matrix"
	"gonum.org/v1/gonum/mat"
)

// Base is an immutable state estimate: value and its covariance.
type Base struct {
	x *mat.VecDense
	p *mat.SymDense
}

// NewBaseWithCov copies value x and covariance p into a new estimate.
// It returns error if either is missing, their dimensions differ
// or they contain NaN or Inf values.
func NewBaseWithCov(x mat.Vector, p mat.Symmetric) (*Base, error) {
	if x == nil || p == nil {
		return nil, fmt.Errorf("missing estimate value or covariance")
	}

	if n, m := x.Len(), p.SymmetricDim(); n != m {
		return nil, fmt.Errorf("invalid dimensions: value %d, covariance %d x %d", n, m, m)
	}

	if !matrix.IsFinite(x) || !matrix.IsFinite(p) {
		return nil, fmt.Errorf("estimate contains non-finite values")
	}

	pc := mat.NewSymDense(p.SymmetricDim(), nil)
	pc.CopySym(p)

	return &Base{
		x: mat.VecDenseCopyOf(x),
		p: pc,
	}, nil
}

// Val returns a copy of the estimated value.
func (b *Base) Val() mat.Vector {
	return mat.VecDenseCopyOf(b.x)
}

// Cov returns a copy of the estimate covariance.
func (b *Base) Cov() mat.Symmetric {
	p := mat.NewSymDense(b.p.SymmetricDim(), nil)
	p.CopySym(b.p)

	return p
}
