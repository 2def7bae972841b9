package noise

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Zero is noise of fixed length whose samples are all zeros.
// Numerical Jacobians use it to evaluate models without perturbation.
type Zero struct {
	n int
}

// NewZero creates zero noise of length n.
// It returns error if n is not positive.
func NewZero(n int) (*Zero, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid noise dimension: %d", n)
	}

	return &Zero{n: n}, nil
}

// Sample returns a vector of n zeros.
func (z *Zero) Sample() mat.Vector {
	return mat.NewVecDense(z.n, nil)
}

// Cov returns n x n zero matrix.
func (z *Zero) Cov() mat.Symmetric {
	return mat.NewSymDense(z.n, nil)
}

// Mean returns n zeros.
func (z *Zero) Mean() []float64 {
	return make([]float64, z.n)
}

// String implements the Stringer interface.
func (z *Zero) String() string {
	return fmt.Sprintf("Zero{n=%d}", z.n)
}
