package noise

import (
	"fmt"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/matrix"
	"gonum.org/v1/gonum/mat"
)

// Gaussian is zero-mean gaussian noise with diagonal covariance
type Gaussian struct {
	// src draws standard normal samples
	src filter.Sampler
	// std stores standard deviations of each noise component
	std []float64
	// cov is Gaussian covariance
	cov *mat.SymDense
}

// NewGaussian creates new zero-mean Gaussian noise with given diagonal covariance.
// Samples are drawn from src; if src is nil, a time seeded Normal sampler is used.
// It returns error if cov is not diagonal or has negative variances.
func NewGaussian(cov mat.Symmetric, src filter.Sampler) (*Gaussian, error) {
	if cov == nil || cov.SymmetricDim() == 0 {
		return nil, fmt.Errorf("invalid noise covariance: %v", cov)
	}

	if !matrix.IsDiagonal(cov) {
		return nil, fmt.Errorf("noise covariance must be diagonal")
	}

	n := cov.SymmetricDim()
	for i := 0; i < n; i++ {
		if v := cov.At(i, i); v < 0 {
			return nil, fmt.Errorf("negative noise variance %f at %d", v, i)
		}
	}

	if src == nil {
		src = NewNormal(0)
	}

	c := mat.NewSymDense(n, nil)
	c.CopySym(cov)

	return &Gaussian{
		src: src,
		std: matrix.SqrtDiag(c),
		cov: c,
	}, nil
}

// Sample draws one standard normal sample per noise component
// and scales it by the component's standard deviation.
func (g *Gaussian) Sample() mat.Vector {
	s := make([]float64, len(g.std))
	for i, std := range g.std {
		s[i] = std * g.src.Sample()
	}

	return mat.NewVecDense(len(s), s)
}

// Cov returns covariance matrix of Gaussian noise.
func (g *Gaussian) Cov() mat.Symmetric {
	cov := mat.NewSymDense(g.cov.SymmetricDim(), nil)
	cov.CopySym(g.cov)

	return cov
}

// Mean returns Gaussian mean.
func (g *Gaussian) Mean() []float64 {
	return make([]float64, len(g.std))
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}", g.Mean(), mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
