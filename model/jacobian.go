package model

import (
	"fmt"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/noise"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// StateJacobian approximates the propagation Jacobian of m at x and u by central differences.
// It returns error if m fails to propagate x.
func StateJacobian(m filter.Model, x, u mat.Vector) (*mat.Dense, error) {
	nx, _, _, _ := m.SystemDims()
	q, err := noise.NewZero(nx)
	if err != nil {
		return nil, err
	}

	return jacobian(nx, x, func(xNow *mat.VecDense) (mat.Vector, error) {
		return m.Propagate(xNow, u, q.Sample())
	})
}

// OutputJacobian approximates the observation Jacobian of m at x and u by central differences.
// It returns error if m fails to observe x.
func OutputJacobian(m filter.Model, x, u mat.Vector) (*mat.Dense, error) {
	_, _, ny, _ := m.SystemDims()
	r, err := noise.NewZero(ny)
	if err != nil {
		return nil, err
	}

	return jacobian(ny, x, func(xNow *mat.VecDense) (mat.Vector, error) {
		return m.Observe(xNow, u, r.Sample())
	})
}

func jacobian(rows int, x mat.Vector, f func(*mat.VecDense) (mat.Vector, error)) (*mat.Dense, error) {
	if x == nil || rows <= 0 {
		return nil, fmt.Errorf("invalid jacobian dimensions")
	}

	// fd.Jacobian can't return errors: we stash the first one
	var fErr error
	fn := func(y, xNow []float64) {
		out, err := f(mat.NewVecDense(len(xNow), xNow))
		if err != nil {
			if fErr == nil {
				fErr = err
			}
			return
		}

		if out.Len() != len(y) {
			if fErr == nil {
				fErr = fmt.Errorf("invalid output length: %d", out.Len())
			}
			return
		}

		for i := range y {
			y[i] = out.AtVec(i)
		}
	}

	j := mat.NewDense(rows, x.Len(), nil)
	fd.Jacobian(j, fn, mat.Col(nil, 0, x), &fd.JacobianSettings{
		Formula: fd.Central,
	})

	if fErr != nil {
		return nil, fErr
	}

	return j, nil
}
