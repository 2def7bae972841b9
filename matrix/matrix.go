package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Eye returns n x n identity matrix.
func Eye(n int) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1.0
	}

	return mat.NewDiagDense(n, d)
}

// Diag returns symmetric matrix with vals on its diagonal.
func Diag(vals ...float64) *mat.SymDense {
	s := mat.NewSymDense(len(vals), nil)
	for i, v := range vals {
		s.SetSym(i, i, v)
	}

	return s
}

// IsSymmetric checks if m is square and symmetric within tol.
func IsSymmetric(m mat.Matrix, tol float64) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}

	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > tol {
				return false
			}
		}
	}

	return true
}

// IsDiagonal checks if all off-diagonal elements of square matrix m are zero.
func IsDiagonal(m mat.Matrix) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}

	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if i != j && m.At(i, j) != 0 {
				return false
			}
		}
	}

	return true
}

// IsPSD checks if symmetric matrix s is positive semi-definite.
// Eigenvalues larger than -tol are treated as non-negative.
// It returns error if eigen decomposition of s fails.
func IsPSD(s mat.Symmetric, tol float64) (bool, error) {
	if s.SymmetricDim() == 0 {
		return true, nil
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(s, false); !ok {
		return false, fmt.Errorf("eigen decomposition failed")
	}

	for _, v := range eig.Values(nil) {
		if v < -tol {
			return false, nil
		}
	}

	return true, nil
}

// Symmetrize returns (m + m')/2 as a symmetric matrix.
// It panics if m is not square.
func Symmetrize(m mat.Matrix) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic(mat.ErrShape)
	}

	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}

	return s
}

// IsFinite checks that m contains neither NaN nor Inf values.
func IsFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}

	return true
}

// SqrtDiag returns square roots of the diagonal elements of s.
// Negative diagonal elements yield NaN.
func SqrtDiag(s mat.Symmetric) []float64 {
	n := s.SymmetricDim()
	std := make([]float64, n)
	for i := range std {
		std[i] = math.Sqrt(s.At(i, i))
	}

	return std
}
