package viz

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// EllipseStep is angular sampling step of ellipse polylines in radians
const EllipseStep = 0.1

// eigTol is the tolerance below which negative eigenvalues are treated as round-off
const eigTol = 1e-9

// Ellipse is a rotated ellipse
type Ellipse struct {
	// Center is ellipse center
	Center Point
	// A is the major semi-axis length
	A float64
	// B is the minor semi-axis length
	B float64
	// Angle is rotation of the major axis from the x axis in (-pi/2, pi/2]
	Angle float64
}

// CovarianceEllipse returns confidence ellipse of a 2x2 position covariance centered at (cx, cy).
// Semi-axes are sqrt(chi*eigenvalue) of cov; the major axis follows the eigenvector
// of the largest eigenvalue.
// It returns error if cov is not 2x2, chi is not positive or cov is not positive semi-definite.
func CovarianceEllipse(cx, cy float64, cov mat.Symmetric, chi float64) (Ellipse, error) {
	if cov == nil || cov.SymmetricDim() != 2 {
		return Ellipse{}, fmt.Errorf("invalid covariance dimensions")
	}

	if chi <= 0 {
		return Ellipse{}, fmt.Errorf("invalid chi: %v", chi)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return Ellipse{}, fmt.Errorf("eigen decomposition failed")
	}

	// eigenvalues are in ascending order
	vals := eig.Values(nil)
	for i, v := range vals {
		if v < -eigTol {
			return Ellipse{}, fmt.Errorf("covariance is not positive semi-definite: %v", vals)
		}
		vals[i] = math.Max(v, 0)
	}

	vecs := &mat.Dense{}
	eig.VectorsTo(vecs)

	angle := math.Atan2(vecs.At(1, 1), vecs.At(0, 1))
	switch {
	case angle > math.Pi/2:
		angle -= math.Pi
	case angle <= -math.Pi/2:
		angle += math.Pi
	}

	return Ellipse{
		Center: Point{X: cx, Y: cy},
		A:      math.Sqrt(chi * vals[1]),
		B:      math.Sqrt(chi * vals[0]),
		Angle:  angle,
	}, nil
}

// Polyline samples e in EllipseStep increments over [0, 2*pi] and closes the curve.
func (e Ellipse) Polyline() []Point {
	n := int(math.Floor(2*math.Pi/EllipseStep)) + 1
	xs := make([]float64, 0, n+1)
	ys := make([]float64, 0, n+1)

	sin, cos := math.Sincos(e.Angle)
	for i := 0; i < n; i++ {
		t := float64(i) * EllipseStep
		ex, ey := e.A*math.Cos(t), e.B*math.Sin(t)
		xs = append(xs, e.Center.X+cos*ex-sin*ey)
		ys = append(ys, e.Center.Y+sin*ex+cos*ey)
	}
	xs = append(xs, xs[0])
	ys = append(ys, ys[0])

	// lengths match by construction
	pts, _ := PointsToPolyline(xs, ys)

	return pts
}
