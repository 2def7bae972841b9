package kalman

import (
	filter "github.com/milosgajdos/go-localize"
	"gonum.org/v1/gonum/mat"
)

// Kalman is Kalman Filter
type Kalman interface {
	// filter.Filter is dynamical system filter
	filter.Filter
	// Run predicts and corrects estimate x with covariance p in one step
	Run(x mat.Vector, p mat.Symmetric, u, z mat.Vector) (filter.Estimate, error)
	// StateNoise returns process noise covariance
	StateNoise() mat.Symmetric
	// OutputNoise returns measurement noise covariance
	OutputNoise() mat.Symmetric
}
