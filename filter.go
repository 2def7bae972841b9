package filter

import "gonum.org/v1/gonum/mat"

// Filter is a recursive state estimator.
// Filters carry no estimation state: the estimate and its covariance
// are passed in and returned on every call.
type Filter interface {
	// Predict propagates estimate x with covariance p to the next step given input u
	Predict(x mat.Vector, p mat.Symmetric, u mat.Vector) (Estimate, error)
	// Update corrects predicted estimate x with covariance p using measurement z
	Update(x mat.Vector, p mat.Symmetric, u, z mat.Vector) (Estimate, error)
}

// Propagator propagates internal state of the system to the next step
type Propagator interface {
	// Propagate propagates internal state x given input u and process noise q
	Propagate(x, u, q mat.Vector) (mat.Vector, error)
}

// Observer observes external state (output) of the system
type Observer interface {
	// Observe observes external state of the system given internal state x, input u and output noise r
	Observe(x, u, r mat.Vector) (mat.Vector, error)
}

// Model is a model of a dynamical system
type Model interface {
	// Propagator is system propagator
	Propagator
	// Observer is system observer
	Observer
	// SystemDims returns state, input, output and disturbance dimensions
	SystemDims() (nx, nu, ny, nz int)
}

// Linearizer provides analytic linearizations of a nonlinear Model.
type Linearizer interface {
	// StateJacobian returns the propagation Jacobian evaluated at x and u
	StateJacobian(x, u mat.Vector) (*mat.Dense, error)
	// OutputJacobian returns the observation Jacobian evaluated at x and u
	OutputJacobian(x, u mat.Vector) (*mat.Dense, error)
}

// DiscreteModel is a dynamical system whose state is driven by
// static propagation and observation dynamics matrices
type DiscreteModel interface {
	// Model is a model of a dynamical system
	Model
	// SystemMatrix returns state propagation matrix
	SystemMatrix() mat.Matrix
	// ControlMatrix returns state propagation control matrix
	ControlMatrix() mat.Matrix
	// OutputMatrix returns observation matrix
	OutputMatrix() mat.Matrix
	// FeedForwardMatrix returns observation control matrix
	FeedForwardMatrix() mat.Matrix
}

// InitCond is initial state condition of the filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Estimate is dynamical system filter estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
}

// Sampler draws independent zero-mean unit-variance samples
type Sampler interface {
	// Sample returns a single standard normal draw
	Sample() float64
}
