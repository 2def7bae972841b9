package ekf

import (
	"errors"
	"fmt"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/estimate"
	"github.com/milosgajdos/go-localize/matrix"
	"github.com/milosgajdos/go-localize/model"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSingularInnovationCov is returned when innovation covariance can't be inverted
	ErrSingularInnovationCov = errors.New("singular innovation covariance")
	// ErrInvalidCovariance is returned when noise covariance is not symmetric positive semi-definite
	ErrInvalidCovariance = errors.New("invalid covariance")
	// ErrNumerical is returned when the filter produces non-finite values
	ErrNumerical = errors.New("numerical failure")
)

// symTol is tolerance used when validating noise covariances
const symTol = 1e-9

// EKF is Extended Kalman Filter.
// EKF holds no estimation state; it is safe for concurrent use.
type EKF struct {
	// m is EKF system model
	m filter.Model
	// q is process noise covariance
	q *mat.SymDense
	// r is measurement noise covariance
	r *mat.SymDense
}

// Step is a single EKF run with its intermediate results
type Step struct {
	// Pred is predicted estimate
	Pred filter.Estimate
	// Est is corrected estimate
	Est filter.Estimate
	// Innovation is measurement residual z - h(x_pred)
	Innovation *mat.VecDense
	// S is innovation covariance
	S *mat.SymDense
	// Gain is Kalman gain
	Gain *mat.Dense
}

// New creates new EKF and returns it.
// It accepts the following parameters:
// - m:      dynamical system model
// - q:      process noise covariance
// - r:      measurement noise covariance
// It returns error if either of the following conditions is met:
// - invalid model is given: model dimensions must be positive integers
// - q or r do not match model dimensions or are not symmetric positive semi-definite
func New(m filter.Model, q, r mat.Symmetric) (*EKF, error) {
	nx, _, ny, _ := m.SystemDims()
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid model dimensions: [%d x %d]", nx, ny)
	}

	qc, err := checkCov(q, nx)
	if err != nil {
		return nil, fmt.Errorf("process noise: %w", err)
	}

	rc, err := checkCov(r, ny)
	if err != nil {
		return nil, fmt.Errorf("measurement noise: %w", err)
	}

	return &EKF{
		m: m,
		q: qc,
		r: rc,
	}, nil
}

func checkCov(c mat.Symmetric, n int) (*mat.SymDense, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrInvalidCovariance)
	}

	if c.SymmetricDim() != n {
		return nil, fmt.Errorf("%w: dimension %d, expected %d", ErrInvalidCovariance, c.SymmetricDim(), n)
	}

	if !matrix.IsFinite(c) || !matrix.IsSymmetric(c, symTol) {
		return nil, fmt.Errorf("%w: not symmetric", ErrInvalidCovariance)
	}

	ok, err := matrix.IsPSD(c, symTol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCovariance, err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: not positive semi-definite", ErrInvalidCovariance)
	}

	cov := mat.NewSymDense(n, nil)
	cov.CopySym(c)

	return cov, nil
}

// Predict propagates estimate x with covariance p to the next step given input u.
// It returns error if the model fails to propagate x or to linearize around it.
func (k *EKF) Predict(x mat.Vector, p mat.Symmetric, u mat.Vector) (filter.Estimate, error) {
	nx, _, _, _ := k.m.SystemDims()
	if p == nil || p.SymmetricDim() != nx {
		return nil, fmt.Errorf("invalid covariance matrix supplied")
	}

	xNext, err := k.m.Propagate(x, u, nil)
	if err != nil {
		return nil, fmt.Errorf("system state propagation failed: %w", err)
	}

	// linearize around the prior estimate
	f, err := k.stateJacobian(x, u)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate propagation jacobian: %w", err)
	}

	// F*P*F' + Q
	cov := &mat.Dense{}
	cov.Mul(f, p)
	cov.Mul(cov, f.T())
	cov.Add(cov, k.q)

	est, err := estimate.NewBaseWithCov(xNext, matrix.Symmetrize(cov))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}

	return est, nil
}

// Update corrects predicted estimate x with covariance p using measurement z, given control input u.
// It returns error wrapping ErrSingularInnovationCov if the innovation covariance can't be inverted.
func (k *EKF) Update(x mat.Vector, p mat.Symmetric, u, z mat.Vector) (filter.Estimate, error) {
	step, err := k.update(x, p, u, z)
	if err != nil {
		return nil, err
	}

	return step.Est, nil
}

func (k *EKF) update(x mat.Vector, p mat.Symmetric, u, z mat.Vector) (*Step, error) {
	nx, _, ny, _ := k.m.SystemDims()

	if z == nil || z.Len() != ny {
		return nil, fmt.Errorf("invalid measurement supplied: %v", z)
	}

	if p == nil || p.SymmetricDim() != nx {
		return nil, fmt.Errorf("invalid covariance matrix supplied")
	}

	// predicted system output
	y, err := k.m.Observe(x, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to observe system output: %w", err)
	}

	h, err := k.outputJacobian(x, u)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate observation jacobian: %w", err)
	}

	// P*H'
	pxy := mat.NewDense(nx, ny, nil)
	pxy.Mul(p, h.T())

	// H*P*H' + R
	pyy := mat.NewDense(ny, ny, nil)
	pyy.Mul(h, pxy)
	pyy.Add(pyy, k.r)
	s := matrix.Symmetrize(pyy)

	sInv, err := invert(s)
	if err != nil {
		return nil, err
	}

	// K = P*H'*S^-1
	gain := &mat.Dense{}
	gain.Mul(pxy, sInv)

	// innovation vector
	inn := &mat.VecDense{}
	inn.SubVec(z, y)

	// x + K*inn
	xCorr := &mat.VecDense{}
	xCorr.MulVec(gain, inn)
	xCorr.AddVec(x, xCorr)

	// (I - K*H)*P
	a := &mat.Dense{}
	a.Mul(gain, h)
	a.Sub(matrix.Eye(nx), a)

	pCorr := &mat.Dense{}
	pCorr.Mul(a, p)

	est, err := estimate.NewBaseWithCov(xCorr, matrix.Symmetrize(pCorr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}

	return &Step{
		Est:        est,
		Innovation: inn,
		S:          s,
		Gain:       gain,
	}, nil
}

// invert inverts innovation covariance s.
func invert(s *mat.SymDense) (*mat.Dense, error) {
	if !matrix.IsFinite(s) {
		return nil, fmt.Errorf("%w: non-finite values", ErrSingularInnovationCov)
	}

	sInv := &mat.Dense{}
	if err := sInv.Inverse(s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularInnovationCov, err)
	}

	if !matrix.IsFinite(sInv) {
		return nil, fmt.Errorf("%w: non-finite inverse", ErrSingularInnovationCov)
	}

	return sInv, nil
}

// Run runs one step of EKF for given estimate x with covariance p, input u and measurement z.
// It predicts the next estimate with u and corrects it using z.
// It returns error if it either fails to propagate or correct the estimate.
func (k *EKF) Run(x mat.Vector, p mat.Symmetric, u, z mat.Vector) (filter.Estimate, error) {
	step, err := k.RunStep(x, p, u, z)
	if err != nil {
		return nil, err
	}

	return step.Est, nil
}

// RunStep runs one step of EKF like Run does and returns its intermediate results.
func (k *EKF) RunStep(x mat.Vector, p mat.Symmetric, u, z mat.Vector) (*Step, error) {
	pred, err := k.Predict(x, p, u)
	if err != nil {
		return nil, err
	}

	step, err := k.update(pred.Val(), pred.Cov(), u, z)
	if err != nil {
		return nil, err
	}
	step.Pred = pred

	return step, nil
}

// stateJacobian linearizes propagation: analytically if the model provides it,
// from its system matrix if it's linear, numerically otherwise.
func (k *EKF) stateJacobian(x, u mat.Vector) (*mat.Dense, error) {
	switch m := k.m.(type) {
	case filter.Linearizer:
		return m.StateJacobian(x, u)
	case filter.DiscreteModel:
		return mat.DenseCopyOf(m.SystemMatrix()), nil
	default:
		return model.StateJacobian(k.m, x, u)
	}
}

// outputJacobian linearizes observation the same way stateJacobian linearizes propagation.
func (k *EKF) outputJacobian(x, u mat.Vector) (*mat.Dense, error) {
	switch m := k.m.(type) {
	case filter.Linearizer:
		return m.OutputJacobian(x, u)
	case filter.DiscreteModel:
		return mat.DenseCopyOf(m.OutputMatrix()), nil
	default:
		return model.OutputJacobian(k.m, x, u)
	}
}

// Model returns EKF model
func (k *EKF) Model() filter.Model {
	return k.m
}

// StateNoise returns process noise covariance
func (k *EKF) StateNoise() mat.Symmetric {
	cov := mat.NewSymDense(k.q.SymmetricDim(), nil)
	cov.CopySym(k.q)

	return cov
}

// OutputNoise returns measurement noise covariance
func (k *EKF) OutputNoise() mat.Symmetric {
	cov := mat.NewSymDense(k.r.SymmetricDim(), nil)
	cov.CopySym(k.r)

	return cov
}
