package ekf

import (
	"errors"
	"math"
	"os"
	"testing"

	filter "github.com/milosgajdos/go-localize"
	"github.com/milosgajdos/go-localize/matrix"
	"github.com/milosgajdos/go-localize/model"
	"github.com/milosgajdos/go-localize/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type invalidModel struct {
	filter.Model
}

func (m *invalidModel) SystemDims() (nx, nu, ny, nz int) {
	return -10, 0, 8, 0
}

// numericModel hides the analytic jacobians of the wrapped model
type numericModel struct {
	m filter.Model
}

func (n *numericModel) Propagate(x, u, q mat.Vector) (mat.Vector, error) {
	return n.m.Propagate(x, u, q)
}

func (n *numericModel) Observe(x, u, r mat.Vector) (mat.Vector, error) {
	return n.m.Observe(x, u, r)
}

func (n *numericModel) SystemDims() (nx, nu, ny, nz int) {
	return n.m.SystemDims()
}

// linearModel is a linear discrete-time model x[n+1] = A*x[n] + B*u[n], y[n] = C*x[n]
type linearModel struct {
	A, B, C *mat.Dense
}

func (l *linearModel) Propagate(x, u, q mat.Vector) (mat.Vector, error) {
	out := &mat.VecDense{}
	out.MulVec(l.A, x)
	bu := &mat.VecDense{}
	bu.MulVec(l.B, u)
	out.AddVec(out, bu)

	return out, nil
}

func (l *linearModel) Observe(x, u, r mat.Vector) (mat.Vector, error) {
	out := &mat.VecDense{}
	out.MulVec(l.C, x)

	return out, nil
}

func (l *linearModel) SystemDims() (nx, nu, ny, nz int) {
	nx, _ = l.A.Dims()
	_, nu = l.B.Dims()
	ny, _ = l.C.Dims()

	return nx, nu, ny, 0
}

func (l *linearModel) SystemMatrix() mat.Matrix      { return l.A }
func (l *linearModel) ControlMatrix() mat.Matrix     { return l.B }
func (l *linearModel) OutputMatrix() mat.Matrix      { return l.C }
func (l *linearModel) FeedForwardMatrix() mat.Matrix { return nil }

var (
	okModel  *model.Unicycle
	badModel *invalidModel
	q, r     *mat.SymDense
	x0, u, z *mat.VecDense
	p0       *mat.SymDense
)

func setup() {
	okModel = &model.Unicycle{Dt: 0.1}
	badModel = &invalidModel{okModel}

	q = matrix.Diag(0.01, 0.01, math.Pi/180, 1.0)
	r = matrix.Diag(1.0, 1.0)

	x0 = mat.NewVecDense(4, nil)
	p0 = matrix.Diag(1, 1, 1, 1)
	u = mat.NewVecDense(2, []float64{1.0, 0.1})
	z = mat.NewVecDense(2, []float64{0.2, -0.1})
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestEKFNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, q, r)
	assert.NotNil(f)
	assert.NoError(err)

	// invalid model: incorrect dimensions
	f, err = New(badModel, q, r)
	assert.Nil(f)
	assert.Error(err)

	for _, test := range []struct {
		q, r mat.Symmetric
	}{
		{q: nil, r: r},
		{q: q, r: nil},
		{q: matrix.Diag(1, 1), r: r},
		{q: q, r: matrix.Diag(1, 1, 1)},
		{q: matrix.Diag(1, 1, -1, 1), r: r},
		{q: q, r: mat.NewSymDense(2, []float64{1, 2, 2, 1})},
		{q: q, r: matrix.Diag(math.NaN(), 1)},
	} {
		f, err = New(okModel, test.q, test.r)
		assert.Nil(f)
		assert.True(errors.Is(err, ErrInvalidCovariance))
	}

	// zero noise is positive semi-definite
	f, err = New(okModel, mat.NewSymDense(4, nil), mat.NewSymDense(2, nil))
	assert.NotNil(f)
	assert.NoError(err)
}

func TestEKFPredict(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, q, r)
	require.NoError(t, err)

	est, err := f.Predict(x0, p0, u)
	assert.NoError(err)
	assert.NotNil(est)

	// x_pred = f(x, u)
	xp, _ := okModel.Propagate(x0, u, nil)
	assert.True(mat.EqualApprox(xp, est.Val(), 1e-12))

	// P_pred = F*P*F' + Q
	jf, _ := okModel.StateJacobian(x0, u)
	exp := &mat.Dense{}
	exp.Mul(jf, p0)
	exp.Mul(exp, jf.T())
	exp.Add(exp, q)
	assert.True(mat.EqualApprox(exp, est.Cov(), 1e-12))

	// invalid input vector
	est, err = f.Predict(x0, p0, mat.NewVecDense(3, nil))
	assert.Nil(est)
	assert.Error(err)

	// invalid covariance
	est, err = f.Predict(x0, matrix.Diag(1, 1), u)
	assert.Nil(est)
	assert.Error(err)
}

func TestEKFUpdate(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, q, r)
	require.NoError(t, err)

	est, err := f.Update(x0, p0, u, z)
	assert.NoError(err)
	assert.NotNil(est)

	// P = I, R = I: gain on position is 0.5
	assert.InDelta(0.1, est.Val().AtVec(0), 1e-12)
	assert.InDelta(-0.05, est.Val().AtVec(1), 1e-12)
	assert.InDelta(0.5, est.Cov().At(0, 0), 1e-12)
	assert.InDelta(1.0, est.Cov().At(2, 2), 1e-12)

	// invalid measurement vector
	est, err = f.Update(x0, p0, u, mat.NewVecDense(3, nil))
	assert.Nil(est)
	assert.Error(err)

	// invalid state vector
	est, err = f.Update(mat.NewVecDense(3, nil), p0, u, z)
	assert.Nil(est)
	assert.Error(err)
}

func TestEKFRun(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, q, r)
	require.NoError(t, err)

	est, err := f.Run(x0, p0, u, z)
	assert.NoError(err)
	assert.NotNil(est)

	step, err := f.RunStep(x0, p0, u, z)
	assert.NoError(err)
	assert.True(mat.EqualApprox(est.Val(), step.Est.Val(), 1e-12))
	assert.NotNil(step.Pred)
	assert.Equal(2, step.Innovation.Len())
	assert.Equal(2, step.S.SymmetricDim())
	gr, gc := step.Gain.Dims()
	assert.Equal(4, gr)
	assert.Equal(2, gc)

	// inputs are not modified
	assert.Equal(0.0, x0.AtVec(0))
	assert.Equal(1.0, p0.At(0, 0))

	// invalid input vector
	est, err = f.Run(x0, p0, mat.NewVecDense(3, nil), z)
	assert.Nil(est)
	assert.Error(err)

	// invalid measurement vector
	est, err = f.Run(x0, p0, u, mat.NewVecDense(3, nil))
	assert.Nil(est)
	assert.Error(err)
}

func TestEKFCovarianceSymmetricPSD(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, q, r)
	require.NoError(t, err)

	src := noise.NewNormal(11)
	var x mat.Vector = x0
	var p mat.Symmetric = p0
	for i := 0; i < 200; i++ {
		zn := mat.NewVecDense(2, []float64{src.Sample() * 5, src.Sample() * 5})
		un := mat.NewVecDense(2, []float64{1.0 + src.Sample(), 0.1 + 0.5*src.Sample()})

		est, err := f.Run(x, p, un, zn)
		require.NoError(t, err)

		x, p = est.Val(), est.Cov()
		assert.True(matrix.IsSymmetric(p, 1e-12))
		ok, err := matrix.IsPSD(p, 1e-9)
		assert.NoError(err)
		assert.True(ok)
	}
}

func TestEKFZeroNoiseTracksTruth(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, q, r)
	require.NoError(t, err)

	var truth mat.Vector = mat.NewVecDense(4, nil)
	var x mat.Vector = mat.NewVecDense(4, nil)
	var p mat.Symmetric = p0
	for i := 0; i < 50; i++ {
		truth, err = okModel.Propagate(truth, u, nil)
		require.NoError(t, err)
		zt, err := okModel.Observe(truth, u, nil)
		require.NoError(t, err)

		est, err := f.Run(x, p, u, zt)
		require.NoError(t, err)
		x, p = est.Val(), est.Cov()

		assert.True(mat.EqualApprox(truth, x, 1e-9))
	}
}

func TestEKFSingularInnovationCov(t *testing.T) {
	assert := assert.New(t)

	// zero P and zero R yield zero S
	f, err := New(okModel, mat.NewSymDense(4, nil), mat.NewSymDense(2, nil))
	require.NoError(t, err)

	est, err := f.Update(x0, mat.NewSymDense(4, nil), u, z)
	assert.Nil(est)
	assert.True(errors.Is(err, ErrSingularInnovationCov))

	est, err = f.Run(x0, mat.NewSymDense(4, nil), u, z)
	assert.Nil(est)
	assert.True(errors.Is(err, ErrSingularInnovationCov))
}

func TestEKFTinyInnovationCov(t *testing.T) {
	assert := assert.New(t)

	// S = diag(1e-300, 1e-300) is well conditioned even though its determinant underflows
	f, err := New(okModel, mat.NewSymDense(4, nil), matrix.Diag(1e-300, 1e-300))
	require.NoError(t, err)

	est, err := f.Update(x0, mat.NewSymDense(4, nil), u, z)
	assert.NoError(err)
	require.NotNil(t, est)
	assert.True(mat.EqualApprox(x0, est.Val(), 1e-12))
	assert.True(matrix.IsFinite(est.Cov()))
}

func TestEKFNumericalJacobians(t *testing.T) {
	assert := assert.New(t)

	// numerical linearization of the observation matches the analytic one
	fa, err := New(okModel, q, r)
	require.NoError(t, err)
	fn, err := New(&numericModel{okModel}, q, r)
	require.NoError(t, err)

	ea, err := fa.Update(x0, p0, u, z)
	require.NoError(t, err)
	en, err := fn.Update(x0, p0, u, z)
	require.NoError(t, err)

	assert.True(mat.EqualApprox(ea.Val(), en.Val(), 1e-6))
	assert.True(mat.EqualApprox(ea.Cov(), en.Cov(), 1e-6))
}

func TestEKFDiscreteModel(t *testing.T) {
	assert := assert.New(t)

	A := mat.NewDense(2, 2, []float64{1.0, 1.0, 0.0, 1.0})
	B := mat.NewDense(2, 1, []float64{0.5, 1.0})
	C := mat.NewDense(1, 2, []float64{1.0, 0.0})

	f, err := New(&linearModel{A: A, B: B, C: C}, matrix.Diag(0.25, 0.25), matrix.Diag(0.25))
	require.NoError(t, err)

	x := mat.NewVecDense(2, []float64{1.0, 3.0})
	est, err := f.Run(x, matrix.Diag(0.25, 0.25), mat.NewVecDense(1, []float64{-1.0}), mat.NewVecDense(1, []float64{-1.5}))
	assert.NoError(err)
	assert.NotNil(est)

	// linear model prediction uses the system matrix
	pred, err := f.Predict(x, matrix.Diag(1, 1), mat.NewVecDense(1, []float64{-1.0}))
	assert.NoError(err)
	assert.InDelta(2.0+0.25, pred.Cov().At(0, 0), 1e-12)
}

func TestEKFModelNoise(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okModel, q, r)
	require.NoError(t, err)

	assert.NotNil(f.Model())
	assert.True(mat.Equal(q, f.StateNoise()))
	assert.True(mat.Equal(r, f.OutputNoise()))
}
