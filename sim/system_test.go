package sim

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var (
	x, u, q, r    *mat.VecDense
	A, B, C, D, E *mat.Dense
)

func setup() {
	x = mat.NewVecDense(2, []float64{0.5, 0.6})
	u = mat.NewVecDense(1, []float64{-1.0})

	// state and output noise
	q = mat.NewVecDense(2, nil)
	r = mat.NewVecDense(1, nil)

	A = mat.NewDense(2, 2, []float64{1.0, 1.0, 0.0, 1.0})
	B = mat.NewDense(2, 1, []float64{0.5, 1.0})
	C = mat.NewDense(1, 2, []float64{1.0, 0.0})
	D = mat.NewDense(1, 1, []float64{0.0})
	E = mat.NewDense(2, 1, []float64{1.0, 0})
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestInitCond(t *testing.T) {
	assert := assert.New(t)

	state := mat.NewVecDense(2, []float64{1.0, 3.0})
	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})

	ic := NewInitCond(state, cov)

	assert.True(mat.Equal(state, ic.State()))
	assert.True(mat.Equal(cov, ic.Cov()))

	// returned values are copies
	s := ic.State().(*mat.VecDense)
	s.SetVec(0, 100.0)
	assert.Equal(1.0, ic.State().AtVec(0))
}

func TestNewDiscrete(t *testing.T) {
	assert := assert.New(t)

	f, err := NewDiscrete(A, B, C, D, E)
	assert.NotNil(f)
	assert.NoError(err)

	f, err = NewDiscrete(nil, B, C, D, E)
	assert.Nil(f)
	assert.Error(err)

	f, err = NewDiscrete(mat.NewDense(2, 3, nil), B, C, D, E)
	assert.Nil(f)
	assert.Error(err)
}

func TestDiscreteCopiesMatrices(t *testing.T) {
	assert := assert.New(t)

	a := mat.DenseCopyOf(A)
	f, err := NewDiscrete(a, B, C, D, E)
	assert.NoError(err)

	a.Set(0, 0, 100.0)
	assert.Equal(1.0, f.SystemMatrix().At(0, 0))
}

func TestDiscretePropagate(t *testing.T) {
	assert := assert.New(t)

	f, err := NewDiscrete(A, B, C, D, E)
	assert.NotNil(f)
	assert.NoError(err)

	v, err := f.Propagate(x, u, q)
	assert.NotNil(v)
	assert.NoError(err)
	// A*x + B*u
	assert.InDelta(0.6, v.AtVec(0), 1e-12)
	assert.InDelta(-0.4, v.AtVec(1), 1e-12)

	_u := mat.NewVecDense(10, nil)
	v, err = f.Propagate(x, _u, q)
	assert.Nil(v)
	assert.Error(err)

	_x := mat.NewVecDense(10, nil)
	v, err = f.Propagate(_x, u, q)
	assert.Nil(v)
	assert.Error(err)

	v, err = f.Propagate(x, u, nil)
	assert.NotNil(v)
	assert.NoError(err)

	wd := mat.NewVecDense(2, []float64{1.0, 1.0})
	v, err = f.Propagate(x, u, wd)
	assert.NoError(err)
	assert.InDelta(1.6, v.AtVec(0), 1e-12)
	assert.InDelta(0.6, v.AtVec(1), 1e-12)
}

func TestDiscreteObserve(t *testing.T) {
	assert := assert.New(t)

	f, err := NewDiscrete(A, B, C, D, E)
	assert.NotNil(f)
	assert.NoError(err)

	v, err := f.Observe(x, u, r)
	assert.NotNil(v)
	assert.NoError(err)
	assert.InDelta(0.5, v.AtVec(0), 1e-12)

	_u := mat.NewVecDense(10, nil)
	v, err = f.Observe(x, _u, r)
	assert.Nil(v)
	assert.Error(err)

	_x := mat.NewVecDense(10, nil)
	v, err = f.Observe(_x, u, r)
	assert.Nil(v)
	assert.Error(err)

	v, err = f.Observe(x, u, nil)
	assert.NotNil(v)
	assert.NoError(err)

	f, err = NewDiscrete(A, B, nil, nil, nil)
	assert.NoError(err)
	v, err = f.Observe(x, u, nil)
	assert.Nil(v)
	assert.Error(err)
}

func TestSystemMatrices(t *testing.T) {
	assert := assert.New(t)
	f := System{A, B, C, D, E}
	assert.NotNil(f)

	m := f.SystemMatrix()
	assert.True(mat.EqualApprox(m, A, 0.001))

	m = f.ControlMatrix()
	assert.True(mat.EqualApprox(m, B, 0.001))

	m = f.OutputMatrix()
	assert.True(mat.EqualApprox(m, C, 0.001))

	m = f.FeedForwardMatrix()
	assert.True(mat.EqualApprox(m, D, 0.001))

	f = System{A: A}
	assert.Nil(f.ControlMatrix())
	assert.Nil(f.OutputMatrix())
	assert.Nil(f.FeedForwardMatrix())
}

func TestSystemDims(t *testing.T) {
	assert := assert.New(t)
	f := System{A, B, C, D, E}
	assert.NotNil(f)

	nx, nu, ny, nz := f.SystemDims()
	r, c := A.Dims()
	assert.Equal(nx, r) // A is square [n,n]
	assert.Equal(nx, c)
	r, c = B.Dims()
	assert.Equal(nx, r) // B [n,p]
	assert.Equal(nu, c)
	r, c = C.Dims()
	assert.Equal(ny, r) // C [q,n]
	assert.Equal(nx, c)
	r, c = D.Dims()
	assert.Equal(ny, r) // D [q,p]
	assert.Equal(nu, c)
	r, c = E.Dims()
	assert.Equal(nx, r) // E [n,r]
	assert.Equal(nz, c)
}

func TestToDiscreteSingular(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// double integrator
	a := mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	b := mat.NewDense(2, 1, []float64{0, 1})
	ts := 0.1

	ct, err := NewContinuous(a, b, C, nil, nil)
	require.NoError(err)

	ds, err := ct.ToDiscrete(ts)
	require.NoError(err)

	expA := mat.NewDense(2, 2, []float64{1, ts, 0, 1})
	expB := mat.NewDense(2, 1, []float64{ts * ts / 2, ts})
	assert.True(mat.EqualApprox(expA, ds.SystemMatrix(), 1e-9))
	assert.True(mat.EqualApprox(expB, ds.ControlMatrix(), 1e-9))

	// continuous model is left untouched
	assert.True(mat.Equal(a, ct.SystemMatrix()))
}

func TestToDiscreteInvertible(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	a := mat.NewDense(1, 1, []float64{-1})
	b := mat.NewDense(1, 1, []float64{1})
	ts := 0.5

	ct, err := NewContinuous(a, b, nil, nil, nil)
	require.NoError(err)

	ds, err := ct.ToDiscrete(ts)
	require.NoError(err)

	assert.InDelta(math.Exp(-ts), ds.SystemMatrix().At(0, 0), 1e-9)
	assert.InDelta(1-math.Exp(-ts), ds.ControlMatrix().At(0, 0), 1e-9)

	ds, err = ct.ToDiscrete(0)
	assert.Nil(ds)
	assert.Error(err)
}

func TestEuler(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	a := mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	b := mat.NewDense(2, 1, []float64{0, 2})
	ts := 0.1

	ct, err := NewContinuous(a, b, nil, nil, nil)
	require.NoError(err)

	ds, err := ct.Euler(ts, true)
	require.NoError(err)
	assert.True(mat.EqualApprox(mat.NewDense(2, 2, []float64{1, ts, 0, 1}), ds.SystemMatrix(), 1e-12))
	assert.True(mat.EqualApprox(mat.NewDense(2, 1, []float64{0, 2 * ts}), ds.ControlMatrix(), 1e-12))

	ds, err = ct.Euler(ts, false)
	require.NoError(err)
	assert.True(mat.Equal(b, ds.ControlMatrix()))

	ds, err = ct.Euler(-1, false)
	assert.Nil(ds)
	assert.Error(err)

	ct, err = NewContinuous(nil, b, nil, nil, nil)
	assert.Nil(ct)
	assert.Error(err)
}
