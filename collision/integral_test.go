package collision

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JulianSchoen/WallGo/matrixelem"
)

func newTopIntegral(t *testing.T, basisSize int) *Integral {
	t.Helper()
	in := NewIntegral(basisSize, [2]string{"top", "top"},
		matrixelem.NewParameters(), discardLogger())
	in.AddElement(constElement(t, "1", [4]bool{true, true, true, true}))
	return in
}

func testOptions() Options {
	opt := DefaultOptions()
	opt.Calls = 10000
	opt.Seed = 42
	return opt
}

func TestIntegrateEmpty(t *testing.T) {
	in := NewIntegral(3, [2]string{"top", "gluon"},
		matrixelem.NewParameters(), discardLogger())

	res := in.Integrate(GridPoint{M: 1, N: 2, J: 0, K: 1}, testOptions())
	assert.Zero(t, res.Value)
	assert.Zero(t, res.Error)
	assert.True(t, res.Converged)
}

func TestIntegrateConstantMatrixElement(t *testing.T) {
	in := newTopIntegral(t, 1)
	opt := testOptions()
	opt.MaxIntegrationMomentum = 50

	res := in.Integrate(GridPoint{}, opt)
	require.True(t, res.Converged)
	assert.False(t, math.IsNaN(res.Value))
	assert.False(t, math.IsInf(res.Value, 0))
	assert.Greater(t, res.Value, 0.0)
	assert.Greater(t, res.Error, 0.0)

	// Same seed, same estimate, bit for bit.
	again := in.Integrate(GridPoint{}, opt)
	assert.Equal(t, res, again)
}

func TestIntegrandOptimizedPathMatchesGeneral(t *testing.T) {
	in := newTopIntegral(t, 3)
	par := in.initIntegrandParams(GridPoint{M: 2, N: 1, J: 0, K: 2})

	samples := [][5]float64{
		{3.1, 0.7, 2.9, 0.4, -0.6},
		{0.2, 5.5, 1.1, -0.9, 0.3},
		{12.0, 3.3, 0.1, 0.0, 0.99},
		{1.7, 1.7, 4.6, 0.8, -0.2},
	}
	for _, s := range samples {
		fast := in.calculateIntegrand(s[0], s[1], s[2], s[3], s[4], &par, true)
		slow := in.calculateIntegrand(s[0], s[1], s[2], s[3], s[4], &par, false)
		assert.InDelta(t, slow, fast, 1e-9*(1+math.Abs(slow)))
	}
}

func TestIsValidGridPointMatchesCount(t *testing.T) {
	for n := 1; n <= 6; n++ {
		in := newTopIntegral(t, n)
		count := 0
		for m := 0; m < n; m++ {
			for mn := 0; mn < n; mn++ {
				for j := 0; j < n; j++ {
					for k := 0; k < n; k++ {
						if in.IsValidGridPoint(GridPoint{m, mn, j, k}) {
							count++
						}
					}
				}
			}
		}
		assert.Equal(t, in.CountIndependentIntegrals(), count,
			"basis size %d", n)
	}
}

func TestIsValidGridPointRejectsOutOfRange(t *testing.T) {
	in := newTopIntegral(t, 3)
	assert.False(t, in.IsValidGridPoint(GridPoint{M: -1}))
	assert.False(t, in.IsValidGridPoint(GridPoint{N: 3}))
	assert.False(t, in.IsValidGridPoint(GridPoint{J: 2})) // mirror of j=0
	assert.False(t, in.IsValidGridPoint(GridPoint{M: 1, J: 1}))
}

func TestEvaluateOnGridMirrorSymmetry(t *testing.T) {
	in := newTopIntegral(t, 2)
	opt := testOptions()
	opt.Calls = 2000
	opt.MaxTries = 3
	opt.Workers = 1

	grid, err := in.EvaluateOnGrid(context.Background(), opt, Verbosity{})
	require.NoError(t, err)

	for m := 0; m < 2; m++ {
		for mn := 0; mn < 2; mn++ {
			for k := 0; k < 2; k++ {
				v0, e0 := grid.At(GridPoint{m, mn, 0, k})
				v1, e1 := grid.At(GridPoint{m, mn, 1, k})
				sign := 1.0
				if m%2 == 1 {
					sign = -1
				}
				assert.Equal(t, sign*v0, v1)
				assert.Equal(t, e0, e1)
			}
		}
	}
}

func TestEvaluateOnGridSchedulingIndependent(t *testing.T) {
	opt := testOptions()
	opt.Calls = 2000
	opt.MaxTries = 3

	opt.Workers = 1
	serial, err := newTopIntegral(t, 2).EvaluateOnGrid(
		context.Background(), opt, Verbosity{})
	require.NoError(t, err)

	opt.Workers = 4
	parallel, err := newTopIntegral(t, 2).EvaluateOnGrid(
		context.Background(), opt, Verbosity{})
	require.NoError(t, err)

	assert.Equal(t, serial.Values(), parallel.Values())
	assert.Equal(t, serial.Errors(), parallel.Errors())
	assert.Equal(t, serial.ConvergedFlags(), parallel.ConvergedFlags())
}

func TestEvaluateAllOnGridSharedPool(t *testing.T) {
	// Several integrals fed through one pool produce the same grids as
	// evaluating each on its own; empty integrals stay zeroed.
	opt := testOptions()
	opt.Calls = 2000
	opt.MaxTries = 3
	opt.Workers = 3

	build := func() []*Integral {
		empty := NewIntegral(2, [2]string{"top", "gluon"},
			matrixelem.NewParameters(), discardLogger())
		second := NewIntegral(2, [2]string{"quark", "quark"},
			matrixelem.NewParameters(), discardLogger())
		second.AddElement(constElement(t, "3", [4]bool{true, true, true, true}))
		return []*Integral{newTopIntegral(t, 2), empty, second}
	}

	ins := build()
	grids, err := EvaluateAllOnGrid(
		context.Background(), ins, opt, Verbosity{})
	require.NoError(t, err)
	require.Len(t, grids, 3)

	for _, v := range grids[1].Values() {
		assert.Zero(t, v)
	}

	for i, in := range build() {
		single, err := in.EvaluateOnGrid(context.Background(), opt, Verbosity{})
		require.NoError(t, err)
		assert.Equal(t, single.Values(), grids[i].Values(), "integral %d", i)
		assert.Equal(t, single.Errors(), grids[i].Errors(), "integral %d", i)
	}
}

func TestEvaluateOnGridCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := newTopIntegral(t, 2)
	_, err := in.EvaluateOnGrid(ctx, testOptions(), Verbosity{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateOnGridEmpty(t *testing.T) {
	in := NewIntegral(2, [2]string{"top", "gluon"},
		matrixelem.NewParameters(), discardLogger())
	grid, err := in.EvaluateOnGrid(
		context.Background(), testOptions(), Verbosity{})
	require.NoError(t, err)
	for _, v := range grid.Values() {
		assert.Zero(t, v)
	}
	assert.Empty(t, grid.FailedPoints())
}
