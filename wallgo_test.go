package wallgo

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JulianSchoen/WallGo/collision"
	wgio "github.com/JulianSchoen/WallGo/io"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeMatrixFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "MatrixElements.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func topSpecies() collision.ParticleSpecies {
	return collision.ParticleSpecies{
		Name:              "top",
		Stats:             collision.Fermion,
		MsqThermal:        0.251,
		Ultrarelativistic: true,
	}
}

func gluonSpecies() collision.ParticleSpecies {
	return collision.ParticleSpecies{
		Name:              "gluon",
		Stats:             collision.Boson,
		InEquilibrium:     true,
		MsqThermal:        0.402,
		Ultrarelativistic: true,
	}
}

// newTopManager builds a manager with one out-of-equilibrium particle and
// a single constant matrix element covering the (top, top) pair.
func newTopManager(t *testing.T, basisSize int) *Manager {
	t.Helper()
	m := NewManager(basisSize, discardLogger())
	require.NoError(t, m.DefineParticle(topSpecies()))
	m.SetMatrixElementFile(writeMatrixFile(t, "M[0,0,0,0] -> 1\n"))

	opt := collision.DefaultOptions()
	opt.Calls = 5000
	opt.MaxTries = 3
	opt.Seed = 7
	opt.Workers = 2
	m.SetIntegrationOptions(opt)
	return m
}

func TestDefineParticleDuplicate(t *testing.T) {
	m := NewManager(3, discardLogger())
	require.NoError(t, m.DefineParticle(topSpecies()))
	err := m.DefineParticle(topSpecies())
	assert.ErrorIs(t, err, ErrDuplicateParticle)
}

func TestDefineVariableDuplicate(t *testing.T) {
	m := NewManager(3, discardLogger())
	require.NoError(t, m.DefineVariable("gs", 1.0))
	assert.Error(t, m.DefineVariable("gs", 2.0))
	assert.NoError(t, m.SetVariable("gs", 2.0))
	assert.Error(t, m.SetVariable("yt", 1.0))
}

func TestUpdateParticleMassesUnknown(t *testing.T) {
	m := NewManager(3, discardLogger())
	require.NoError(t, m.DefineParticle(topSpecies()))

	err := m.UpdateParticleMasses(
		map[string]float64{"squark": 1.0}, nil)
	assert.ErrorIs(t, err, ErrUnknownParticle)

	err = m.UpdateParticleMasses(nil,
		map[string]float64{"top": 0.3})
	assert.NoError(t, err)
}

func TestSetupRequiresOutOfEquilibriumParticle(t *testing.T) {
	m := NewManager(3, discardLogger())
	require.NoError(t, m.DefineParticle(gluonSpecies()))
	m.SetMatrixElementFile(writeMatrixFile(t, "M[0,0,0,0] -> 1\n"))
	assert.ErrorIs(t, m.SetupCollisionIntegrals(), ErrNoOutOfEquilibrium)
}

func TestSetupRejectsBadParticleIndex(t *testing.T) {
	m := NewManager(3, discardLogger())
	require.NoError(t, m.DefineParticle(topSpecies()))
	m.SetMatrixElementFile(writeMatrixFile(t, "M[0,0,0,5] -> 1\n"))
	assert.Error(t, m.SetupCollisionIntegrals())
}

func TestSetupRejectsUndefinedSymbol(t *testing.T) {
	m := NewManager(3, discardLogger())
	require.NoError(t, m.DefineParticle(topSpecies()))
	m.SetMatrixElementFile(writeMatrixFile(t, "M[0,0,0,0] -> gs^4\n"))
	assert.Error(t, m.SetupCollisionIntegrals())

	require.NoError(t, m.DefineVariable("gs", 1.23))
	assert.NoError(t, m.SetupCollisionIntegrals())
}

func TestCalculateBeforeSetup(t *testing.T) {
	m := NewManager(3, discardLogger())
	_, err := m.CalculateAllIntegrals(context.Background())
	assert.ErrorIs(t, err, ErrNotSetUp)
	_, err = m.EvaluatePairGrid(context.Background(), "top", "top")
	assert.ErrorIs(t, err, ErrNotSetUp)
}

func TestCountIndependentIntegrals(t *testing.T) {
	assert.Equal(t, 1, CountIndependentIntegrals(1, 1))
	assert.Equal(t, 4, CountIndependentIntegrals(1, 2))
	assert.Equal(t, 8, CountIndependentIntegrals(2, 1))
	assert.Equal(t, 45, CountIndependentIntegrals(3, 1))
	assert.Equal(t, 180, CountIndependentIntegrals(3, 2))

	m := newTopManager(t, 3)
	require.NoError(t, m.SetupCollisionIntegrals())
	assert.Equal(t, CountIndependentIntegrals(3, 1),
		m.CountIndependentIntegrals())
}

func TestCalculateAllIntegralsEndToEnd(t *testing.T) {
	m := newTopManager(t, 1)
	outDir := t.TempDir()
	m.SetOutputDirectory(outDir)
	require.NoError(t, m.SetupCollisionIntegrals())

	res, err := m.CalculateAllIntegrals(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"top", "top"}}, res.Pairs())

	grid := res.Grid("top", "top")
	require.NotNil(t, grid)
	v, e := grid.At(collision.GridPoint{})
	assert.Greater(t, v, 0.0)
	assert.Greater(t, e, 0.0)

	require.NoError(t, m.ExportResults(res))
	read, err := wgio.ReadResultsGrid(filepath.Join(outDir,
		wgio.ResultFileName([2]string{"top", "top"}, 1)))
	require.NoError(t, err)
	assert.Equal(t, grid.Values(), read.Values())
	assert.Equal(t, grid.Pair(), read.Pair())
}

func TestSetupIsIdempotent(t *testing.T) {
	m := newTopManager(t, 1)
	require.NoError(t, m.SetupCollisionIntegrals())
	first, err := m.EvaluatePairGrid(context.Background(), "top", "top")
	require.NoError(t, err)

	require.NoError(t, m.SetupCollisionIntegrals())
	second, err := m.EvaluatePairGrid(context.Background(), "top", "top")
	require.NoError(t, err)
	assert.Equal(t, first.Values(), second.Values())
}

func TestEvaluatePairGridUnknownPair(t *testing.T) {
	m := newTopManager(t, 1)
	require.NoError(t, m.SetupCollisionIntegrals())
	_, err := m.EvaluatePairGrid(context.Background(), "top", "gluon")
	assert.ErrorIs(t, err, ErrUnknownParticle)
}

func TestChangeBasisSizePropagates(t *testing.T) {
	m := newTopManager(t, 1)
	require.NoError(t, m.SetupCollisionIntegrals())
	require.NoError(t, m.ChangeBasisSize(2))

	grid, err := m.EvaluatePairGrid(context.Background(), "top", "top")
	require.NoError(t, err)
	assert.Equal(t, 2, grid.BasisSize())
	assert.Equal(t, 2, m.BasisSize())
}

func TestUpdateParticleMassesRefreshesIntegrals(t *testing.T) {
	m := newTopManager(t, 1)
	require.NoError(t, m.SetupCollisionIntegrals())
	base, err := m.EvaluatePairGrid(context.Background(), "top", "top")
	require.NoError(t, err)

	// Dropping the ultrarelativistic flag is not possible after the fact,
	// but mass updates on non-UR species must change results. Rebuild with
	// a massive top to compare.
	m2 := NewManager(1, discardLogger())
	top := topSpecies()
	top.Ultrarelativistic = false
	require.NoError(t, m2.DefineParticle(top))
	m2.SetMatrixElementFile(writeMatrixFile(t, "M[0,0,0,0] -> 1\n"))

	opt := collision.DefaultOptions()
	opt.Calls = 5000
	opt.MaxTries = 3
	opt.Seed = 7
	opt.Workers = 2
	m2.SetIntegrationOptions(opt)
	require.NoError(t, m2.SetupCollisionIntegrals())

	light, err := m2.EvaluatePairGrid(context.Background(), "top", "top")
	require.NoError(t, err)

	require.NoError(t, m2.UpdateParticleMasses(nil,
		map[string]float64{"top": 4.0}))
	heavy, err := m2.EvaluatePairGrid(context.Background(), "top", "top")
	require.NoError(t, err)

	lv, _ := light.At(collision.GridPoint{})
	hv, _ := heavy.At(collision.GridPoint{})
	assert.NotEqual(t, lv, hv)

	bv, _ := base.At(collision.GridPoint{})
	assert.NotZero(t, bv)
}

// newTwinManager builds a manager with two identically configured
// out-of-equilibrium fermions whose matrix elements map into each other
// under exchange of the two species.
func newTwinManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(2, discardLogger())

	for _, name := range []string{"psiL", "psiR"} {
		require.NoError(t, m.DefineParticle(collision.ParticleSpecies{
			Name:              name,
			Stats:             collision.Fermion,
			MsqThermal:        0.251,
			Ultrarelativistic: true,
		}))
	}
	m.SetMatrixElementFile(writeMatrixFile(t,
		"M[0,1,0,1] -> s^2 + t^2\n"+
			"M[1,0,1,0] -> s^2 + t^2\n"))

	opt := collision.DefaultOptions()
	opt.Calls = 2000
	opt.MaxTries = 2
	opt.Seed = 5
	opt.Workers = 2
	m.SetIntegrationOptions(opt)
	return m
}

func TestIdenticalSpeciesSwapSymmetry(t *testing.T) {
	// Relabeling two identical species permutes the pair grids without
	// changing their contents: C[psiL,psiR] must equal C[psiR,psiL],
	// and likewise for the diagonal pairs.
	m := newTwinManager(t)
	require.NoError(t, m.SetupCollisionIntegrals())

	res, err := m.CalculateAllIntegrals(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Pairs(), 4)

	lr := res.Grid("psiL", "psiR")
	rl := res.Grid("psiR", "psiL")
	require.NotNil(t, lr)
	require.NotNil(t, rl)
	assert.Equal(t, lr.Values(), rl.Values())
	assert.Equal(t, lr.Errors(), rl.Errors())
	assert.Equal(t, lr.ConvergedFlags(), rl.ConvergedFlags())

	ll := res.Grid("psiL", "psiL")
	rr := res.Grid("psiR", "psiR")
	assert.Equal(t, ll.Values(), rr.Values())
}

func TestTensorMatchesPerPairEvaluation(t *testing.T) {
	// The shared pool evaluating all pairs at once agrees bit for bit
	// with evaluating each pair on its own.
	m := newTwinManager(t)
	require.NoError(t, m.SetupCollisionIntegrals())

	res, err := m.CalculateAllIntegrals(context.Background())
	require.NoError(t, err)

	for _, pair := range res.Pairs() {
		single, err := m.EvaluatePairGrid(
			context.Background(), pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, single.Values(), res.Grid(pair[0], pair[1]).Values(),
			"pair %v", pair)
	}
}

func TestVariableScalingIsExact(t *testing.T) {
	// The integrand is linear in the matrix element, and with identical
	// seeds the sampler visits identical points, so scaling gs^2 by 4
	// scales the estimate by 4 up to rounding.
	m := NewManager(1, discardLogger())
	require.NoError(t, m.DefineParticle(topSpecies()))
	require.NoError(t, m.DefineVariable("gs", 1.0))
	m.SetMatrixElementFile(writeMatrixFile(t, "M[0,0,0,0] -> gs^2\n"))

	opt := collision.DefaultOptions()
	opt.Calls = 5000
	opt.MaxTries = 3
	opt.Seed = 11
	m.SetIntegrationOptions(opt)
	require.NoError(t, m.SetupCollisionIntegrals())

	g1, err := m.EvaluatePairGrid(context.Background(), "top", "top")
	require.NoError(t, err)

	require.NoError(t, m.SetVariable("gs", 2.0))
	g2, err := m.EvaluatePairGrid(context.Background(), "top", "top")
	require.NoError(t, err)

	v1, _ := g1.At(collision.GridPoint{})
	v2, _ := g2.At(collision.GridPoint{})
	assert.InEpsilon(t, 4*v1, v2, 1e-9)
}
