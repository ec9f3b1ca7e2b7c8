package collision

import (
	"fmt"
)

// GridPoint addresses one collision integral C[m,n;j,k]: (m,n) are
// polynomial basis indices, (j,k) are momentum node indices. All indices
// run over [0, basisSize).
type GridPoint struct {
	M, N, J, K int
}

// IntegrationResult is one grid point's Monte Carlo estimate. Converged is
// false when the integrator exhausted its retry cap before reaching the
// error goals; the estimate is still the best available one.
type IntegrationResult struct {
	Value     float64
	Error     float64
	Converged bool
}

// ResultsGrid is the dense C[m,n;j,k] tensor for one particle pair,
// together with the metadata needed to reproduce it. It is immutable once
// an evaluation pass has produced it.
type ResultsGrid struct {
	basisSize int
	pair      [2]string
	params    map[string]float64

	values []float64
	errors []float64
	conv   []bool
}

// NewResultsGrid allocates a zeroed grid for the given basis size, particle
// pair and model-parameter snapshot. All points start as converged zeros.
func NewResultsGrid(basisSize int, pair [2]string, params map[string]float64) *ResultsGrid {
	n := basisSize * basisSize * basisSize * basisSize
	g := &ResultsGrid{
		basisSize: basisSize,
		pair:      pair,
		params:    params,
		values:    make([]float64, n),
		errors:    make([]float64, n),
		conv:      make([]bool, n),
	}
	for i := range g.conv {
		g.conv[i] = true
	}
	return g
}

// BasisSize returns the number of grid points per index.
func (g *ResultsGrid) BasisSize() int { return g.basisSize }

// Pair returns the out-of-equilibrium particle pair the grid belongs to.
func (g *ResultsGrid) Pair() [2]string { return g.pair }

// Params returns the model-parameter snapshot taken at evaluation time.
func (g *ResultsGrid) Params() map[string]float64 { return g.params }

func (g *ResultsGrid) index(gp GridPoint) int {
	n := g.basisSize
	if gp.M < 0 || gp.M >= n || gp.N < 0 || gp.N >= n ||
		gp.J < 0 || gp.J >= n || gp.K < 0 || gp.K >= n {
		panic(fmt.Sprintf("collision: grid point %+v out of range for basis size %d", gp, n))
	}
	return ((gp.M*n+gp.N)*n+gp.J)*n + gp.K
}

// At returns the value and error estimate at gp.
func (g *ResultsGrid) At(gp GridPoint) (value, err float64) {
	i := g.index(gp)
	return g.values[i], g.errors[i]
}

// Converged reports whether the integration at gp reached its error goal.
func (g *ResultsGrid) Converged(gp GridPoint) bool {
	return g.conv[g.index(gp)]
}

// FailedPoints lists every grid point whose integration did not converge.
func (g *ResultsGrid) FailedPoints() []GridPoint {
	var failed []GridPoint
	n := g.basisSize
	for i, ok := range g.conv {
		if ok {
			continue
		}
		failed = append(failed, GridPoint{
			M: i / (n * n * n),
			N: (i / (n * n)) % n,
			J: (i / n) % n,
			K: i % n,
		})
	}
	return failed
}

// Values returns the raw value array in row-major (m,n,j,k) order. The
// returned slice is the grid's backing store; callers must not modify it.
func (g *ResultsGrid) Values() []float64 { return g.values }

// Errors returns the raw error array in row-major (m,n,j,k) order.
func (g *ResultsGrid) Errors() []float64 { return g.errors }

// ConvergedFlags returns the raw convergence flags in row-major order.
func (g *ResultsGrid) ConvergedFlags() []bool { return g.conv }

// set writes one grid point. Storage is write-once per evaluation pass; the
// evaluation loop guarantees each point is written by exactly one worker.
func (g *ResultsGrid) set(gp GridPoint, res IntegrationResult) {
	i := g.index(gp)
	g.values[i] = res.Value
	g.errors[i] = res.Error
	g.conv[i] = res.Converged
}

// RestoreData rebuilds a grid from raw arrays, for deserialization. Array
// lengths must match basisSize^4.
func RestoreData(basisSize int, pair [2]string, params map[string]float64,
	values, errors []float64, conv []bool) (*ResultsGrid, error) {

	n := basisSize * basisSize * basisSize * basisSize
	if len(values) != n || len(errors) != n || len(conv) != n {
		return nil, fmt.Errorf(
			"collision: array length mismatch: basis size %d needs %d points",
			basisSize, n)
	}
	return &ResultsGrid{
		basisSize: basisSize,
		pair:      pair,
		params:    params,
		values:    values,
		errors:    errors,
		conv:      conv,
	}, nil
}
