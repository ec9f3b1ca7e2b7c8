/*Package wallgo computes collision integrals for Boltzmann equations in
cosmological phase transitions.

The central object is the Manager. A typical session defines the particle
content and model parameters, points the Manager at a matrix element file,
and evaluates the full collision tensor:

	m := wallgo.NewManager(11, nil)
	m.DefineParticle(collision.ParticleSpecies{
		Name: "top", Stats: collision.Fermion, Ultrarelativistic: true,
	})
	m.DefineVariable("gs", 1.2279920495357861)
	m.SetMatrixElementFile("MatrixElements.txt")
	if err := m.SetupCollisionIntegrals(); err != nil { ... }
	res, err := m.CalculateAllIntegrals(ctx)

The result holds one rank-4 grid C[m,n;j,k] per ordered pair of
out-of-equilibrium particles, exportable through ExportResults.
*/
package wallgo

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/JulianSchoen/WallGo/collision"
	"github.com/JulianSchoen/WallGo/io"
	"github.com/JulianSchoen/WallGo/matrixelem"
)

var (
	ErrDuplicateParticle = fmt.Errorf("wallgo: particle already defined")
	ErrUnknownParticle   = fmt.Errorf("wallgo: unknown particle")
	ErrNoOutOfEquilibrium = fmt.Errorf(
		"wallgo: no out-of-equilibrium particles defined")
	ErrNotSetUp = fmt.Errorf(
		"wallgo: collision integrals have not been set up")
)

// Manager owns the particle registry, the model parameters and the cached
// collision integrals, and coordinates tensor evaluation. It is not safe
// for concurrent mutation; evaluation itself parallelizes internally.
type Manager struct {
	basisSize int

	particles map[string]*collision.ParticleSpecies
	order     []string
	outOfEq   []string

	params    *matrixelem.Parameters
	integrals map[[2]string]*collision.Integral

	matrixElementFile string
	outputDir         string

	opts collision.Options
	verb collision.Verbosity
	log  *slog.Logger
}

// NewManager creates a Manager with the given polynomial basis size. A nil
// logger falls back to slog.Default. Panics if basisSize < 1, matching the
// underlying basis constructor.
func NewManager(basisSize int, log *slog.Logger) *Manager {
	if basisSize < 1 {
		panic(fmt.Sprintf("wallgo: basis size %d < 1", basisSize))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		basisSize: basisSize,
		particles: make(map[string]*collision.ParticleSpecies),
		params:    matrixelem.NewParameters(),
		outputDir: ".",
		opts:      collision.DefaultOptions(),
		log:       log,
	}
}

// DefineParticle registers one particle species. The registration order
// fixes the particle indices used by matrix element files: the i-th
// defined particle is index i.
func (m *Manager) DefineParticle(p collision.ParticleSpecies) error {
	if p.Name == "" {
		return fmt.Errorf("wallgo: particle name must be non-empty")
	}
	if _, ok := m.particles[p.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateParticle, p.Name)
	}
	sp := p
	m.particles[p.Name] = &sp
	m.order = append(m.order, p.Name)
	if !p.InEquilibrium {
		m.outOfEq = append(m.outOfEq, p.Name)
	}
	return nil
}

// DefineVariable registers one named model parameter for use in matrix
// element expressions.
func (m *Manager) DefineVariable(name string, value float64) error {
	return m.params.Define(name, value)
}

// DefineVariables registers a batch of model parameters.
func (m *Manager) DefineVariables(vars map[string]float64) error {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := m.params.Define(name, vars[name]); err != nil {
			return err
		}
	}
	return nil
}

// SetVariable updates a previously defined model parameter. Cached
// integrals pick the new value up on their next evaluation.
func (m *Manager) SetVariable(name string, value float64) error {
	return m.params.Set(name, value)
}

// SetVariables updates a batch of previously defined model parameters.
func (m *Manager) SetVariables(vars map[string]float64) error {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := m.params.Set(name, vars[name]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateParticleMasses replaces vacuum and thermal mass squares for the
// named particles and refreshes the mass snapshots held by cached
// collision integrals. Either map may omit particles whose masses are
// unchanged; naming an unknown particle is an error.
func (m *Manager) UpdateParticleMasses(msqVacuum, msqThermal map[string]float64) error {
	for name, msq := range msqVacuum {
		p, ok := m.particles[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownParticle, name)
		}
		p.MsqVacuum = msq
	}
	for name, msq := range msqThermal {
		p, ok := m.particles[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownParticle, name)
		}
		p.MsqThermal = msq
	}
	for _, in := range m.integrals {
		in.RefreshMasses()
	}
	return nil
}

// ChangeBasisSize switches the spectral grid resolution. Cached integrals
// are retargeted in place; previously computed results are unaffected.
func (m *Manager) ChangeBasisSize(n int) error {
	if n < 1 {
		return fmt.Errorf("wallgo: basis size %d < 1", n)
	}
	m.basisSize = n
	for _, in := range m.integrals {
		in.SetBasisSize(n)
	}
	return nil
}

// BasisSize returns the current spectral grid resolution.
func (m *Manager) BasisSize() int { return m.basisSize }

// SetMatrixElementFile sets the path SetupCollisionIntegrals reads matrix
// elements from.
func (m *Manager) SetMatrixElementFile(path string) { m.matrixElementFile = path }

// SetOutputDirectory sets where ExportResults writes result files.
func (m *Manager) SetOutputDirectory(dir string) { m.outputDir = dir }

// SetIntegrationOptions replaces the Monte Carlo configuration used by all
// subsequent evaluations.
func (m *Manager) SetIntegrationOptions(opt collision.Options) { m.opts = opt }

// SetVerbosity controls progress reporting during tensor evaluation.
func (m *Manager) SetVerbosity(v collision.Verbosity) { m.verb = v }

// OutOfEquilibriumParticles returns the names of the registered
// out-of-equilibrium species, in definition order.
func (m *Manager) OutOfEquilibriumParticles() []string {
	out := make([]string, len(m.outOfEq))
	copy(out, m.outOfEq)
	return out
}

// SetupCollisionIntegrals parses the matrix element file and builds one
// collision integral per ordered pair of out-of-equilibrium particles.
// Safe to call repeatedly; each call rebuilds the cache from scratch.
func (m *Manager) SetupCollisionIntegrals() error {
	if len(m.outOfEq) == 0 {
		return ErrNoOutOfEquilibrium
	}
	if m.matrixElementFile == "" {
		return fmt.Errorf("wallgo: matrix element file not set")
	}

	records, err := matrixelem.ParseFile(m.matrixElementFile)
	if err != nil {
		return err
	}

	type compiled struct {
		particles [4]*collision.ParticleSpecies
		matrix    *matrixelem.MatrixElement
	}
	elems := make([]compiled, 0, len(records))
	for _, rec := range records {
		var legs [4]*collision.ParticleSpecies
		for i, idx := range rec.Indices {
			if idx < 0 || idx >= len(m.order) {
				return fmt.Errorf(
					"wallgo: matrix element %q: particle index %d out of range (have %d particles)",
					rec.Expr, idx, len(m.order))
			}
			legs[i] = m.particles[m.order[idx]]
		}
		matrix, err := matrixelem.Compile(rec.Expr, m.params)
		if err != nil {
			return fmt.Errorf("wallgo: matrix element %q: %w", rec.Expr, err)
		}
		elems = append(elems, compiled{legs, matrix})
	}

	m.integrals = make(map[[2]string]*collision.Integral)
	for _, a := range m.outOfEq {
		for _, b := range m.outOfEq {
			pair := [2]string{a, b}
			in := collision.NewIntegral(m.basisSize, pair, m.params, m.log)
			for _, c := range elems {
				if c.particles[0].Name != a {
					continue
				}
				var deltaF [4]bool
				hasB := false
				for i, leg := range c.particles {
					deltaF[i] = leg.Name == b
					hasB = hasB || deltaF[i]
				}
				if !hasB {
					continue
				}
				el, err := collision.NewElement(
					c.particles, c.matrix.Clone(), deltaF)
				if err != nil {
					return err
				}
				in.AddElement(el)
			}
			m.integrals[pair] = in
			m.log.Info("collision integral set up",
				"pair", pair, "elements", in.ElementCount())
		}
	}
	return nil
}

// CountIndependentIntegrals returns the number of Monte Carlo integrations
// a full tensor evaluation performs at the current basis size, after
// symmetry reductions. Zero before SetupCollisionIntegrals.
func (m *Manager) CountIndependentIntegrals() int {
	total := 0
	for _, in := range m.integrals {
		total += in.CountIndependentIntegrals()
	}
	return total
}

// CountIndependentIntegrals returns the number of independent collision
// integrals in a tensor with the given basis size and number of
// out-of-equilibrium particles.
func CountIndependentIntegrals(basisSize, outOfEqCount int) int {
	n := basisSize
	evenM, oddM := (n+1)/2, n/2
	jEven, jOdd := (n+1)/2, n/2
	perPair := n * n * (evenM*jEven + oddM*jOdd)
	return perPair * outOfEqCount * outOfEqCount
}

// TensorResult holds the evaluated collision grids of every ordered pair
// of out-of-equilibrium particles.
type TensorResult struct {
	grids map[[2]string]*collision.ResultsGrid
}

// Pairs lists the particle pairs in deterministic order.
func (r *TensorResult) Pairs() [][2]string {
	pairs := make([][2]string, 0, len(r.grids))
	for pair := range r.grids {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

// Grid returns the results for one particle pair, or nil if the pair is
// not part of the tensor.
func (r *TensorResult) Grid(a, b string) *collision.ResultsGrid {
	return r.grids[[2]string{a, b}]
}

// FailedPoints returns, per pair, the grid points whose integration did
// not reach the error goals. Empty when everything converged.
func (r *TensorResult) FailedPoints() map[[2]string][]collision.GridPoint {
	failed := make(map[[2]string][]collision.GridPoint)
	for pair, grid := range r.grids {
		if pts := grid.FailedPoints(); len(pts) > 0 {
			failed[pair] = pts
		}
	}
	return failed
}

// CalculateAllIntegrals evaluates every pair's grid and returns the
// assembled tensor. All pairs share a single worker pool whose unit of
// work is one (pair, grid point) integration, so workers never idle
// between pairs. Evaluation honors ctx: on cancellation the partial
// tensor computed so far is returned together with the context error.
func (m *Manager) CalculateAllIntegrals(ctx context.Context) (*TensorResult, error) {
	if m.integrals == nil {
		return nil, ErrNotSetUp
	}

	pairs := make([][2]string, 0, len(m.integrals))
	for pair := range m.integrals {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	ins := make([]*collision.Integral, len(pairs))
	for i, pair := range pairs {
		ins[i] = m.integrals[pair]
		m.log.Info("evaluating collision grid", "pair", pair,
			"basisSize", m.basisSize,
			"integrals", ins[i].CountIndependentIntegrals())
	}

	grids, err := collision.EvaluateAllOnGrid(ctx, ins, m.opts, m.verb)

	res := &TensorResult{grids: make(map[[2]string]*collision.ResultsGrid)}
	for i, pair := range pairs {
		res.grids[pair] = grids[i]
		if failed := grids[i].FailedPoints(); len(failed) > 0 {
			m.log.Warn("grid points failed to converge",
				"pair", pair, "count", len(failed))
		}
	}
	return res, err
}

// EvaluatePairGrid evaluates the collision grid of a single ordered pair.
func (m *Manager) EvaluatePairGrid(ctx context.Context, a, b string) (*collision.ResultsGrid, error) {
	if m.integrals == nil {
		return nil, ErrNotSetUp
	}
	in, ok := m.integrals[[2]string{a, b}]
	if !ok {
		return nil, fmt.Errorf("%w: pair (%s, %s)", ErrUnknownParticle, a, b)
	}
	return in.EvaluateOnGrid(ctx, m.opts, m.verb)
}

// ExportResults writes every grid in the tensor to the output directory,
// one binary file per pair.
func (m *Manager) ExportResults(res *TensorResult) error {
	for _, pair := range res.Pairs() {
		grid := res.grids[pair]
		path := filepath.Join(m.outputDir, io.ResultFileName(pair, grid.BasisSize()))
		if err := io.WriteResultsGrid(path, grid); err != nil {
			return err
		}
		m.log.Info("wrote collision grid", "pair", pair, "file", path)
	}
	return nil
}
