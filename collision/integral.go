package collision

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/JulianSchoen/WallGo/basis"
	"github.com/JulianSchoen/WallGo/geom"
	"github.com/JulianSchoen/WallGo/matrixelem"
	"github.com/JulianSchoen/WallGo/montecarlo"
)

// The reduced integral carries an overall 1/(8 (2 pi)^5) normalization.
var integralNorm = 1.0 / (8 * math.Pow(2*math.Pi, 5))

// Options configures one integration pass.
type Options struct {
	// Upper cutoff for the radial momentum integration, in units of
	// temperature.
	MaxIntegrationMomentum float64
	// Monte Carlo sample budget per converged iteration.
	Calls int
	// Convergence targets; a point converges when its error estimate
	// drops below max(AbsoluteErrorGoal, RelativeErrorGoal*|value|).
	RelativeErrorGoal float64
	AbsoluteErrorGoal float64
	// Retry cap before flagging a point as non-converged.
	MaxTries int
	// Enable the optimized kinematic path for fully ultrarelativistic
	// collision elements.
	OptimizeUltrarelativistic bool
	// Base random seed. The stream for grid point (m,n,j,k) is derived
	// from it, so results are reproducible independent of scheduling.
	Seed int64
	// Worker goroutines used by EvaluateOnGrid. Zero means NumCPU.
	Workers int
}

// DefaultOptions mirrors the defaults of the reference integration setup.
func DefaultOptions() Options {
	return Options{
		MaxIntegrationMomentum:    20,
		Calls:                     50000,
		RelativeErrorGoal:         1e-1,
		AbsoluteErrorGoal:         1e-8,
		MaxTries:                  50,
		OptimizeUltrarelativistic: true,
		Workers:                   runtime.NumCPU(),
	}
}

// Verbosity controls progress reporting during grid evaluation.
type Verbosity struct {
	// Log progress after every ProgressInterval finished grid points.
	// Zero disables progress logging.
	ProgressInterval int
	// Log each individual grid point result.
	Individual bool
}

// Integral owns the collision elements of one out-of-equilibrium particle
// pair and evaluates C[m,n;j,k] on the spectral grid. Integrals are
// copyable: EvaluateOnGrid hands each worker a private copy so no mutable
// state is shared inside the integrand closures.
type Integral struct {
	basis basis.Basis
	pair  [2]string

	// Split by kinematic treatment: fully ultrarelativistic elements can
	// share a single optimized kinematic solve per sample point.
	urElements    []*Element
	otherElements []*Element

	params *matrixelem.Parameters
	log    *slog.Logger
}

// NewIntegral creates an empty integral for a particle pair on a basis of
// the given size. params is the shared model-parameter table used for
// result metadata.
func NewIntegral(basisSize int, pair [2]string, params *matrixelem.Parameters, log *slog.Logger) *Integral {
	if log == nil {
		log = slog.Default()
	}
	return &Integral{
		basis:  basis.New(basisSize),
		pair:   pair,
		params: params,
		log:    log,
	}
}

// AddElement registers a collision element with the integral.
func (in *Integral) AddElement(el *Element) {
	if el.Ultrarelativistic() {
		in.urElements = append(in.urElements, el)
	} else {
		in.otherElements = append(in.otherElements, el)
	}
}

// IsEmpty reports whether no collision elements are registered. Evaluating
// an empty integral is a no-op that yields exact zeros.
func (in *Integral) IsEmpty() bool {
	return len(in.urElements)+len(in.otherElements) == 0
}

// ElementCount returns the number of registered collision elements.
func (in *Integral) ElementCount() int {
	return len(in.urElements) + len(in.otherElements)
}

// Pair returns the particle pair this integral belongs to.
func (in *Integral) Pair() [2]string { return in.pair }

// BasisSize returns the current polynomial basis size.
func (in *Integral) BasisSize() int { return in.basis.Size() }

// SetBasisSize changes the polynomial basis. Cheap: elements capture no
// basis-dependent state.
func (in *Integral) SetBasisSize(n int) { in.basis = basis.New(n) }

// RefreshMasses re-captures dispersion mass squares in every element and
// re-sorts the ultrarelativistic split. Mandatory after particle mass
// updates.
func (in *Integral) RefreshMasses() {
	all := append(in.urElements, in.otherElements...)
	in.urElements, in.otherElements = nil, nil
	for _, el := range all {
		el.RefreshMasses()
		in.AddElement(el)
	}
}

// IsValidGridPoint reports whether gp belongs to the canonical computed
// subset. Out of the full grid we exclude:
//
//   - mirror-redundant points: reflecting pz maps node j to basisSize-1-j
//     and multiplies the integral by (-1)^m, so only j <= basisSize-1-j is
//     computed and the rest is filled by symmetry;
//   - identically vanishing points: odd m at the self-mirror node
//     (2j == basisSize-1), where the same relation forces C = 0.
func (in *Integral) IsValidGridPoint(gp GridPoint) bool {
	n := in.basis.Size()
	if gp.M < 0 || gp.M >= n || gp.N < 0 || gp.N >= n ||
		gp.J < 0 || gp.J >= n || gp.K < 0 || gp.K >= n {
		return false
	}
	if gp.J > n-1-gp.J {
		return false
	}
	if gp.M%2 == 1 && 2*gp.J == n-1 {
		return false
	}
	return true
}

// CountIndependentIntegrals counts the grid points actually integrated for
// the current basis size, after symmetry exclusions.
func (in *Integral) CountIndependentIntegrals() int {
	n := in.basis.Size()
	evenM, oddM := (n+1)/2, n/2
	// Canonical j nodes available to even and odd m respectively.
	jEven, jOdd := (n+1)/2, n/2
	return n * n * (evenM*jEven + oddM*jOdd)
}

// integrandParams caches the per-grid-point quantities that do not change
// between Monte Carlo samples.
type integrandParams struct {
	m, n       int
	pZ1, pPar1 float64
	p1Vec      geom.Vec3
}

func (in *Integral) initIntegrandParams(gp GridPoint) integrandParams {
	pZ1 := in.basis.PzNode(gp.J)
	pPar1 := in.basis.PParNode(gp.K)
	return integrandParams{
		m:     gp.M,
		n:     gp.N,
		pZ1:   pZ1,
		pPar1: pPar1,
		p1Vec: geom.Vec3{0, pPar1, pZ1},
	}
}

// calculateIntegrand evaluates the full 5-dimensional integrand at one
// sample point: for every collision element and every physical root of the
// on-shell constraint, the element contribution times the kinematic weight.
func (in *Integral) calculateIntegrand(
	p2, phi2, phi3, cosTheta2, cosTheta3 float64,
	par *integrandParams, optimizeUR bool,
) float64 {
	sinTheta2 := math.Sqrt(1 - cosTheta2*cosTheta2)
	sinTheta3 := math.Sqrt(1 - cosTheta3*cosTheta3)

	p2Vec := geom.Vec3{
		p2 * sinTheta2 * math.Cos(phi2),
		p2 * sinTheta2 * math.Sin(phi2),
		p2 * cosTheta2,
	}
	p3Hat := geom.Vec3{
		sinTheta3 * math.Cos(phi3),
		sinTheta3 * math.Sin(phi3),
		cosTheta3,
	}

	input := newKinematicInput(par.p1Vec, p2Vec, p3Hat)

	full := 0.0
	var tmtn [4]float64

	// Fully ultrarelativistic elements share one optimized solve.
	if len(in.urElements) > 0 && optimizeUR {
		if kin, ok := solveKinematicsUltrarelativistic(&input); ok {
			in.basisWeights(par, &kin, &tmtn)
			for _, el := range in.urElements {
				v, err := el.evaluate(&kin.fv, &tmtn)
				if err != nil {
					in.log.Debug("discarding element contribution",
						"err", err)
					continue
				}
				full += v * kin.prefactor
			}
		}
	}

	if !optimizeUR {
		for _, el := range in.urElements {
			full += in.generalContribution(el, &input, par, &tmtn)
		}
	}
	for _, el := range in.otherElements {
		full += in.generalContribution(el, &input, par, &tmtn)
	}

	return full * integralNorm
}

// generalContribution solves the full quadratic kinematics for one element
// and sums its contribution over the physical roots.
func (in *Integral) generalContribution(
	el *Element, input *kinematicInput,
	par *integrandParams, tmtn *[4]float64,
) float64 {
	sum := 0.0
	kins, nKin := solveKinematics(input, &el.msq, in.log)
	for i := 0; i < nKin; i++ {
		kin := &kins[i]
		in.basisWeights(par, kin, tmtn)
		v, err := el.evaluate(&kin.fv, tmtn)
		if err != nil {
			in.log.Debug("discarding element contribution", "err", err)
			continue
		}
		sum += v * kin.prefactor
	}
	return sum
}

// basisWeights fills tmtn with Tm*Tn evaluated at each external momentum.
func (in *Integral) basisWeights(par *integrandParams, kin *kinematics, tmtn *[4]float64) {
	for i := range kin.fv {
		tmtn[i] = in.basis.TmTn(par.m, par.n, &kin.fv[i])
	}
}

// Integrate computes C[m,n;j,k] at one grid point with adaptive Monte
// Carlo: a warmup pass with a fifth of the call budget adapts the sampling
// density, then full-budget passes run until the error goals are met or
// MaxTries is exhausted. Deterministic for fixed options and seed.
func (in *Integral) Integrate(gp GridPoint, opt Options) IntegrationResult {
	if in.IsEmpty() {
		return IntegrationResult{Value: 0, Error: 0, Converged: true}
	}

	for _, el := range in.urElements {
		el.syncParameters()
	}
	for _, el := range in.otherElements {
		el.syncParameters()
	}

	par := in.initIntegrandParams(gp)

	lower := []float64{0, 0, 0, -1, -1}
	upper := []float64{
		opt.MaxIntegrationMomentum, 2 * math.Pi, 2 * math.Pi, 1, 1,
	}

	vegas := montecarlo.NewVegas(lower, upper, pointSeed(opt.Seed, gp))
	res := vegas.Run(func(x []float64) float64 {
		return in.calculateIntegrand(
			x[0], x[1], x[2], x[3], x[4],
			&par, opt.OptimizeUltrarelativistic,
		)
	}, montecarlo.Options{
		Calls:             opt.Calls,
		MaxTries:          opt.MaxTries,
		RelativeErrorGoal: opt.RelativeErrorGoal,
		AbsoluteErrorGoal: opt.AbsoluteErrorGoal,
	})

	return IntegrationResult{
		Value:     res.Value,
		Error:     res.Error,
		Converged: res.Converged,
	}
}

// pointSeed derives the random stream for one grid point from the base
// seed, making per-point results independent of worker scheduling.
func pointSeed(seed int64, gp GridPoint) int64 {
	h := uint64(seed)
	for _, idx := range [4]int{gp.M, gp.N, gp.J, gp.K} {
		h ^= uint64(idx) + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	}
	return int64(h)
}

type gridTask struct {
	integral int
	gp       GridPoint
}

type gridResult struct {
	integral int
	gp       GridPoint
	res      IntegrationResult
}

// EvaluateAllOnGrid evaluates several integrals over one shared pool of
// workers. The unit of work is a single (integral, grid point) pair, so
// workers stay busy across pair boundaries instead of idling while one
// pair's last points finish. Each worker holds private copies of every
// integral. Mirror-redundant points are filled by symmetry. Cancellation
// is cooperative: the context is checked between grid points, in-flight
// integrations finish.
//
// Results do not depend on the worker count or on how many integrals share
// the pool, because every grid point's random stream is derived from the
// base seed and its own indices.
func EvaluateAllOnGrid(ctx context.Context, ins []*Integral, opt Options, verb Verbosity) ([]*ResultsGrid, error) {
	grids := make([]*ResultsGrid, len(ins))
	total := 0
	for i, in := range ins {
		grids[i] = NewResultsGrid(
			in.basis.Size(), in.pair, in.params.Snapshot())
		if !in.IsEmpty() {
			total += in.CountIndependentIntegrals()
		}
	}
	if total == 0 {
		return grids, nil
	}

	workers := opt.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	work := make(chan gridTask, workers)
	results := make(chan gridResult, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		clones := make([]*Integral, len(ins))
		for i, in := range ins {
			clones[i] = in.clone()
		}
		go func() {
			defer wg.Done()
			for task := range work {
				results <- gridResult{task.integral, task.gp,
					clones[task.integral].Integrate(task.gp, opt)}
			}
		}()
	}

	go func() {
		defer close(work)
		for i, in := range ins {
			if in.IsEmpty() {
				continue
			}
			n := in.basis.Size()
			for m := 0; m < n; m++ {
				for mn := 0; mn < n; mn++ {
					for j := 0; 2*j <= n-1; j++ {
						for k := 0; k < n; k++ {
							gp := GridPoint{M: m, N: mn, J: j, K: k}
							if !in.IsValidGridPoint(gp) {
								continue
							}
							select {
							case work <- gridTask{i, gp}:
							case <-ctx.Done():
								return
							}
						}
					}
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		in := ins[r.integral]
		grid := grids[r.integral]
		grid.set(r.gp, r.res)

		// Mirror partner: same magnitude, sign flip for odd m.
		if mirror := grid.BasisSize() - 1 - r.gp.J; mirror != r.gp.J {
			mres := r.res
			if r.gp.M%2 == 1 {
				mres.Value = -mres.Value
			}
			grid.set(GridPoint{r.gp.M, r.gp.N, mirror, r.gp.K}, mres)
		}

		done++
		if verb.Individual {
			in.log.Info("collision integral evaluated",
				"pair", in.pair, "point", r.gp,
				"value", r.res.Value, "error", r.res.Error,
				"converged", r.res.Converged)
		}
		if verb.ProgressInterval > 0 && done%verb.ProgressInterval == 0 {
			in.log.Info("grid evaluation progress",
				"done", done, "total", total)
		}
	}

	if err := ctx.Err(); err != nil {
		return grids, err
	}
	return grids, nil
}

// EvaluateOnGrid computes this integral at every canonical grid point with
// a private worker pool.
func (in *Integral) EvaluateOnGrid(ctx context.Context, opt Options, verb Verbosity) (*ResultsGrid, error) {
	grids, err := EvaluateAllOnGrid(ctx, []*Integral{in}, opt, verb)
	return grids[0], err
}

// clone returns a deep-enough copy for a concurrent worker: private
// elements and matrix-element buffers, shared read-only particles,
// parameters and logger.
func (in *Integral) clone() *Integral {
	c := &Integral{
		basis:  in.basis,
		pair:   in.pair,
		params: in.params,
		log:    in.log,
	}
	c.urElements = make([]*Element, len(in.urElements))
	for i, el := range in.urElements {
		c.urElements[i] = el.clone()
	}
	c.otherElements = make([]*Element, len(in.otherElements))
	for i, el := range in.otherElements {
		c.otherElements[i] = el.clone()
	}
	return c
}
