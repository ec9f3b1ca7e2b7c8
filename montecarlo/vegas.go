/*package montecarlo implements adaptive VEGAS Monte Carlo integration over
rectangular domains. The integrator importance-samples with a separable bin
grid that is refined between iterations, in the manner of Lepage's classic
algorithm.

Each Vegas value owns its random number stream, so concurrent integrations
must use separate Vegas values.
*/
package montecarlo

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const (
	// Bins per dimension of the importance-sampling grid.
	bins = 50
	// Damping exponent for grid refinement.
	alpha = 1.5

	tiny = 1e-300
)

// Func is an integrand over the integration domain.
type Func func(x []float64) float64

// Options controls the accuracy and retry behavior of Run.
type Options struct {
	// Calls is the sample budget for one converged iteration. The warmup
	// pass uses a fifth of this.
	Calls int
	// MaxTries caps how many converged iterations are attempted before
	// giving up on the error goals.
	MaxTries int
	// Error goals. Run stops once the estimated error drops below
	// max(AbsoluteErrorGoal, RelativeErrorGoal*|value|).
	RelativeErrorGoal float64
	AbsoluteErrorGoal float64
}

// Result is a Monte Carlo estimate with its standard error. Converged is
// false if MaxTries iterations were exhausted before reaching the error
// goals; the estimate is still the best available one.
type Result struct {
	Value     float64
	Error     float64
	Converged bool
}

// Vegas integrates functions over a fixed rectangular domain.
type Vegas struct {
	lower, upper []float64
	dim          int

	// Bin boundaries per dimension, in the unit cube: grid[d][0] = 0,
	// grid[d][bins] = 1.
	grid [][]float64

	rng *rand.Rand

	// Weighted accumulation across iterations.
	sumWeights  float64
	sumWeighted float64

	// Scratch buffers.
	x    []float64
	dist [][]float64
	rbuf []float64
	xin  []float64
}

// NewVegas creates an integrator for the box [lower, upper] using a random
// stream seeded with seed.
func NewVegas(lower, upper []float64, seed int64) *Vegas {
	if len(lower) != len(upper) {
		panic("montecarlo: domain bounds of unequal dimension")
	}

	dim := len(lower)
	v := &Vegas{
		lower: append([]float64{}, lower...),
		upper: append([]float64{}, upper...),
		dim:   dim,
		rng:   rand.New(rand.NewSource(seed)),
		x:     make([]float64, dim),
		rbuf:  make([]float64, bins),
		xin:   make([]float64, bins),
	}

	v.grid = make([][]float64, dim)
	v.dist = make([][]float64, dim)
	for d := 0; d < dim; d++ {
		v.grid[d] = make([]float64, bins+1)
		v.dist[d] = make([]float64, bins)
		for b := 0; b <= bins; b++ {
			v.grid[d][b] = float64(b) / bins
		}
	}

	return v
}

// Run integrates f: a warmup pass adapts the sampling grid without
// contributing to the estimate, then up to MaxTries full-budget iterations
// accumulate a weighted mean until the error goals are met.
func (v *Vegas) Run(f Func, opt Options) Result {
	warmup := opt.Calls / 5
	if warmup < bins {
		warmup = bins
	}
	v.iterate(f, warmup)
	// Discard the warmup estimate, keep the adapted grid.
	v.sumWeights, v.sumWeighted = 0, 0

	tries := opt.MaxTries
	if tries < 1 {
		tries = 1
	}

	res := Result{}
	for try := 0; try < tries; try++ {
		v.iterate(f, opt.Calls)

		res.Value = v.sumWeighted / v.sumWeights
		res.Error = math.Sqrt(1 / v.sumWeights)
		if res.Error <= math.Max(opt.AbsoluteErrorGoal,
			opt.RelativeErrorGoal*math.Abs(res.Value)) {
			res.Converged = true
			break
		}
	}
	return res
}

// iterate runs one importance-sampled pass of n calls, folds the estimate
// into the weighted accumulators and refines the grid.
func (v *Vegas) iterate(f Func, n int) {
	volume := 1.0
	for d := 0; d < v.dim; d++ {
		volume *= v.upper[d] - v.lower[d]
		for b := 0; b < bins; b++ {
			v.dist[d][b] = 0
		}
	}

	sum, sumSq := 0.0, 0.0
	binIdx := make([]int, v.dim)

	for i := 0; i < n; i++ {
		jac := volume
		for d := 0; d < v.dim; d++ {
			scaled := v.rng.Float64() * bins
			b := int(scaled)
			if b == bins {
				b = bins - 1
			}
			width := v.grid[d][b+1] - v.grid[d][b]
			u := v.grid[d][b] + (scaled-float64(b))*width

			v.x[d] = v.lower[d] + u*(v.upper[d]-v.lower[d])
			jac *= width * bins
			binIdx[d] = b
		}

		fw := f(v.x) * jac
		sum += fw
		sumSq += fw * fw
		for d := 0; d < v.dim; d++ {
			v.dist[d][binIdx[d]] += fw * fw
		}
	}

	mean := sum / float64(n)
	variance := (sumSq/float64(n) - mean*mean) / float64(n-1)
	if variance <= tiny {
		variance = tiny
	}

	v.sumWeights += 1 / variance
	v.sumWeighted += mean / variance

	for d := 0; d < v.dim; d++ {
		v.refine(d)
	}
}

// refine redistributes the bin boundaries of dimension d so that each bin
// carries an equal share of the (damped, smoothed) sampled weight.
func (v *Vegas) refine(d int) {
	dist := v.dist[d]

	// Smooth with nearest neighbors.
	prev := dist[0]
	dist[0] = (dist[0] + dist[1]) / 2
	for b := 1; b < bins-1; b++ {
		cur := dist[b]
		dist[b] = (prev + cur + dist[b+1]) / 3
		prev = cur
	}
	dist[bins-1] = (prev + dist[bins-1]) / 2

	total := floats.Sum(dist)
	if total <= 0 {
		return
	}

	// Damped subdivision weights.
	rc := 0.0
	for b := 0; b < bins; b++ {
		if dist[b] < tiny {
			dist[b] = tiny
		}
		frac := dist[b] / total
		// (1-f)/(-ln f) -> 1 as f -> 1; avoid the 0/0 there.
		r := 1.0
		if frac < 1-1e-12 {
			r = math.Pow((1-frac)/-math.Log(frac), alpha)
		}
		v.rbuf[b] = r
		rc += r
	}

	// Walk old bins, placing a new boundary after every rc/bins of weight.
	perBin := rc / bins
	newBin, acc := 0, 0.0
	for b := 0; b < bins && newBin < bins-1; b++ {
		acc += v.rbuf[b]
		for acc > perBin && newBin < bins-1 {
			acc -= perBin
			width := v.grid[d][b+1] - v.grid[d][b]
			v.xin[newBin] = v.grid[d][b+1] - width*acc/v.rbuf[b]
			newBin++
		}
	}

	for b := 0; b < bins-1; b++ {
		v.grid[d][b+1] = v.xin[b]
	}
	v.grid[d][bins] = 1
}
