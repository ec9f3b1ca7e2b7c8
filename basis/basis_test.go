package basis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JulianSchoen/WallGo/geom"
)

func TestChebyshev(t *testing.T) {
	xs := []float64{-1, -0.7, -0.25, 0, 0.3, 0.9, 1}
	for _, x := range xs {
		assert.InDelta(t, 1.0, Chebyshev(0, x), 1e-14)
		assert.InDelta(t, x, Chebyshev(1, x), 1e-14)
		assert.InDelta(t, 2*x*x-1, Chebyshev(2, x), 1e-13)
		assert.InDelta(t, 4*x*x*x-3*x, Chebyshev(3, x), 1e-13)
	}
	// Recurrence T_{m+1} = 2x T_m - T_{m-1} at higher order.
	x := 0.42
	for m := 1; m < 12; m++ {
		assert.InDelta(t, 2*x*Chebyshev(m, x)-Chebyshev(m-1, x),
			Chebyshev(m+1, x), 1e-12)
	}
}

func TestCoordinateMapRoundTrips(t *testing.T) {
	for _, pZ := range []float64{-8, -1.5, 0, 0.03, 2, 10} {
		assert.InDelta(t, pZ, RhoZToPz(PzToRhoZ(pZ)), 1e-9, "pZ round trip")
	}
	for _, pPar := range []float64{0, 0.01, 0.7, 3, 15} {
		assert.InDelta(t, pPar, RhoParToPPar(PParToRhoPar(pPar)), 1e-9,
			"pPar round trip")
	}
	assert.InDelta(t, 0.0, PzToRhoZ(0), 1e-15)
	assert.InDelta(t, -1.0, PParToRhoPar(0), 1e-15)
}

func TestNodeSymmetry(t *testing.T) {
	for _, n := range []int{1, 2, 5, 8} {
		b := New(n)
		for j := 0; j < n; j++ {
			rho := b.RhoZNode(j)
			assert.Less(t, math.Abs(rho), 1.0, "interior node")
			assert.InDelta(t, -rho, b.RhoZNode(n-1-j), 1e-14,
				"node antisymmetry")
		}
	}

	// Size 1 puts the single longitudinal node at the origin.
	b := New(1)
	assert.InDelta(t, 0.0, b.RhoZNode(0), 1e-15)
	assert.InDelta(t, 0.0, b.PzNode(0), 1e-15)
	assert.Greater(t, b.PParNode(0), 0.0)
}

func TestTmTn(t *testing.T) {
	b := New(3)
	p := geom.NewVec4(5, geom.NewVec3(2.0, 0.6, 1.0))

	want := Chebyshev(2, PzToRhoZ(p.Pz())) *
		Chebyshev(1, PParToRhoPar(p.PPar()))
	assert.InDelta(t, want, b.TmTn(2, 1, &p), 1e-14)

	// (m, n) = (0, 0) is the constant ansatz.
	assert.InDelta(t, 1.0, b.TmTn(0, 0, &p), 1e-14)
}
