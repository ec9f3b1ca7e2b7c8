/*package basis implements the Chebyshev spectral basis used to expand
out-of-equilibrium deviation functions, together with the compactified
momentum coordinates of the collision grid.

Momenta are measured in units of the temperature. The longitudinal momentum
pZ in (-inf, inf) maps to rhoZ in (-1, 1) and the transverse magnitude pPar
in [0, inf) maps to rhoPar in [-1, 1):

	rhoZ   = tanh(pZ / 2)
	rhoPar = 1 - 2 exp(-pPar)
*/
package basis

import (
	"math"

	"github.com/JulianSchoen/WallGo/geom"
)

// Chebyshev evaluates the Chebyshev polynomial of the first kind T_m(x).
// For x outside [-1, 1] the hyperbolic continuation is used.
func Chebyshev(m int, x float64) float64 {
	switch {
	case m == 0:
		return 1
	case m == 1:
		return x
	case x > 1:
		return math.Cosh(float64(m) * math.Acosh(x))
	case x < -1:
		sign := 1.0
		if m%2 == 1 {
			sign = -1.0
		}
		return sign * math.Cosh(float64(m)*math.Acosh(-x))
	}
	return math.Cos(float64(m) * math.Acos(x))
}

// RhoZToPz inverts rhoZ = tanh(pZ/2).
func RhoZToPz(rhoZ float64) float64 { return 2 * math.Atanh(rhoZ) }

// PzToRhoZ compactifies the longitudinal momentum.
func PzToRhoZ(pZ float64) float64 { return math.Tanh(pZ / 2) }

// RhoParToPPar inverts rhoPar = 1 - 2 exp(-pPar).
func RhoParToPPar(rhoPar float64) float64 { return -math.Log((1 - rhoPar) / 2) }

// PParToRhoPar compactifies the transverse momentum magnitude.
func PParToRhoPar(pPar float64) float64 { return 1 - 2*math.Exp(-pPar) }

// Basis is a polynomial basis of a fixed size N. Polynomial indices m, n and
// momentum node indices j, k all run over [0, N).
type Basis struct {
	n int
}

// New creates a basis with n polynomials per direction. n must be >= 1.
func New(n int) Basis {
	if n < 1 {
		panic("basis: size must be >= 1")
	}
	return Basis{n: n}
}

// Size returns the number of basis polynomials per direction.
func (b Basis) Size() int { return b.n }

// RhoZNode returns the j-th longitudinal grid node, an interior Chebyshev
// node in (-1, 1). The nodes are antisymmetric: RhoZNode(j) =
// -RhoZNode(N-1-j).
func (b Basis) RhoZNode(j int) float64 {
	return -math.Cos(math.Pi * float64(j+1) / float64(b.n+1))
}

// RhoParNode returns the k-th transverse grid node in (-1, 1).
func (b Basis) RhoParNode(k int) float64 {
	return -math.Cos(math.Pi * float64(k+1) / float64(b.n+1))
}

// PzNode returns the longitudinal momentum at node j.
func (b Basis) PzNode(j int) float64 { return RhoZToPz(b.RhoZNode(j)) }

// PParNode returns the transverse momentum magnitude at node k.
func (b Basis) PParNode(k int) float64 { return RhoParToPPar(b.RhoParNode(k)) }

// TmTn evaluates the separable deviation-function ansatz
// T_m(rhoZ(pZ)) * T_n(rhoPar(pPar)) at the momentum p.
func (b Basis) TmTn(m, n int, p *geom.Vec4) float64 {
	return Chebyshev(m, PzToRhoZ(p.Pz())) * Chebyshev(n, PParToRhoPar(p.PPar()))
}
