/*package collision evaluates 2 -> 2 collision integrals on a spectral
polynomial grid. One particle is fixed as the incoming particle whose
momentum is not integrated over; the 9-dimensional phase-space integral has
been reduced analytically to a 5-dimensional one over
{p2, phi2, phi3, cosTheta2, cosTheta3}, with the remaining outgoing momentum
magnitude fixed by an on-shell delta function.

All energies, momenta and masses are in units of the temperature.
*/
package collision

import (
	"math"
)

// Statistics is the quantum statistics of a particle species.
type Statistics int

const (
	Boson Statistics = iota
	Fermion
)

func (s Statistics) String() string {
	if s == Fermion {
		return "Fermion"
	}
	return "Boson"
}

// Eta is +1 for bosons and -1 for fermions, the sign appearing in the
// equilibrium distribution 1/(exp(E) - eta).
func (s Statistics) Eta() float64 {
	if s == Fermion {
		return -1
	}
	return 1
}

// ParticleSpecies describes one particle in the collision model. Species
// live in the manager's registry; collision elements hold non-owning
// pointers into it. Mass fields are mutable through the manager, everything
// else is fixed at registration.
type ParticleSpecies struct {
	Name          string
	Stats         Statistics
	InEquilibrium bool

	// Mass squares in units of temperature squared.
	MsqVacuum  float64
	MsqThermal float64

	// Ultrarelativistic species have their mass neglected in dispersion
	// relations. Masses inside matrix-element propagators are model
	// parameters and are not affected by this flag.
	Ultrarelativistic bool
}

// TotalMsq is the mass square entering dispersion relations: vacuum plus
// thermal, or exactly zero for ultrarelativistic species.
func (p *ParticleSpecies) TotalMsq() float64 {
	if p.Ultrarelativistic {
		return 0
	}
	return p.MsqVacuum + p.MsqThermal
}

// FEq is the equilibrium distribution at energy e.
func (p *ParticleSpecies) FEq(e float64) float64 {
	return 1 / (math.Exp(e) - p.Stats.Eta())
}
