package collision

import (
	"fmt"

	"github.com/JulianSchoen/WallGo/geom"
	"github.com/JulianSchoen/WallGo/matrixelem"
)

// deltaFSign is +1 for incoming legs and -1 for outgoing legs in the
// linearized population factor.
var deltaFSign = [4]float64{1, 1, -1, -1}

// Element is one scattering process contributing to a collision integral:
// four external particle references (leg 0 is the fixed incoming particle),
// a compiled matrix element and flags marking which legs carry a deviation
// function. Elements are owned by exactly one Integral; particle pointers
// are non-owning references into the manager's registry.
type Element struct {
	particles [4]*ParticleSpecies
	matrix    *matrixelem.MatrixElement
	deltaF    [4]bool

	// Dispersion-relation mass squares, captured by value at build time.
	// RefreshMasses must be called after particle mass updates.
	msq [4]float64

	ultrarelativistic bool
}

// NewElement builds a collision element. At least one leg must carry a
// deviation function for the element to contribute anything.
func NewElement(particles [4]*ParticleSpecies, matrix *matrixelem.MatrixElement, deltaF [4]bool) (*Element, error) {
	for i, p := range particles {
		if p == nil {
			return nil, fmt.Errorf("collision: element leg %d has no particle", i)
		}
	}

	el := &Element{particles: particles, matrix: matrix, deltaF: deltaF}
	el.RefreshMasses()
	return el, nil
}

// Particles returns the external particle references.
func (el *Element) Particles() [4]*ParticleSpecies { return el.particles }

// Ultrarelativistic reports whether every external leg is
// ultrarelativistic, enabling the optimized kinematic path.
func (el *Element) Ultrarelativistic() bool { return el.ultrarelativistic }

// RefreshMasses re-captures the dispersion mass squares from the particle
// registry. Mandatory after a bulk mass update, since the values here are
// held by value.
func (el *Element) RefreshMasses() {
	ur := true
	for i, p := range el.particles {
		el.msq[i] = p.TotalMsq()
		ur = ur && p.Ultrarelativistic
	}
	el.ultrarelativistic = ur
}

// syncParameters refreshes the matrix element's private parameter buffer
// from the shared model-parameter table.
func (el *Element) syncParameters() {
	el.matrix.SyncParameters()
}

// clone returns a copy safe for use by a concurrent worker: the matrix
// element's argument buffer is private, particle references and the
// parameter table stay shared read-only.
func (el *Element) clone() *Element {
	c := *el
	c.matrix = el.matrix.Clone()
	return &c
}

// evaluate computes this process's contribution at one kinematic solution:
// |M|^2(s,t,u) times the linearized statistical population factor, with the
// deviation function on each flagged leg replaced by the basis product
// tmtn[leg] evaluated at that leg's momentum.
//
// Safe to call concurrently on distinct clones; a single Element must not
// be shared between workers because the matrix-element argument buffer is
// mutated in place.
func (el *Element) evaluate(momenta *[4]geom.Vec4, tmtn *[4]float64) (float64, error) {
	s, t, u := geom.Mandelstam(&momenta[0], &momenta[1], &momenta[2], &momenta[3])

	msqM, err := el.matrix.Evaluate(s, t, u)
	if err != nil {
		return 0, err
	}

	// Equilibrium distributions and their Pauli/Bose counterparts
	// fbar = 1 + eta f.
	var f, fbar [4]float64
	for i, p := range el.particles {
		f[i] = p.FEq(momenta[i].Energy())
		fbar[i] = 1 + p.Stats.Eta()*f[i]
	}

	// Linearized population factor:
	//   f1 f2 fbar3 fbar4 * sum_i s_i tmtn_i / (f_i fbar_i)
	// summed over the legs carrying a deviation function.
	population := 0.0
	for i := range el.particles {
		if !el.deltaF[i] {
			continue
		}
		population += deltaFSign[i] * tmtn[i] / (f[i] * fbar[i])
	}
	population *= f[0] * f[1] * fbar[2] * fbar[3]

	return msqM * population, nil
}
