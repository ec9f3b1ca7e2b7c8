package collision

import (
	"log/slog"
	"math"

	"github.com/JulianSchoen/WallGo/geom"
)

const (
	// Mass squares below this bound are treated as zero when they would
	// otherwise appear in a 1/E division.
	msqLowerBound = 1e-8

	// On-shell residual tolerance for accepting a kinematic root.
	rootTolerance = 1e-8

	smallNumber = 1e-50
)

// kinematicInput holds the sample-point quantities shared by every
// collision element's kinematic solve: the fixed momentum p1, the
// integrated momentum p2 and the guessed outgoing direction p3Hat, plus
// their pairwise dot products.
type kinematicInput struct {
	p1, p2   float64
	p1Vec    geom.Vec3
	p2Vec    geom.Vec3
	p3HatVec geom.Vec3

	p1p2Dot    float64
	p1p3HatDot float64
	p2p3HatDot float64
}

func newKinematicInput(p1Vec, p2Vec, p3HatVec geom.Vec3) kinematicInput {
	return kinematicInput{
		p1:         p1Vec.Norm(),
		p2:         p2Vec.Norm(),
		p1Vec:      p1Vec,
		p2Vec:      p2Vec,
		p3HatVec:   p3HatVec,
		p1p2Dot:    p1Vec.Dot(&p2Vec),
		p1p3HatDot: p1Vec.Dot(&p3HatVec),
		p2p3HatDot: p2Vec.Dot(&p3HatVec),
	}
}

// kinematics is one physical solution of energy-momentum conservation: the
// four on-shell momenta and the factor
//
//	p2^2/E2 * p3^2/E3 * 1/|g'(p3)|
//
// arising from trading the on-shell delta function for a sum over the roots
// of g(p3) = 0.
type kinematics struct {
	fv        [4]geom.Vec4
	prefactor float64
}

// solveKinematics resolves energy-momentum conservation plus the on-shell
// condition of particle 4 for the given external mass squares. The
// constraint g(p3) = kappa + del*p3 - eps*E3(p3) = 0 reduces to a quadratic
// in p3; zero, one or two roots survive the physicality cuts. Discarded
// roots are logged at debug level, never fatal.
func solveKinematics(in *kinematicInput, msq *[4]float64, log *slog.Logger) (out [2]kinematics, n int) {
	e1 := math.Sqrt(in.p1*in.p1 + msq[0])
	e2 := math.Sqrt(in.p2*in.p2 + msq[1])

	q := msq[0] + msq[1] + msq[2] - msq[3]
	kappa := q + 2*(e1*e2-in.p1p2Dot)
	eps := 2 * (e1 + e2)
	del := 2 * (in.p1p3HatDot + in.p2p3HatDot)

	// g(p3) = 0 with E3 = sqrt(p3^2 + m3^2) squares to
	// A p3^2 + B p3 + C = 0.
	a := del*del - eps*eps
	b := 2 * kappa * del
	c := kappa*kappa - eps*eps*msq[2]

	var roots [2]float64
	nRoots := 0
	if math.Abs(a) < smallNumber {
		// Degenerate quadratic; the constraint is linear in p3.
		if math.Abs(b) > smallNumber {
			roots[0] = -c / b
			nRoots = 1
		}
	} else {
		disc := b*b - 4*a*c
		if disc >= 0 {
			sq := math.Sqrt(disc)
			roots[0] = 0.5 * (-b - sq) / a
			roots[1] = 0.5 * (-b + sq) / a
			nRoots = 2
			if roots[0] == roots[1] {
				nRoots = 1
			}
		}
	}

	for i := 0; i < nRoots; i++ {
		p3 := roots[i]
		if !(p3 >= 0) {
			continue
		}

		e3 := math.Sqrt(p3*p3 + msq[2])

		// The quadratic admits spurious sign-flipped solutions; verify
		// against the original constraint with the square root.
		if res := kappa + del*p3 - eps*e3; math.Abs(res) > rootTolerance {
			log.Debug("discarding invalid kinematic root",
				"p3", p3, "residual", res)
			continue
		}

		e4 := e1 + e2 - e3
		if e4 < 0 {
			log.Debug("discarding root with negative energy", "E4", e4)
			continue
		}

		k := kinematics{}
		k.fv[0] = geom.NewVec4(e1, in.p1Vec)
		k.fv[1] = geom.NewVec4(e2, in.p2Vec)
		var p3Vec geom.Vec3
		in.p3HatVec.ScaleAt(p3, &p3Vec)
		k.fv[2] = geom.NewVec4(e3, p3Vec)
		var sum12 geom.Vec4
		k.fv[0].AddAt(&k.fv[1], &sum12)
		sum12.SubAt(&k.fv[2], &k.fv[3])

		// Kinematic prefactor; regularize the 1/E divisions for near
		// massless legs to avoid a spurious 0/0 at vanishing momenta.
		pref := 1.0
		if math.Abs(msq[1]) < msqLowerBound {
			pref *= in.p2
		} else {
			pref *= in.p2 * in.p2 / e2
		}
		if math.Abs(msq[2]) < msqLowerBound {
			pref *= p3
		} else {
			pref *= p3 * p3 / e3
		}

		gDer := del - eps
		if math.Abs(msq[2]) >= msqLowerBound {
			gDer = del - eps*p3/e3
		}
		if math.Abs(gDer) < smallNumber {
			log.Debug("discarding root with vanishing constraint derivative",
				"p3", p3)
			continue
		}

		k.prefactor = pref / math.Abs(gDer)
		out[n] = k
		n++
	}

	return out, n
}

// solveKinematicsUltrarelativistic is the fast path used when every
// external particle of a collision element is ultrarelativistic. With all
// masses zero the constraint is linear in p3, so there is a single
// candidate root and no quadratic to solve. The solution depends only on
// the input momenta, not on the element, so it is computed once per sample
// point and shared.
func solveKinematicsUltrarelativistic(in *kinematicInput) (kinematics, bool) {
	e1 := in.p1
	e2 := in.p2

	kappa := 2 * (e1*e2 - in.p1p2Dot)
	epsMinusDel := 2*(e1+e2) - 2*(in.p1p3HatDot+in.p2p3HatDot)
	if epsMinusDel < smallNumber {
		return kinematics{}, false
	}

	p3 := kappa / epsMinusDel
	if !(p3 >= 0) {
		return kinematics{}, false
	}

	e4 := e1 + e2 - p3
	if e4 < 0 {
		return kinematics{}, false
	}

	k := kinematics{}
	k.fv[0] = geom.NewVec4(e1, in.p1Vec)
	k.fv[1] = geom.NewVec4(e2, in.p2Vec)
	var p3Vec geom.Vec3
	in.p3HatVec.ScaleAt(p3, &p3Vec)
	k.fv[2] = geom.NewVec4(p3, p3Vec)
	var sum12 geom.Vec4
	k.fv[0].AddAt(&k.fv[1], &sum12)
	sum12.SubAt(&k.fv[2], &k.fv[3])

	k.prefactor = in.p2 * p3 / epsMinusDel
	return k, true
}
