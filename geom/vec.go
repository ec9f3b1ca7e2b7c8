/*package geom contains relativistic vector primitives used by the collision
integrals: spatial 3-vectors and four-vectors with the (+,-,-,-) metric.
*/
package geom

import (
	"math"
)

// Vec3 is a spatial momentum vector.
type Vec3 [3]float64

// Vec4 is a four-vector (E, px, py, pz) with metric signature (+,-,-,-).
type Vec4 [4]float64

// NewVec3 constructs a 3-vector from spherical variables: a magnitude p,
// a polar cosine and an azimuthal angle.
func NewVec3(p, cosTheta, phi float64) Vec3 {
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	return Vec3{
		p * sinTheta * math.Cos(phi),
		p * sinTheta * math.Sin(phi),
		p * cosTheta,
	}
}

// Dot computes the Euclidean inner product of v1 and v2.
func (v1 *Vec3) Dot(v2 *Vec3) float64 {
	return v1[0]*v2[0] + v1[1]*v2[1] + v1[2]*v2[2]
}

// Norm computes the Euclidean length of v.
func (v *Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// AddAt stores v1 + v2 in out.
func (v1 *Vec3) AddAt(v2, out *Vec3) {
	out[0] = v1[0] + v2[0]
	out[1] = v1[1] + v2[1]
	out[2] = v1[2] + v2[2]
}

// ScaleAt stores s*v in out.
func (v *Vec3) ScaleAt(s float64, out *Vec3) {
	out[0] = s * v[0]
	out[1] = s * v[1]
	out[2] = s * v[2]
}

// NewVec4 constructs a four-vector from an energy and a spatial 3-vector.
func NewVec4(e float64, p Vec3) Vec4 {
	return Vec4{e, p[0], p[1], p[2]}
}

// Energy returns the time component of p.
func (p *Vec4) Energy() float64 { return p[0] }

// Pz returns the longitudinal momentum component. The z axis points along
// the wall normal.
func (p *Vec4) Pz() float64 { return p[3] }

// PPar returns the magnitude of the momentum transverse to the z axis.
func (p *Vec4) PPar() float64 {
	return math.Sqrt(p[1]*p[1] + p[2]*p[2])
}

// Spatial returns the spatial part of p.
func (p *Vec4) Spatial() Vec3 {
	return Vec3{p[1], p[2], p[3]}
}

// Dot computes the Minkowski inner product p1.p2 with signature (+,-,-,-).
func (p1 *Vec4) Dot(p2 *Vec4) float64 {
	return p1[0]*p2[0] - p1[1]*p2[1] - p1[2]*p2[2] - p1[3]*p2[3]
}

// MSq computes the invariant mass squared p.p.
func (p *Vec4) MSq() float64 {
	return p.Dot(p)
}

// AddAt stores p1 + p2 in out.
func (p1 *Vec4) AddAt(p2, out *Vec4) {
	for i := 0; i < 4; i++ {
		out[i] = p1[i] + p2[i]
	}
}

// SubAt stores p1 - p2 in out.
func (p1 *Vec4) SubAt(p2, out *Vec4) {
	for i := 0; i < 4; i++ {
		out[i] = p1[i] - p2[i]
	}
}

// Mandelstam computes the Lorentz invariants s, t, u of a 2 -> 2 process
// with incoming momenta p1, p2 and outgoing momenta p3, p4.
func Mandelstam(p1, p2, p3, p4 *Vec4) (s, t, u float64) {
	var sum, diff Vec4

	p1.AddAt(p2, &sum)
	s = sum.MSq()
	p1.SubAt(p3, &diff)
	t = diff.MSq()
	p1.SubAt(p4, &diff)
	u = diff.MSq()

	return s, t, u
}
