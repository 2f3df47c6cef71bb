/*
 * primitives.go, part of gostring.
 *
 * Copyright 2024 Raul Mera Adasme <rauldotmeraatusachdotcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package ic

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kind identifies the type of a primitive internal coordinate.
type Kind int

const (
	KindDistance Kind = iota
	KindAngle
	KindDihedral
	KindOutOfPlane
	KindTranslation
	KindRotation
)

func (k Kind) String() string {
	switch k {
	case KindDistance:
		return "Distance"
	case KindAngle:
		return "Angle"
	case KindDihedral:
		return "Dihedral"
	case KindOutOfPlane:
		return "Out-of-Plane"
	case KindTranslation:
		return "Translation"
	case KindRotation:
		return "Rotation"
	}
	return "Unknown"
}

// Primitive is a scalar function of the flattened (3N) cartesian coordinates of a molecule.
// Indexes are 0-based.
type Primitive interface {
	Value(xyz []float64) float64
	//Derivative returns the gradient of the value with respect to xyz. It has len(xyz) elements.
	Derivative(xyz []float64) []float64
	//Diff returns Value(xyz1)-Value(xyz2), following the periodicity of the primitive.
	Diff(xyz1, xyz2 []float64) float64
	Kind() Kind
	Atoms() []int
	//Key identifies the primitive. Two primitives with the same Key are the same coordinate.
	Key() string
	String() string
}

func pos(xyz []float64, i int) r3.Vec {
	return r3.Vec{X: xyz[3*i], Y: xyz[3*i+1], Z: xyz[3*i+2]}
}

func put(d []float64, i int, v r3.Vec) {
	d[3*i] += v.X
	d[3*i+1] += v.Y
	d[3*i+2] += v.Z
}

// wrapAngle takes a to the (-pi, pi] interval.
func wrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func intKey(name string, atoms []int) string {
	s := make([]string, len(atoms))
	for i, v := range atoms {
		s[i] = fmt.Sprint(v)
	}
	return name + " " + strings.Join(s, "-")
}

/****Distance****/

// Distance is the distance between atoms A and B.
type Distance struct {
	A, B int
}

// NewDistance returns the distance between a and b, with the lower index first.
func NewDistance(a, b int) *Distance {
	if a > b {
		a, b = b, a
	}
	return &Distance{A: a, B: b}
}

func (D *Distance) Value(xyz []float64) float64 {
	return r3.Norm(r3.Sub(pos(xyz, D.A), pos(xyz, D.B)))
}

func (D *Distance) Derivative(xyz []float64) []float64 {
	d := make([]float64, len(xyz))
	u := r3.Unit(r3.Sub(pos(xyz, D.A), pos(xyz, D.B)))
	put(d, D.A, u)
	put(d, D.B, r3.Scale(-1, u))
	return d
}

func (D *Distance) Diff(xyz1, xyz2 []float64) float64 {
	return D.Value(xyz1) - D.Value(xyz2)
}

func (D *Distance) Kind() Kind     { return KindDistance }
func (D *Distance) Atoms() []int   { return []int{D.A, D.B} }
func (D *Distance) Key() string    { return intKey("Distance", D.Atoms()) }
func (D *Distance) String() string { return fmt.Sprintf("Distance %d-%d", D.A+1, D.B+1) }

/****Angle****/

// Angle is the A-B-C angle, with B in the vertex.
type Angle struct {
	A, B, C int
}

// NewAngle returns the a-b-c angle, with the lower of a and c first.
func NewAngle(a, b, c int) *Angle {
	if a > c {
		a, c = c, a
	}
	return &Angle{A: a, B: b, C: c}
}

func (An *Angle) Value(xyz []float64) float64 {
	u := r3.Unit(r3.Sub(pos(xyz, An.A), pos(xyz, An.B)))
	v := r3.Unit(r3.Sub(pos(xyz, An.C), pos(xyz, An.B)))
	dot := r3.Dot(u, v)
	dot = math.Max(-1, math.Min(1, dot))
	return math.Acos(dot)
}

func (An *Angle) Derivative(xyz []float64) []float64 {
	d := make([]float64, len(xyz))
	u := r3.Sub(pos(xyz, An.A), pos(xyz, An.B))
	v := r3.Sub(pos(xyz, An.C), pos(xyz, An.B))
	lu := r3.Norm(u)
	lv := r3.Norm(v)
	u = r3.Scale(1/lu, u)
	v = r3.Scale(1/lv, v)
	w := r3.Cross(u, v)
	if r3.Norm(w) < 1e-6 {
		//(nearly) linear, any perpendicular direction will do.
		w = r3.Cross(u, r3.Vec{X: 1, Y: -1, Z: 1})
		if r3.Norm(w) < 1e-6 {
			w = r3.Cross(u, r3.Vec{X: -1, Y: 1, Z: 1})
		}
	}
	w = r3.Unit(w)
	term1 := r3.Scale(1/lu, r3.Cross(u, w))
	term2 := r3.Scale(1/lv, r3.Cross(w, v))
	put(d, An.A, term1)
	put(d, An.C, term2)
	put(d, An.B, r3.Scale(-1, r3.Add(term1, term2)))
	return d
}

func (An *Angle) Diff(xyz1, xyz2 []float64) float64 {
	return An.Value(xyz1) - An.Value(xyz2)
}

func (An *Angle) Kind() Kind     { return KindAngle }
func (An *Angle) Atoms() []int   { return []int{An.A, An.B, An.C} }
func (An *Angle) Key() string    { return intKey("Angle", An.Atoms()) }
func (An *Angle) String() string { return fmt.Sprintf("Angle %d-%d-%d", An.A+1, An.B+1, An.C+1) }

/****Dihedral and out-of-plane****/

func dihedralValue(xyz []float64, a, b, c, d int) float64 {
	b1 := r3.Sub(pos(xyz, b), pos(xyz, a))
	b2 := r3.Sub(pos(xyz, c), pos(xyz, b))
	b3 := r3.Sub(pos(xyz, d), pos(xyz, c))
	n1 := r3.Cross(b1, b2)
	n2 := r3.Cross(b2, b3)
	y := r3.Dot(b1, n2) * r3.Norm(b2)
	x := r3.Dot(n1, n2)
	return math.Atan2(y, x)
}

// dihedralDerivative follows Blondel and Karplus, J. Comput. Chem. 17, 1132 (1996),
// for the IUPAC sign convention used in dihedralValue.
func dihedralDerivative(xyz []float64, a, b, c, d int) []float64 {
	der := make([]float64, len(xyz))
	b1 := r3.Sub(pos(xyz, b), pos(xyz, a))
	b2 := r3.Sub(pos(xyz, c), pos(xyz, b))
	b3 := r3.Sub(pos(xyz, d), pos(xyz, c))
	n1 := r3.Cross(b1, b2)
	n2 := r3.Cross(b2, b3)
	n1sq := r3.Norm2(n1)
	n2sq := r3.Norm2(n2)
	lb2 := r3.Norm(b2)
	if n1sq < 1e-12 || n2sq < 1e-12 || lb2 < 1e-12 {
		//undefined for collinear atoms.
		return der
	}
	da := r3.Scale(-lb2/n1sq, n1)
	dd := r3.Scale(lb2/n2sq, n2)
	p := r3.Dot(b1, b2) / (lb2 * lb2)
	r := r3.Dot(b3, b2) / (lb2 * lb2)
	db := r3.Add(r3.Scale(-(1+p), da), r3.Scale(r, dd))
	dc := r3.Add(r3.Scale(p, da), r3.Scale(-(1+r), dd))
	put(der, a, da)
	put(der, b, db)
	put(der, c, dc)
	put(der, d, dd)
	return der
}

// Dihedral is the A-B-C-D torsion, in radians, in the (-pi, pi] interval.
type Dihedral struct {
	A, B, C, D int
}

// NewDihedral returns the a-b-c-d dihedral, reversed if needed so that the first index is
// lower than the last one. The value does not change upon reversal.
func NewDihedral(a, b, c, d int) *Dihedral {
	if a > d {
		a, b, c, d = d, c, b, a
	}
	return &Dihedral{A: a, B: b, C: c, D: d}
}

func (Di *Dihedral) Value(xyz []float64) float64 {
	return dihedralValue(xyz, Di.A, Di.B, Di.C, Di.D)
}

func (Di *Dihedral) Derivative(xyz []float64) []float64 {
	return dihedralDerivative(xyz, Di.A, Di.B, Di.C, Di.D)
}

func (Di *Dihedral) Diff(xyz1, xyz2 []float64) float64 {
	return wrapAngle(Di.Value(xyz1) - Di.Value(xyz2))
}

func (Di *Dihedral) Kind() Kind   { return KindDihedral }
func (Di *Dihedral) Atoms() []int { return []int{Di.A, Di.B, Di.C, Di.D} }
func (Di *Dihedral) Key() string  { return intKey("Dihedral", Di.Atoms()) }
func (Di *Dihedral) String() string {
	return fmt.Sprintf("Dihedral %d-%d-%d-%d", Di.A+1, Di.B+1, Di.C+1, Di.D+1)
}

// OutOfPlane measures the pyramidalization of the center A, bonded to B, C and D.
// It is the A-B-C-D torsion.
type OutOfPlane struct {
	A, B, C, D int
}

// NewOutOfPlane returns the out-of-plane coordinate for the center a.
func NewOutOfPlane(a, b, c, d int) *OutOfPlane {
	return &OutOfPlane{A: a, B: b, C: c, D: d}
}

func (O *OutOfPlane) Value(xyz []float64) float64 {
	return dihedralValue(xyz, O.A, O.B, O.C, O.D)
}

func (O *OutOfPlane) Derivative(xyz []float64) []float64 {
	return dihedralDerivative(xyz, O.A, O.B, O.C, O.D)
}

func (O *OutOfPlane) Diff(xyz1, xyz2 []float64) float64 {
	return wrapAngle(O.Value(xyz1) - O.Value(xyz2))
}

func (O *OutOfPlane) Kind() Kind   { return KindOutOfPlane }
func (O *OutOfPlane) Atoms() []int { return []int{O.A, O.B, O.C, O.D} }
func (O *OutOfPlane) Key() string  { return intKey("Out-of-Plane", O.Atoms()) }
func (O *OutOfPlane) String() string {
	return fmt.Sprintf("Out-of-Plane %d-%d-%d-%d", O.A+1, O.B+1, O.C+1, O.D+1)
}

/****Translation and rotation of fragments****/

var axisNames = [3]string{"X", "Y", "Z"}

// Translation is the weighted mean position of a set of atoms along one axis (0, 1 or 2).
type Translation struct {
	Axis  int
	atoms []int
	w     []float64
}

// NewTranslation returns the translation of the center of atoms along axis.
func NewTranslation(axis int, atoms []int) *Translation {
	if axis < 0 || axis > 2 {
		panic(ErrUnknownAxis)
	}
	w := make([]float64, len(atoms))
	for i := range w {
		w[i] = 1 / float64(len(atoms))
	}
	a := make([]int, len(atoms))
	copy(a, atoms)
	return &Translation{Axis: axis, atoms: a, w: w}
}

func (T *Translation) Value(xyz []float64) float64 {
	var v float64
	for i, at := range T.atoms {
		v += T.w[i] * xyz[3*at+T.Axis]
	}
	return v
}

func (T *Translation) Derivative(xyz []float64) []float64 {
	d := make([]float64, len(xyz))
	for i, at := range T.atoms {
		d[3*at+T.Axis] = T.w[i]
	}
	return d
}

func (T *Translation) Diff(xyz1, xyz2 []float64) float64 {
	return T.Value(xyz1) - T.Value(xyz2)
}

func (T *Translation) Kind() Kind   { return KindTranslation }
func (T *Translation) Atoms() []int { return T.atoms }
func (T *Translation) Key() string  { return intKey("Translation-"+axisNames[T.Axis], T.atoms) }
func (T *Translation) String() string {
	return fmt.Sprintf("Translation-%s %d-%d", axisNames[T.Axis], T.atoms[0]+1, T.atoms[len(T.atoms)-1]+1)
}

// Rotation is one component (Axis 0, 1 or 2) of the linearized rotation vector of a set of
// atoms, relative to a reference geometry of those atoms. It is scaled by the radius
// of gyration of the reference, so it has units of length. The linearization is exact at
// the reference and good for rotations of a few tens of degrees.
type Rotation struct {
	Axis  int
	atoms []int
	ref   []r3.Vec //reference positions, centered.
	scale float64  //rg/sum(|ref|^2)
}

// NewRotation returns the rotation component axis for atoms, with xyz as reference geometry.
func NewRotation(axis int, atoms []int, xyz []float64) *Rotation {
	if axis < 0 || axis > 2 {
		panic(ErrUnknownAxis)
	}
	a := make([]int, len(atoms))
	copy(a, atoms)
	var c r3.Vec
	for _, at := range a {
		c = r3.Add(c, pos(xyz, at))
	}
	c = r3.Scale(1/float64(len(a)), c)
	ref := make([]r3.Vec, len(a))
	var s float64
	for i, at := range a {
		ref[i] = r3.Sub(pos(xyz, at), c)
		s += r3.Norm2(ref[i])
	}
	rg := math.Sqrt(s / float64(len(a)))
	scale := 0.0
	if s > 0 {
		scale = rg / s
	}
	return &Rotation{Axis: axis, atoms: a, ref: ref, scale: scale}
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

func (R *Rotation) Value(xyz []float64) float64 {
	var v r3.Vec
	for i, at := range R.atoms {
		v = r3.Add(v, r3.Cross(R.ref[i], pos(xyz, at)))
	}
	return R.scale * component(v, R.Axis)
}

func (R *Rotation) Derivative(xyz []float64) []float64 {
	d := make([]float64, len(xyz))
	for i, at := range R.atoms {
		a := R.ref[i]
		var g r3.Vec
		//d(a x r)_k/dr
		switch R.Axis {
		case 0:
			g = r3.Vec{X: 0, Y: -a.Z, Z: a.Y}
		case 1:
			g = r3.Vec{X: a.Z, Y: 0, Z: -a.X}
		default:
			g = r3.Vec{X: -a.Y, Y: a.X, Z: 0}
		}
		put(d, at, r3.Scale(R.scale, g))
	}
	return d
}

func (R *Rotation) Diff(xyz1, xyz2 []float64) float64 {
	return R.Value(xyz1) - R.Value(xyz2)
}

func (R *Rotation) Kind() Kind   { return KindRotation }
func (R *Rotation) Atoms() []int { return R.atoms }
func (R *Rotation) Key() string  { return intKey("Rotation-"+axisNames[R.Axis], R.atoms) }
func (R *Rotation) String() string {
	return fmt.Sprintf("Rotation-%s %d-%d", axisNames[R.Axis], R.atoms[0]+1, R.atoms[len(R.atoms)-1]+1)
}
