package ic

import "gonum.org/v1/gonum/mat"

// PrimitiveSet is an ordered collection of primitives without duplicates.
type PrimitiveSet struct {
	prims []Primitive
	index map[string]int
}

// NewPrimitiveSet returns a set with the given primitives, dropping duplicates.
func NewPrimitiveSet(prims ...Primitive) *PrimitiveSet {
	P := &PrimitiveSet{index: make(map[string]int)}
	for _, p := range prims {
		P.Add(p)
	}
	return P
}

// Add appends p to the set, unless an equivalent primitive is already there.
// It returns true if p was added.
func (P *PrimitiveSet) Add(p Primitive) bool {
	k := p.Key()
	if _, ok := P.index[k]; ok {
		return false
	}
	P.index[k] = len(P.prims)
	P.prims = append(P.prims, p)
	return true
}

// Len returns the number of primitives in the set.
func (P *PrimitiveSet) Len() int { return len(P.prims) }

// At returns the ith primitive.
func (P *PrimitiveSet) At(i int) Primitive { return P.prims[i] }

// DofIndex returns the position of p in the set, or -1 if it is not present.
func (P *PrimitiveSet) DofIndex(p Primitive) int {
	if i, ok := P.index[p.Key()]; ok {
		return i
	}
	return -1
}

// Values returns the value of every primitive at xyz.
func (P *PrimitiveSet) Values(xyz []float64) []float64 {
	ret := make([]float64, len(P.prims))
	for i, p := range P.prims {
		ret[i] = p.Value(xyz)
	}
	return ret
}

// Diffs returns the difference, primitive by primitive, between xyz1 and xyz2.
func (P *PrimitiveSet) Diffs(xyz1, xyz2 []float64) []float64 {
	ret := make([]float64, len(P.prims))
	for i, p := range P.prims {
		ret[i] = p.Diff(xyz1, xyz2)
	}
	return ret
}

// guess force constants, Hartree/A^2 and Hartree/rad^2.
var guessForceConstant = map[Kind]float64{
	KindDistance:    0.35,
	KindAngle:       0.16,
	KindDihedral:    0.023,
	KindOutOfPlane:  0.045,
	KindTranslation: 0.05,
	KindRotation:    0.05,
}

// GuessHessian returns a diagonal model Hessian in the primitive space.
func (P *PrimitiveSet) GuessHessian() *mat.Dense {
	n := len(P.prims)
	H := mat.NewDense(n, n, nil)
	for i, p := range P.prims {
		H.Set(i, i, guessForceConstant[p.Kind()])
	}
	return H
}
