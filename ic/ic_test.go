/*
 * ic_test.go, part of gostring.
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
	"errors"
	"math"
	"testing"

	chem "github.com/rmera/gostring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func topo(Te *testing.T, symbols ...string) *chem.Topology {
	ats := make([]*chem.Atom, len(symbols))
	for i, s := range symbols {
		ats[i] = chem.NewAtom(s)
	}
	top, err := chem.NewTopology(ats, 0, 0)
	require.NoError(Te, err)
	return top
}

type testMol struct {
	name    string
	symbols []string
	xyz     []float64
}

var testMols = []testMol{
	{"linear", []string{"C", "O", "O"}, []float64{
		0, 0, 0,
		1.16, 0, 0,
		-1.16, 0, 0}},
	{"bent", []string{"O", "H", "H"}, []float64{
		0, 0, 0,
		0.9572, 0, 0,
		-0.239987, 0.926627, 0}},
	{"planar", []string{"C", "O", "H", "H"}, []float64{
		0, 0, 0,
		1.21, 0, 0,
		-0.55, 0.94, 0.02,
		-0.55, -0.94, 0.01}},
	{"chiral", []string{"C", "H", "F", "Cl", "Br"}, []float64{
		0, 0, 0,
		0.629, 0.629, 0.629,
		-0.78, -0.78, 0.78,
		-1.02, 1.02, -1.02,
		1.12, -1.12, -1.12}},
	{"torsion", []string{"O", "O", "H", "H"}, []float64{
		0, 0, 0,
		1.45, 0, 0,
		-0.3, 0.92, 0,
		1.75, -0.33, 0.86}},
}

func engineFor(Te *testing.T, m testMol, o BuildOptions, opts ...Option) *Engine {
	P, err := Build(topo(Te, m.symbols...), [][]float64{m.xyz}, o)
	require.NoError(Te, err)
	return NewEngine(P, len(m.symbols), opts...)
}

func TestBuildWater(Te *testing.T) {
	E := engineFor(Te, testMols[1], BuildOptions{})
	require.Equal(Te, 3, E.NPrims())
	assert.Equal(Te, KindDistance, E.Prims().At(0).Kind())
	assert.Equal(Te, KindDistance, E.Prims().At(1).Kind())
	assert.Equal(Te, KindAngle, E.Prims().At(2).Kind())
	v := E.Calculate(testMols[1].xyz)
	assert.InDelta(Te, 0.9572, v[0], 1e-4)
	assert.InDelta(Te, 104.5, v[2]*180/math.Pi, 0.1)
}

func TestBuildSkipsLinear(Te *testing.T) {
	E := engineFor(Te, testMols[0], BuildOptions{})
	assert.Equal(Te, 2, E.NPrims())
}

func TestBuildPrimitiveKinds(Te *testing.T) {
	E := engineFor(Te, testMols[2], BuildOptions{})
	var oop int
	for i := 0; i < E.NPrims(); i++ {
		if E.Prims().At(i).Kind() == KindOutOfPlane {
			oop++
		}
	}
	assert.Equal(Te, 1, oop)
	E = engineFor(Te, testMols[4], BuildOptions{})
	assert.Equal(Te, 0, E.Prims().DofIndex(NewDistance(1, 0)))
	assert.GreaterOrEqual(Te, E.Prims().DofIndex(NewDihedral(3, 1, 0, 2)), 0)
}

var waterDimer = testMol{"dimer", []string{"O", "H", "H", "O", "H", "H"}, []float64{
	0, 0, 0,
	0.9572, 0, 0,
	-0.239987, 0.926627, 0,
	5, 0, 0,
	5.9572, 0, 0,
	4.760013, 0.926627, 0}}

func TestBuildFragments(Te *testing.T) {
	E := engineFor(Te, waterDimer, BuildOptions{})
	assert.GreaterOrEqual(Te, E.Prims().DofIndex(NewDistance(1, 5)), 0)
	for i := 0; i < E.NPrims(); i++ {
		assert.NotEqual(Te, KindTranslation, E.Prims().At(i).Kind())
	}
	E = engineFor(Te, waterDimer, BuildOptions{TRIC: true})
	assert.Equal(Te, 18, E.NPrims())
	assert.Equal(Te, -1, E.Prims().DofIndex(NewDistance(1, 5)))
}

func TestBuildExtra(Te *testing.T) {
	extra := NewDistance(1, 2)
	E := engineFor(Te, testMols[1], BuildOptions{Extra: []Primitive{extra, NewDistance(0, 1)}})
	assert.Equal(Te, 4, E.NPrims())
	assert.Equal(Te, 3, E.Prims().DofIndex(extra))
}

func TestFiniteDifference(Te *testing.T) {
	mols := append([]testMol{}, testMols...)
	mols = append(mols, waterDimer)
	for _, m := range mols {
		for _, tric := range []bool{false, true} {
			E := engineFor(Te, m, BuildOptions{TRIC: tric})
			for _, r := range E.CheckFiniteDifference(m.xyz) {
				assert.True(Te, r.Pass, "%s %s max error %g", m.name, r.Primitive, r.MaxErr)
			}
		}
	}
}

func TestWilsonBCache(Te *testing.T) {
	m := testMols[3]
	E := engineFor(Te, m, BuildOptions{})
	x := append([]float64{}, m.xyz...)
	B1 := E.WilsonB(m.xyz)
	B2 := E.WilsonB(x)
	assert.Same(Te, B1, B2)
	assert.Equal(Te, 1, E.CacheLen())
	x[0] += 1e-3
	B3 := E.WilsonB(x)
	assert.NotSame(Te, B1, B3)
	assert.Equal(Te, 2, E.CacheLen())
	r, c := B1.Dims()
	assert.Equal(Te, E.NPrims(), r)
	assert.Equal(Te, 15, c)
	E.ClearCache()
	assert.Equal(Te, 0, E.CacheLen())
	C := E.Copy()
	assert.Equal(Te, 0, C.CacheLen())
	assert.Same(Te, E.Prims(), C.Prims())
	assert.Panics(Te, func() { E.WilsonB(x[:6]) })
}

func TestGMatrixAndInverse(Te *testing.T) {
	m := testMols[4]
	for _, method := range []GInverseMethod{SVD, Eig} {
		E := engineFor(Te, m, BuildOptions{}, WithGInverse(method))
		B := E.WilsonB(m.xyz)
		G := E.GMatrix(m.xyz)
		n, _ := G.Dims()
		BBt := mat.NewDense(n, n, nil)
		BBt.Mul(B, B.T())
		assert.True(Te, mat.EqualApprox(G, BBt, 1e-12))
		Ginv, err := E.GInverse(m.xyz)
		require.NoError(Te, err)
		GGiG := mat.NewDense(n, n, nil)
		GGiG.Product(G, Ginv, G)
		assert.True(Te, mat.EqualApprox(G, GGiG, 1e-8), "method %d", method)
	}
}

func TestGInverseRetry(Te *testing.T) {
	m := testMols[1]
	E := engineFor(Te, m, BuildOptions{}, WithSeed(3))
	calls := 0
	E.factorize = func(G *mat.Dense) (*mat.SVD, bool) {
		calls++
		return nil, false
	}
	_, err := E.GInverse(m.xyz)
	require.Error(Te, err)
	assert.True(Te, errors.Is(err, ErrRetryExhausted))
	assert.Equal(Te, svdRetries+1, calls)

	calls = 0
	E.factorize = func(G *mat.Dense) (*mat.SVD, bool) {
		calls++
		if calls < 3 {
			return nil, false
		}
		return defaultFactorize(G)
	}
	Ginv, err := E.GInverse(m.xyz)
	require.NoError(Te, err)
	assert.NotNil(Te, Ginv)
	assert.Equal(Te, 3, calls)
}

func TestNewCartesian(Te *testing.T) {
	for _, m := range []testMol{testMols[1], testMols[3], testMols[4]} {
		E := engineFor(Te, m, BuildOptions{})
		target := append([]float64{}, m.xyz...)
		for i := range target {
			target[i] += 0.02 * math.Sin(float64(i+1))
		}
		dq := E.CalcDiff(target, m.xyz)
		got, bork, err := E.NewCartesian(m.xyz, dq)
		require.NoError(Te, err)
		assert.False(Te, bork, m.name)
		assert.InDeltaSlice(Te, dq, E.CalcDiff(got, m.xyz), 1e-4, m.name)
		again, bork2, err := E.NewCartesian(m.xyz, dq)
		require.NoError(Te, err)
		assert.Equal(Te, bork, bork2)
		assert.Equal(Te, got, again)
	}
}

func TestNewCartesianUnreachable(Te *testing.T) {
	E := NewEngine(NewPrimitiveSet(NewDistance(0, 1), NewDistance(1, 2), NewAngle(0, 1, 2)), 3)
	th := chem.Deg2Rad(170)
	xyz := []float64{
		1, 0, 0,
		0, 0, 0,
		math.Cos(th), math.Sin(th), 0,
	}
	//no angle is larger than pi, so most of this step can not be taken.
	dq := []float64{0, 0, 1}
	B := E.WilsonB(xyz)
	Ginv, err := E.GInverse(xyz)
	require.NoError(Te, err)
	gdq := mat.NewVecDense(3, nil)
	gdq.MulVec(Ginv, mat.NewVecDense(3, dq))
	dx := mat.NewVecDense(len(xyz), nil)
	dx.MulVec(B.T(), gdq)
	first := append([]float64{}, xyz...)
	floats.Add(first, dx.RawVector().Data)

	got, bork, err := E.NewCartesian(xyz, dq)
	require.NoError(Te, err)
	assert.True(Te, bork)
	resid := E.CalcDiff(got, xyz)
	floats.Sub(resid, dq)
	assert.Greater(Te, floats.Norm(resid, 2), cartBroken)
	assert.InDeltaSlice(Te, first, got, 1e-12)
	assert.Equal(Te, xyz, []float64{1, 0, 0, 0, 0, 0, math.Cos(th), math.Sin(th), 0})
}

func TestCalcGrad(Te *testing.T) {
	m := testMols[1]
	E := engineFor(Te, m, BuildOptions{})
	//the cartesian gradient of the first bond length.
	gx := E.Prims().At(0).Derivative(m.xyz)
	gq, err := E.CalcGrad(m.xyz, gx)
	require.NoError(Te, err)
	assert.InDeltaSlice(Te, []float64{1, 0, 0}, gq, 1e-8)
}

func TestBasis(Te *testing.T) {
	m := testMols[4]
	E := engineFor(Te, m, BuildOptions{})
	U, err := E.Basis(m.xyz, nil)
	require.NoError(Te, err)
	n, k := U.Dims()
	assert.Equal(Te, E.NPrims(), n)
	assert.Equal(Te, 6, k)
	c := make([]float64, n)
	c[E.Prims().DofIndex(NewDihedral(2, 0, 1, 3))] = 1
	U, err = E.Basis(m.xyz, c)
	require.NoError(Te, err)
	_, k2 := U.Dims()
	assert.Equal(Te, k, k2)
	UtU := mat.NewDense(k, k, nil)
	UtU.Mul(U.T(), U)
	eye := mat.NewDiagDense(k, nil)
	for i := 0; i < k; i++ {
		eye.SetDiag(i, 1)
	}
	assert.True(Te, mat.EqualApprox(UtU, eye, 1e-8))
	assert.Greater(Te, math.Abs(floatsDot(mat.Col(nil, 0, U), c)), 0.5)
	back := FromBasis(U, ToBasis(U, mat.Col(nil, 0, U)))
	assert.InDeltaSlice(Te, mat.Col(nil, 0, U), back, 1e-10)

	zero := make([]float64, n)
	_, err = E.Basis(m.xyz, zero)
	require.Error(Te, err)
	assert.True(Te, errors.Is(err, ErrInvariant))
}

func floatsDot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
