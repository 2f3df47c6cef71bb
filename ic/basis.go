/*
 * basis.go, part of gostring.
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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const gsTol = 1e-6

// Basis returns the delocalized internal coordinates at xyz, as the columns of an
// nprims x k matrix, where k is the number of non-zero eigenvalues of G.
// If constraint is not nil, the first column is the (normalized) projection of constraint
// onto the space spanned by the delocalized coordinates, and the rest are orthogonal to it.
func (E *Engine) Basis(xyz, constraint []float64) (*mat.Dense, error) {
	G := E.GMatrix(xyz)
	n, _ := G.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(G.At(i, j)+G.At(j, i)))
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, &Error{message: "Eigendecomposition of the G matrix failed", deco: []string{"Basis"}, critical: true, cause: ErrRetryExhausted}
	}
	vals := es.Values(nil)
	var V mat.Dense
	es.VectorsTo(&V)
	//eigenvalues come in ascending order, we keep the largest ones, largest first.
	cols := make([][]float64, 0, n)
	for i := n - 1; i >= 0; i-- {
		if vals[i] > singularCutoff {
			cols = append(cols, mat.Col(nil, i, &V))
		}
	}
	k := len(cols)
	if k == 0 {
		return nil, &Error{message: "No non-redundant coordinates", deco: []string{"Basis"}, critical: true, cause: ErrInvariant}
	}
	if constraint == nil {
		U := mat.NewDense(n, k, nil)
		for j, c := range cols {
			U.SetCol(j, c)
		}
		return U, nil
	}
	if len(constraint) != n {
		panic(ErrWrongLength)
	}
	proj := make([]float64, n)
	for _, c := range cols {
		floats.AddScaled(proj, floats.Dot(c, constraint), c)
	}
	norm := floats.Norm(proj, 2)
	if norm < gsTol {
		return nil, &Error{message: fmt.Sprintf("Constraint has no component in the coordinate space (norm %g)", norm), deco: []string{"Basis"}, critical: true, cause: ErrInvariant}
	}
	floats.Scale(1/norm, proj)
	basis := [][]float64{proj}
	for _, c := range cols {
		if len(basis) == k {
			break
		}
		v := make([]float64, n)
		copy(v, c)
		//modified Gram-Schmidt, twice for stability.
		for pass := 0; pass < 2; pass++ {
			for _, b := range basis {
				floats.AddScaled(v, -floats.Dot(v, b), b)
			}
		}
		vn := floats.Norm(v, 2)
		if vn < gsTol {
			continue
		}
		floats.Scale(1/vn, v)
		basis = append(basis, v)
	}
	if len(basis) != k {
		return nil, &Error{message: fmt.Sprintf("Could only build %d of %d basis vectors", len(basis), k), deco: []string{"Basis"}, critical: true, cause: ErrInvariant}
	}
	U := mat.NewDense(n, k, nil)
	for j, b := range basis {
		U.SetCol(j, b)
	}
	return U, nil
}

// ToBasis projects the primitive-space vector v onto the columns of U.
func ToBasis(U *mat.Dense, v []float64) []float64 {
	_, k := U.Dims()
	r := mat.NewVecDense(k, nil)
	r.MulVec(U.T(), mat.NewVecDense(len(v), v))
	return r.RawVector().Data
}

// FromBasis returns the primitive-space vector with components c along the columns of U.
func FromBasis(U *mat.Dense, c []float64) []float64 {
	n, _ := U.Dims()
	r := mat.NewVecDense(n, nil)
	r.MulVec(U, mat.NewVecDense(len(c), c))
	return r.RawVector().Data
}

// HessianToBasis returns U^T H U.
func HessianToBasis(U, H mat.Matrix) *mat.Dense {
	_, k := U.Dims()
	R := mat.NewDense(k, k, nil)
	R.Product(U.T(), H, U)
	return R
}

// HessianFromBasis returns U H U^T.
func HessianFromBasis(U, H mat.Matrix) *mat.Dense {
	n, _ := U.Dims()
	R := mat.NewDense(n, n, nil)
	R.Product(U, H, U.T())
	return R
}

// RMS returns the root mean square of v, or 0 for an empty slice.
func RMS(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(v, v) / float64(len(v)))
}
