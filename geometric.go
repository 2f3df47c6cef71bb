/*
 * geometric.go, part of gostring.
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

package chem

import (
	"fmt"
	"math"

	v3 "github.com/rmera/gostring/v3"
	"gonum.org/v1/gonum/mat"
)

// Deg2Rad converts degrees to radians
func Deg2Rad(f float64) float64 {
	return f * math.Pi / 180
}

// Rad2Deg converts radians to degrees
func Rad2Deg(f float64) float64 {
	return f * 180 / math.Pi
}

// CenterOfMass returns the center of mass of the atoms in geometry, as a 1x3 matrix.
// If mass is nil, all atoms weight the same.
func CenterOfMass(geometry *v3.Matrix, mass []float64) (*v3.Matrix, error) {
	n := geometry.NVecs()
	if mass != nil && len(mass) != n {
		return nil, CError{msg: fmt.Sprintf("%d masses for %d atoms", len(mass), n), deco: []string{"CenterOfMass"}}
	}
	var c [3]float64
	var total float64
	for i := 0; i < n; i++ {
		w := 1.0
		if mass != nil {
			w = mass[i]
		}
		r := geometry.RawRowView(i)
		for j := range c {
			c[j] += w * r[j]
		}
		total += w
	}
	if total == 0 {
		return nil, CError{msg: "Total mass is zero", deco: []string{"CenterOfMass"}}
	}
	com := v3.Zeros(1)
	for j, v := range c {
		com.Set(0, j, v/total)
	}
	return com, nil
}

// RMSD returns the root of the mean square deviation between the sets of cartesian
// coordinates in test and template.
func RMSD(test, template *v3.Matrix) (float64, error) {
	if test.NVecs() != template.NVecs() {
		return 0, CError{msg: "Ill formed matrices for RMSD calculation", deco: []string{"RMSD"}}
	}
	var sq float64
	for i := 0; i < test.NVecs(); i++ {
		a := test.RawRowView(i)
		b := template.RawRowView(i)
		for j := 0; j < 3; j++ {
			sq += (a[j] - b[j]) * (a[j] - b[j])
		}
	}
	return math.Sqrt(sq / float64(test.NVecs())), nil
}

// Super returns a copy of test rigidly superimposed on templa, using the atoms with
// indexes in indexes for the fit (all atoms if indexes is nil). All atoms are moved.
// The rotation is obtained with the Kabsch algorithm and never contains a reflection.
func Super(test, templa *v3.Matrix, indexes []int) (*v3.Matrix, error) {
	if test.NVecs() != templa.NVecs() {
		return nil, CError{msg: "Ill formed matrices for superposition", deco: []string{"Super"}}
	}
	if indexes == nil {
		indexes = make([]int, test.NVecs())
		for i := range indexes {
			indexes[i] = i
		}
	}
	if len(indexes) < 3 {
		return nil, CError{msg: "At least 3 atoms are needed for a superposition", deco: []string{"Super"}}
	}
	ctest := v3.Zeros(len(indexes))
	ctest.SomeVecs(test, indexes)
	ctempla := v3.Zeros(len(indexes))
	ctempla.SomeVecs(templa, indexes)
	comtest, err := CenterOfMass(ctest, nil)
	if err != nil {
		return nil, errDecorate(err, "Super")
	}
	comtempla, err := CenterOfMass(ctempla, nil)
	if err != nil {
		return nil, errDecorate(err, "Super")
	}
	ctest.SubVec(ctest, comtest)
	ctempla.SubVec(ctempla, comtempla)
	H := mat.NewDense(3, 3, nil)
	H.Mul(ctest.T(), ctempla)
	var svd mat.SVD
	if ok := svd.Factorize(H, mat.SVDFull); !ok {
		return nil, CError{msg: "SVD failed", deco: []string{"Super"}}
	}
	var U, V mat.Dense
	svd.UTo(&U)
	svd.VTo(&V)
	//R = V diag(1,1,d) U^T, with d fixing the handedness.
	VUt := mat.NewDense(3, 3, nil)
	VUt.Mul(&V, U.T())
	d := 1.0
	if mat.Det(VUt) < 0 {
		d = -1
	}
	D := mat.NewDiagDense(3, []float64{1, 1, d})
	R := mat.NewDense(3, 3, nil)
	R.Product(&V, D, U.T())
	all := v3.Zeros(test.NVecs())
	all.SubVec(test, comtest)
	ret := v3.Zeros(test.NVecs())
	ret.Mul(all, R.T())
	ret.AddVec(ret, comtempla)
	return ret, nil
}
