/*
 * gonum.go, part of gostring.
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

package v3

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a set of vectors in 3D space. Within the package it is understood that a "vector"
// is a row vector, i.e. the cartesian coordinates of a point in 3D space.
type Matrix struct {
	*mat.Dense
}

// NewMatrix generates and returns a Matrix with 3 columns from data.
// data is not copied.
func NewMatrix(data []float64) (*Matrix, error) {
	const cols int = 3
	l := len(data)
	rows := l / cols
	if l%cols != 0 || l == 0 {
		return nil, Error{fmt.Sprintf("Input slice length %d not divisible by %d", l, cols), []string{"NewMatrix"}, true}
	}
	return &Matrix{mat.NewDense(rows, cols, data)}, nil
}

// Zeros returns a zero-filled Matrix with vecs vectors.
func Zeros(vecs int) *Matrix {
	return &Matrix{mat.NewDense(vecs, 3, nil)}
}

// FromFlat returns a new Matrix with a copy of the 3N slice flat.
func FromFlat(flat []float64) (*Matrix, error) {
	c := make([]float64, len(flat))
	copy(c, flat)
	M, err := NewMatrix(c)
	if err != nil {
		return nil, errDecorate(err, "FromFlat")
	}
	return M, nil
}

// Flat returns a new slice with the 3N coordinates of F, row-major.
func (F *Matrix) Flat() []float64 {
	r := F.NVecs()
	ret := make([]float64, 0, 3*r)
	for i := 0; i < r; i++ {
		ret = append(ret, F.RawRowView(i)...)
	}
	return ret
}

// NVecs returns the number of vectors (rows) in F.
func (F *Matrix) NVecs() int {
	r, c := F.Dims()
	if c != 3 {
		panic(ErrNotXx3Matrix)
	}
	return r
}

// SomeVecs puts in the receiver the vectors of A with indexes in clist.
func (F *Matrix) SomeVecs(A *Matrix, clist []int) {
	if F.NVecs() < len(clist) {
		panic(ErrShape)
	}
	for key, val := range clist {
		copy(F.RawRowView(key), A.RawRowView(val))
	}
}

// AddVec adds the 1x3 vec to every vector of A, putting the result in F.
func (F *Matrix) AddVec(A, vec *Matrix) {
	if A.NVecs() != F.NVecs() || vec.NVecs() != 1 {
		panic(ErrShape)
	}
	v := vec.RawRowView(0)
	for i := 0; i < A.NVecs(); i++ {
		a := A.RawRowView(i)
		f := F.RawRowView(i)
		for j := range f {
			f[j] = a[j] + v[j]
		}
	}
}

// SubVec subtracts the 1x3 vec from every vector of A, putting the result in F.
func (F *Matrix) SubVec(A, vec *Matrix) {
	neg := Zeros(1)
	neg.Scale(-1, vec)
	F.AddVec(A, neg)
}

// Distance returns the distance between the ith and jth vectors of F.
func (F *Matrix) Distance(i, j int) float64 {
	a := F.RawRowView(i)
	b := F.RawRowView(j)
	return math.Sqrt((a[0]-b[0])*(a[0]-b[0]) + (a[1]-b[1])*(a[1]-b[1]) + (a[2]-b[2])*(a[2]-b[2]))
}

//Errors

type errorInt interface {
	Error() string
	Critical() bool
	Decorate(string) []string
}

// Error is the error type for the v3 package.
type Error struct {
	message  string
	deco     []string
	critical bool
}

// Error returns a string with an error message.
func (err Error) Error() string {
	return err.message
}

// Decorate will add the dec string to the decoration slice of strings of the error,
// and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	err.deco = append(err.deco, dec)
	return err.deco
}

// Critical return whether the error is critical or it can be ignored
func (err Error) Critical() bool { return err.critical }

// errDecorate decorates err with the caller's name, if err is a v3 error.
func errDecorate(err error, caller string) error {
	if err2, ok := err.(errorInt); ok {
		err2.Decorate(caller)
		return err2
	}
	return err
}

// PanicMsg is a message used for panics, even though it does satisfy the error interface.
// for errors use Error.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrNotXx3Matrix = PanicMsg("v3: A Matrix should have 3 columns")
	ErrShape        = PanicMsg("v3: Dimension mismatch")
)
