/*
 * bonds.go, part of gostring.
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
	"sort"

	v3 "github.com/rmera/gostring/v3"
)

// constants from DOI:10.1186/1758-2946-3-33
const (
	tooclose = 0.63
	bondtol  = 0.45
)

// Bond joins two atoms. At1 always has the lower index.
type Bond struct {
	Index int
	At1   *Atom
	At2   *Atom
	Dist  float64
}

// Cross returns the atom bonded to origin through B.
func (B *Bond) Cross(origin *Atom) *Atom {
	if origin.Index == B.At1.Index {
		return B.At2
	}
	if origin.Index == B.At2.Index {
		return B.At1
	}
	panic("Trying to cross a bond: The origin atom given is not present in the bond!")
}

func removeBond(bonds []*Bond, id int) []*Bond {
	newb := make([]*Bond, 0, len(bonds))
	for _, v := range bonds {
		if v.Index != id {
			newb = append(newb, v)
		}
	}
	return newb
}

// AssignBonds assigns bonds to the atoms in top, based on a simple distance
// criterium, similar to that described in DOI:10.1186/1758-2946-3-33.
// Any previous bonds in the atoms are discarded. It returns the surviving bonds.
func AssignBonds(coord *v3.Matrix, top *Topology) ([]*Bond, error) {
	tot := top.Len()
	if coord.NVecs() != tot {
		return nil, CError{msg: fmt.Sprintf("%d coordinates for %d atoms", coord.NVecs(), tot), deco: []string{"AssignBonds"}}
	}
	for i, at := range top.Atoms {
		at.Index = i
		at.Bonds = nil
	}
	bonds := make([]*Bond, 0, tot)
	var nextIndex int
	for i := 0; i < tot; i++ {
		at1 := top.Atom(i)
		cov1 := at1.Covrad
		if cov1 == 0 {
			return nil, CError{msg: fmt.Sprintf("Couldn't find the covalent radius for %s %d", at1.Symbol, i), deco: []string{"AssignBonds"}}
		}
		for j := i + 1; j < tot; j++ {
			at2 := top.Atom(j)
			cov2 := at2.Covrad
			if cov2 == 0 {
				return nil, CError{msg: fmt.Sprintf("Couldn't find the covalent radius for %s %d", at2.Symbol, j), deco: []string{"AssignBonds"}}
			}
			d := coord.Distance(i, j)
			if d < cov1+cov2+bondtol && d > tooclose {
				b := &Bond{Index: nextIndex, Dist: d, At1: at1, At2: at2}
				at1.Bonds = append(at1.Bonds, b)
				at2.Bonds = append(at2.Bonds, b)
				bonds = append(bonds, b)
				nextIndex++
			}
		}
	}
	//Now we check that no atom has too many bonds, removing the longest ones.
	removed := make(map[int]bool)
	for i := 0; i < tot; i++ {
		at := top.Atom(i)
		max := elements[at.Symbol].maxbonds
		if max == 0 {
			continue
		}
		sort.Slice(at.Bonds, func(i, j int) bool { return at.Bonds[i].Dist < at.Bonds[j].Dist })
		for len(at.Bonds) > max {
			b := at.Bonds[len(at.Bonds)-1]
			b.At1.Bonds = removeBond(b.At1.Bonds, b.Index)
			b.At2.Bonds = removeBond(b.At2.Bonds, b.Index)
			removed[b.Index] = true
		}
	}
	ret := make([]*Bond, 0, len(bonds))
	for _, b := range bonds {
		if !removed[b.Index] {
			ret = append(ret, b)
		}
	}
	return ret, nil
}

// Fragments returns the connected components of the bond graph in top, as lists of
// atom indexes. Atoms must have their bonds assigned.
func Fragments(top *Topology) [][]int {
	seen := make([]bool, top.Len())
	var frags [][]int
	for i := range top.Atoms {
		if seen[i] {
			continue
		}
		frag := []int{}
		stack := []int{i}
		seen[i] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			frag = append(frag, cur)
			at := top.Atom(cur)
			for _, b := range at.Bonds {
				o := b.Cross(at).Index
				if !seen[o] {
					seen[o] = true
					stack = append(stack, o)
				}
			}
		}
		sort.Ints(frag)
		frags = append(frags, frag)
	}
	return frags
}

// ClosestPair returns the pair of atoms, one from each of the index lists a and b,
// with the shortest distance between them, and that distance.
func ClosestPair(coord *v3.Matrix, a, b []int) (int, int, float64) {
	best := math.Inf(1)
	bi, bj := -1, -1
	for _, i := range a {
		for _, j := range b {
			d := coord.Distance(i, j)
			if d < best {
				best, bi, bj = d, i, j
			}
		}
	}
	return bi, bj, best
}
