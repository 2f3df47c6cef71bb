/*
 * build.go, part of gostring.
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
	"sort"

	chem "github.com/rmera/gostring"
	v3 "github.com/rmera/gostring/v3"
	"go.uber.org/zap"
)

const (
	linearAngle = 175 * math.Pi / 180 //angles above this are not used
	planarOOP   = 0.5                 //|sin| of the out-of-plane torsion under which a center is planar
)

// BuildOptions controls which primitives Build generates.
type BuildOptions struct {
	//TRIC adds translation and rotation primitives for each fragment, instead of
	//bonding the fragments together.
	TRIC bool
	//Extra primitives are always added, after the automatic ones.
	Extra  []Primitive
	Logger *zap.Logger
}

type pair struct{ a, b int }

// Build generates a redundant set of primitives for the molecule top, using the union of the
// bonds found in all the geometries in geoms. Angles, dihedrals and the out-of-plane
// coordinates are chosen with the first geometry.
func Build(top *chem.Topology, geoms [][]float64, o BuildOptions) (*PrimitiveSet, error) {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if len(geoms) == 0 {
		return nil, &Error{message: "No geometries given", deco: []string{"Build"}, critical: true, cause: ErrInvariant}
	}
	natoms := top.Len()
	bondset := make(map[pair]bool)
	work := top.Copy()
	for i, g := range geoms {
		if len(g) != 3*natoms {
			return nil, &Error{message: fmt.Sprintf("Geometry %d has %d coordinates for %d atoms", i, len(g), natoms), deco: []string{"Build"}, critical: true, cause: ErrInvariant}
		}
		m, err := v3.FromFlat(g)
		if err != nil {
			return nil, &Error{message: err.Error(), deco: []string{"Build"}, critical: true}
		}
		bonds, err := chem.AssignBonds(m, work)
		if err != nil {
			return nil, &Error{message: err.Error(), deco: []string{"Build"}, critical: true}
		}
		for _, b := range bonds {
			bondset[pair{b.At1.Index, b.At2.Index}] = true
		}
	}
	ref := geoms[0]
	refm, _ := v3.FromFlat(ref)
	setBonds(work, bondset)
	frags := chem.Fragments(work)
	P := NewPrimitiveSet()
	if len(frags) > 1 && o.TRIC {
		for _, f := range frags {
			for ax := 0; ax < 3; ax++ {
				P.Add(NewTranslation(ax, f))
			}
			if len(f) >= 3 {
				for ax := 0; ax < 3; ax++ {
					P.Add(NewRotation(ax, f, ref))
				}
			}
		}
	} else {
		for len(frags) > 1 {
			rest := make([]int, 0, natoms)
			for _, f := range frags[1:] {
				rest = append(rest, f...)
			}
			i, j, d := chem.ClosestPair(refm, frags[0], rest)
			log.Debug("connecting fragments", zap.Int("atom1", i+1), zap.Int("atom2", j+1), zap.Float64("distance", d))
			bondset[pair{min(i, j), max(i, j)}] = true
			setBonds(work, bondset)
			frags = chem.Fragments(work)
		}
	}
	pairs := make([]pair, 0, len(bondset))
	for p := range bondset {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a == pairs[j].a {
			return pairs[i].b < pairs[j].b
		}
		return pairs[i].a < pairs[j].a
	})
	for _, p := range pairs {
		P.Add(NewDistance(p.a, p.b))
	}
	nbrs := neighbors(natoms, pairs)
	for b := 0; b < natoms; b++ {
		for i, a := range nbrs[b] {
			for _, c := range nbrs[b][i+1:] {
				an := NewAngle(a, b, c)
				if an.Value(ref) < linearAngle {
					P.Add(an)
				}
			}
		}
	}
	for _, p := range pairs {
		b, c := p.a, p.b
		for _, a := range nbrs[b] {
			if a == c || NewAngle(a, b, c).Value(ref) >= linearAngle {
				continue
			}
			for _, d := range nbrs[c] {
				if d == b || d == a || NewAngle(b, c, d).Value(ref) >= linearAngle {
					continue
				}
				P.Add(NewDihedral(a, b, c, d))
			}
		}
	}
	for a := 0; a < natoms; a++ {
		if len(nbrs[a]) != 3 {
			continue
		}
		n := nbrs[a]
		oop := NewOutOfPlane(a, n[0], n[1], n[2])
		if math.Abs(math.Sin(oop.Value(ref))) < planarOOP {
			P.Add(oop)
		}
	}
	for _, e := range o.Extra {
		P.Add(e)
	}
	log.Debug("built primitive internal coordinates", zap.Int("primitives", P.Len()), zap.Int("fragments", len(frags)))
	return P, nil
}

func setBonds(top *chem.Topology, bondset map[pair]bool) {
	for _, at := range top.Atoms {
		at.Bonds = nil
	}
	i := 0
	for p := range bondset {
		a1 := top.Atom(p.a)
		a2 := top.Atom(p.b)
		b := &chem.Bond{Index: i, At1: a1, At2: a2}
		a1.Bonds = append(a1.Bonds, b)
		a2.Bonds = append(a2.Bonds, b)
		i++
	}
}

func neighbors(natoms int, pairs []pair) [][]int {
	nbrs := make([][]int, natoms)
	for _, p := range pairs {
		nbrs[p.a] = append(nbrs[p.a], p.b)
		nbrs[p.b] = append(nbrs[p.b], p.a)
	}
	for _, n := range nbrs {
		sort.Ints(n)
	}
	return nbrs
}
