/*
 * chem.go, part of gostring.
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

	v3 "github.com/rmera/gostring/v3"
)

/**Note: Many functions here panic instead of returning errors. This is because they are "fundamental"
 * functions. If something goes wrong here, the program is most likely wrong and should
 * crash. Most panics are related to using the function on a nil object or trying to access out-of bounds
 * fields**/

// Atom contains the information of one atom, except for the coordinates, which will be in a matrix.
type Atom struct {
	Name   string
	Index  int //0-based position in the topology.
	Symbol string
	Mass   float64
	Vdw    float64
	Covrad float64
	Bonds  []*Bond
}

// NewAtom returns an Atom for the given element symbol, with its atomic data filled.
func NewAtom(symbol string) *Atom {
	at := &Atom{Symbol: symbol, Name: symbol}
	if d, ok := elements[symbol]; ok {
		at.Mass = d.mass
		at.Vdw = d.vdw
		at.Covrad = d.covrad
	}
	return at
}

// Copy returns a copy of the Atom object. Bonds are not copied.
func (A *Atom) Copy() *Atom {
	if A == nil {
		panic("Attempted to copy a nil atom")
	}
	return &Atom{Name: A.Name, Index: A.Index, Symbol: A.Symbol, Mass: A.Mass, Vdw: A.Vdw, Covrad: A.Covrad}
}

/*****Topology type***/

// Topology contains information about a molecule which is not expected to change in time (i.e. everything except for coordinates)
type Topology struct {
	Atoms    []*Atom
	charge   int
	unpaired int
}

// NewTopology makes a topology with the atoms ats, charge charge and unpaired unpaired electrons.
// Atom indexes are reset to their position in ats.
func NewTopology(ats []*Atom, charge, unpaired int) (*Topology, error) {
	if len(ats) == 0 {
		return nil, CError{msg: "Supplied an empty atom list", deco: []string{"NewTopology"}}
	}
	for i, v := range ats {
		if v == nil {
			return nil, CError{msg: fmt.Sprintf("Atom %d is nil", i), deco: []string{"NewTopology"}}
		}
		v.Index = i
	}
	return &Topology{Atoms: ats, charge: charge, unpaired: unpaired}, nil
}

// Charge gets the total charge of the topology
func (T *Topology) Charge() int {
	return T.charge
}

// Unpaired gets the number of unpaired electrons in the topology
func (T *Topology) Unpaired() int {
	return T.unpaired
}

// SetCharge sets the total charge of the topology to i
func (T *Topology) SetCharge(i int) {
	T.charge = i
}

// SetUnpaired sets the number of unpaired electrons in the topology to i
func (T *Topology) SetUnpaired(i int) {
	T.unpaired = i
}

// Atom returns the Atom corresponding to the index i
func (T *Topology) Atom(i int) *Atom {
	return T.Atoms[i]
}

// Len returns the number of atoms in the topology.
func (T *Topology) Len() int {
	return len(T.Atoms)
}

// Masses returns a slice with the mass of each atom.
func (T *Topology) Masses() []float64 {
	ret := make([]float64, len(T.Atoms))
	for i, v := range T.Atoms {
		ret[i] = v.Mass
	}
	return ret
}

// Copy returns a deep copy of the topology, without bonds.
func (T *Topology) Copy() *Topology {
	ats := make([]*Atom, len(T.Atoms))
	for i, v := range T.Atoms {
		ats[i] = v.Copy()
	}
	return &Topology{Atoms: ats, charge: T.charge, unpaired: T.unpaired}
}

/**Molecule type**/

// Molecule contains a topology and one or more sets of coordinates ("frames").
// Energies, if read, are kept per frame, and are 0 otherwise.
type Molecule struct {
	*Topology
	Coords   []*v3.Matrix
	Energies []float64
}

// NewMolecule returns a Molecule with the given topology and frames, checking that
// they are consistent.
func NewMolecule(top *Topology, coords []*v3.Matrix, energies []float64) (*Molecule, error) {
	if top == nil || len(coords) == 0 {
		return nil, CError{msg: "Nil topology or no coordinates given", deco: []string{"NewMolecule"}}
	}
	for i, c := range coords {
		if c.NVecs() != top.Len() {
			return nil, CError{msg: fmt.Sprintf("Frame %d has %d atoms, topology has %d", i, c.NVecs(), top.Len()), deco: []string{"NewMolecule"}}
		}
	}
	if energies == nil {
		energies = make([]float64, len(coords))
	}
	if len(energies) != len(coords) {
		return nil, CError{msg: "Energies and frames differ in number", deco: []string{"NewMolecule"}}
	}
	return &Molecule{Topology: top, Coords: coords, Energies: energies}, nil
}

// LenFrames returns the number of frames in the molecule.
func (M *Molecule) LenFrames() int {
	return len(M.Coords)
}

// Frame returns a flat 3N copy of the coordinates in the ith frame.
func (M *Molecule) Frame(i int) []float64 {
	return M.Coords[i].Flat()
}
