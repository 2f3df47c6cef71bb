/*
 * xyz.go, part of gostring.
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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	v3 "github.com/rmera/gostring/v3"
)

// XYZFileRead reads a (possibly multi-frame) xyz file. See XYZRead.
func XYZFileRead(xyzname string) (*Molecule, error) {
	xyzfile, err := os.Open(xyzname)
	if err != nil {
		return nil, CError{msg: err.Error(), deco: []string{"XYZFileRead"}}
	}
	defer xyzfile.Close()
	mol, err := XYZRead(xyzfile)
	if err != nil {
		return nil, errDecorate(err, "XYZFileRead "+xyzname)
	}
	return mol, nil
}

// XYZRead reads all the frames in an xyz stream. All frames must have the same atoms.
// If the first field of a comment line can be parsed as a number, it is taken as the
// energy of that frame.
func XYZRead(r io.Reader) (*Molecule, error) {
	xyz := bufio.NewScanner(r)
	var ats []*Atom
	var coords []*v3.Matrix
	var energies []float64
	frame := 0
	for xyz.Scan() {
		line := strings.TrimSpace(xyz.Text())
		if line == "" {
			continue
		}
		natoms, err := strconv.Atoi(line)
		if err != nil {
			return nil, CError{msg: fmt.Sprintf("Ill formatted XYZ: expected atom count in frame %d, got %q", frame, line), deco: []string{"XYZRead"}}
		}
		if ats != nil && natoms != len(ats) {
			return nil, CError{msg: fmt.Sprintf("Frame %d has %d atoms, expected %d", frame, natoms, len(ats)), deco: []string{"XYZRead"}}
		}
		if !xyz.Scan() {
			return nil, CError{msg: fmt.Sprintf("Missing comment line in frame %d", frame), deco: []string{"XYZRead"}}
		}
		var energy float64
		if f := strings.Fields(xyz.Text()); len(f) > 0 {
			if e, err := strconv.ParseFloat(f[0], 64); err == nil {
				energy = e
			}
		}
		frameats := make([]*Atom, natoms)
		data := make([]float64, 3*natoms)
		for i := 0; i < natoms; i++ {
			if !xyz.Scan() {
				return nil, CError{msg: fmt.Sprintf("Frame %d truncated at atom %d", frame, i), deco: []string{"XYZRead"}}
			}
			fields := strings.Fields(xyz.Text())
			if len(fields) < 4 {
				return nil, CError{msg: fmt.Sprintf("Line for atom %d in frame %d ill formed", i, frame), deco: []string{"XYZRead"}}
			}
			frameats[i] = NewAtom(fields[0])
			for j := 0; j < 3; j++ {
				data[3*i+j], err = strconv.ParseFloat(fields[j+1], 64)
				if err != nil {
					return nil, CError{msg: fmt.Sprintf("Can't parse coordinate of atom %d in frame %d: %s", i, frame, err.Error()), deco: []string{"XYZRead"}}
				}
			}
		}
		if ats == nil {
			ats = frameats
		}
		c, err := v3.NewMatrix(data)
		if err != nil {
			return nil, errDecorate(err, "XYZRead")
		}
		coords = append(coords, c)
		energies = append(energies, energy)
		frame++
	}
	if err := xyz.Err(); err != nil {
		return nil, CError{msg: err.Error(), deco: []string{"XYZRead"}}
	}
	top, err := NewTopology(ats, 0, 0)
	if err != nil {
		return nil, errDecorate(err, "XYZRead")
	}
	return NewMolecule(top, coords, energies)
}

// XYZWrite writes one frame with the atoms of top and the flat 3N coordinates
// coords to w. The comment is written in the second line.
func XYZWrite(w io.Writer, top *Topology, coords []float64, comment string) error {
	if len(coords) != 3*top.Len() {
		return CError{msg: fmt.Sprintf("%d coordinates for %d atoms", len(coords), top.Len()), deco: []string{"XYZWrite"}}
	}
	if _, err := fmt.Fprintf(w, "%-4d\n%s\n", top.Len(), strings.ReplaceAll(comment, "\n", " ")); err != nil {
		return CError{msg: err.Error(), deco: []string{"XYZWrite"}}
	}
	for i, at := range top.Atoms {
		_, err := fmt.Fprintf(w, "%-2s  %12.6f%12.6f%12.6f\n", at.Symbol, coords[3*i], coords[3*i+1], coords[3*i+2])
		if err != nil {
			return CError{msg: err.Error(), deco: []string{"XYZWrite"}}
		}
	}
	return nil
}

// XYZFileWrite writes all frames of mol to the file xyzname, which is overwritten
// if it exists. Frame energies are written as comments.
func XYZFileWrite(xyzname string, mol *Molecule) error {
	out, err := os.Create(xyzname)
	if err != nil {
		return CError{msg: err.Error(), deco: []string{"XYZFileWrite"}}
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	for i := range mol.Coords {
		if err := XYZWrite(w, mol.Topology, mol.Frame(i), fmt.Sprintf("%.8f", mol.Energies[i])); err != nil {
			return errDecorate(err, "XYZFileWrite")
		}
	}
	if err := w.Flush(); err != nil {
		return CError{msg: err.Error(), deco: []string{"XYZFileWrite"}}
	}
	return nil
}
