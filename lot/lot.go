/*
 * lot.go, part of gostring.
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

package lot

import (
	"context"
	"strings"
)

// Conversion factors.
const (
	KcalMolPerHartree = 627.5095
	Bohr2A            = 0.52917721092
)

// SurfaceKind tells how a level of theory builds its energy from one or more
// electronic states.
type SurfaceKind int

const (
	SingleSurface SurfaceKind = iota
	AveragedSeam
	PenaltySurface
)

func (s SurfaceKind) String() string {
	switch s {
	case AveragedSeam:
		return "averaged"
	case PenaltySurface:
		return "penalty"
	}
	return "single"
}

// Result is the output of a level of theory for one geometry.
type Result struct {
	Energy   float64   //Hartree
	Gradient []float64 //Hartree/A, 3N elements
	//States contains the energies of the individual states, for surfaces
	//built from more than one.
	States []float64
}

// LevelOfTheory gives energies and gradients for a geometry. Implementations must be safe
// for concurrent use, as different nodes of a string are computed in parallel.
type LevelOfTheory interface {
	Compute(ctx context.Context, xyz []float64) (*Result, error)
	//DoCoupling is true if the derivative coupling between states is requested.
	DoCoupling() bool
	Surface() SurfaceKind
}

// Error is the error type for the lot package.
type Error struct {
	message    string
	code       string //the name of the program or model involved.
	inputname  string
	additional string
	deco       []string
	critical   bool
}

func (err Error) Error() string {
	s := err.code + " " + err.inputname + ": " + err.message
	if err.additional != "" {
		s += ": " + err.additional
	}
	if len(err.deco) > 0 {
		s += " (" + strings.Join(err.deco, " < ") + ")"
	}
	return s
}

// Decorate adds dec to the decoration slice of the error and returns the resulting slice.
func (err *Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

// Critical returns whether the error is critical or it can be ignored
func (err Error) Critical() bool { return err.critical }

// Error messages
const (
	ErrNotRunning = "Program not running"
	ErrNoEnergy   = "Couldn't obtain energy"
	ErrNoGradient = "Couldn't obtain gradient"
	ErrCantInput  = "Can't build input file"
	ErrBadLength  = "Wrong number of coordinates"
)

func checkLength(code string, xyz []float64, natoms int) error {
	if len(xyz) != 3*natoms {
		return Error{message: ErrBadLength, code: code, critical: true, deco: []string{"Compute"}}
	}
	return nil
}
