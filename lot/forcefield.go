/*
 * forcefield.go, part of gostring.
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
	"fmt"
	"math"

	"github.com/rmera/gostring/ic"
	"gonum.org/v1/gonum/floats"
)

// Term is one contribution to a force field. Energy returns the energy (Hartree) at xyz and
// adds the gradient of the term to grad.
type Term interface {
	Energy(xyz, grad []float64) float64
}

// Harmonic is K/2*(q-Eq)^2 for the internal coordinate Coord. For dihedrals and
// out-of-plane coordinates the difference is taken in the (-pi, pi] interval.
type Harmonic struct {
	Coord ic.Primitive
	K     float64 //Hartree/A^2 or Hartree/rad^2
	Eq    float64
}

func (H Harmonic) Energy(xyz, grad []float64) float64 {
	d := H.Coord.Value(xyz) - H.Eq
	if k := H.Coord.Kind(); k == ic.KindDihedral || k == ic.KindOutOfPlane {
		d = math.Remainder(d, 2*math.Pi)
	}
	floats.AddScaled(grad, H.K*d, H.Coord.Derivative(xyz))
	return 0.5 * H.K * d * d
}

// Torsion is V/2*(1+cos(N*phi-Phase)) for the dihedral Coord.
type Torsion struct {
	Coord ic.Primitive
	V     float64 //Hartree
	N     int
	Phase float64 //radians
}

func (T Torsion) Energy(xyz, grad []float64) float64 {
	n := float64(T.N)
	arg := n*T.Coord.Value(xyz) - T.Phase
	floats.AddScaled(grad, -0.5*T.V*n*math.Sin(arg), T.Coord.Derivative(xyz))
	return 0.5 * T.V * (1 + math.Cos(arg))
}

// Morse is D*(1-exp(-Alpha*(r-Re)))^2 for the distance between atoms A and B (0-based).
type Morse struct {
	A, B  int
	D     float64 //Hartree
	Alpha float64 //1/A
	Re    float64 //A
}

func (M Morse) Energy(xyz, grad []float64) float64 {
	r := ic.NewDistance(M.A, M.B)
	e := math.Exp(-M.Alpha * (r.Value(xyz) - M.Re))
	floats.AddScaled(grad, 2*M.D*M.Alpha*e*(1-e), r.Derivative(xyz))
	return M.D * (1 - e) * (1 - e)
}

// ForceField is an analytic level of theory, the sum of its terms.
type ForceField struct {
	natoms int
	terms  []Term
}

// NewForceField returns a force field for a molecule with natoms atoms.
func NewForceField(natoms int, terms ...Term) *ForceField {
	return &ForceField{natoms: natoms, terms: terms}
}

// Add appends terms to the force field.
func (F *ForceField) Add(terms ...Term) {
	F.terms = append(F.terms, terms...)
}

// Len returns the number of terms in the force field.
func (F *ForceField) Len() int { return len(F.terms) }

func (F *ForceField) Compute(ctx context.Context, xyz []float64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkLength("ForceField", xyz, F.natoms); err != nil {
		return nil, err
	}
	r := &Result{Gradient: make([]float64, len(xyz))}
	for _, t := range F.terms {
		r.Energy += t.Energy(xyz, r.Gradient)
	}
	if math.IsNaN(r.Energy) {
		return nil, Error{message: ErrNoEnergy, code: "ForceField", additional: fmt.Sprintf("NaN energy with %d terms", len(F.terms)), critical: true, deco: []string{"Compute"}}
	}
	return r, nil
}

func (F *ForceField) DoCoupling() bool     { return false }
func (F *ForceField) Surface() SurfaceKind { return SingleSurface }
