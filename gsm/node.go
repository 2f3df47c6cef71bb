/*
 * node.go, part of gostring.
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

package gsm

import (
	"context"
	"math"

	"github.com/rmera/gostring/ic"
	"github.com/rmera/gostring/lot"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Node is one structure along the string. Each node owns its coordinate engine, so
// its B-matrix cache is never shared. The geometry is only replaced as a whole.
type Node struct {
	ID int

	eng *ic.Engine
	lot lot.LevelOfTheory

	xyz      []float64
	computed bool
	energy   float64   //Hartree
	grad     []float64 //cartesian, Hartree/A
	pgrad    []float64 //primitive
	states   []float64

	hess       *mat.Dense //primitive space
	basis      *mat.Dense
	constraint []float64
	newHess    int
	gradRMS    float64
	bdist      float64
	broken     bool //created from a step whose cartesian coordinates did not converge
}

// NewNode returns a node with geometry xyz. The node is not evaluated until
// Evaluate is called.
func NewNode(id int, eng *ic.Engine, l lot.LevelOfTheory, xyz []float64) *Node {
	if len(xyz) != 3*eng.NAtoms() {
		panic(ic.ErrWrongLength)
	}
	return &Node{
		ID:   id,
		eng:  eng,
		lot:  l,
		xyz:  append([]float64(nil), xyz...),
		hess: eng.Prims().GuessHessian(),
	}
}

// Copy returns a new node with the given ID and geometry, its own engine, and
// the Hessian of N.
func (N *Node) Copy(id int, xyz []float64) *Node {
	if xyz == nil {
		xyz = N.xyz
	}
	r := NewNode(id, N.eng.Copy(), N.lot, xyz)
	r.hess = mat.DenseCopyOf(N.hess)
	r.bdist = N.bdist
	return r
}

// XYZ returns a copy of the geometry.
func (N *Node) XYZ() []float64 { return append([]float64(nil), N.xyz...) }

// Engine returns the coordinate engine of the node.
func (N *Node) Engine() *ic.Engine { return N.eng }

// LoT returns the level of theory of the node.
func (N *Node) LoT() lot.LevelOfTheory { return N.lot }

// Primitives returns the values of the primitive coordinates at the current geometry.
func (N *Node) Primitives() []float64 { return N.eng.Calculate(N.xyz) }

// SetGeometry replaces the geometry. The node will be evaluated again when needed.
func (N *Node) SetGeometry(xyz []float64) {
	if len(xyz) != len(N.xyz) {
		panic(ic.ErrWrongLength)
	}
	N.xyz = append([]float64(nil), xyz...)
	N.computed = false
}

// Evaluate obtains the energy and gradient at the current geometry, unless they are
// already known.
func (N *Node) Evaluate(ctx context.Context) error {
	if N.computed {
		return nil
	}
	r, err := N.lot.Compute(ctx, N.xyz)
	if err != nil {
		return errDecorate(err, "Evaluate")
	}
	pg, err := N.eng.CalcGrad(N.xyz, r.Gradient)
	if err != nil {
		return errDecorate(err, "Evaluate")
	}
	N.energy = r.Energy
	N.grad = r.Gradient
	N.states = r.States
	N.pgrad = pg
	N.computed = true
	N.gradRMS = N.rms()
	return nil
}

// Broken is true if the node was created by a step for which the cartesian
// coordinates could not be converged, even after shrinking it. The geometry is
// the best effort of the smallest step tried.
func (N *Node) Broken() bool { return N.broken }

// Evaluated is true if the energy and gradient correspond to the current geometry.
func (N *Node) Evaluated() bool { return N.computed }

// Energy returns the last computed energy, in Hartree.
func (N *Node) Energy() float64 { return N.energy }

// Gradient returns the last computed cartesian gradient.
func (N *Node) Gradient() []float64 { return N.grad }

// PrimGradient returns the last computed gradient in the primitive space.
func (N *Node) PrimGradient() []float64 { return N.pgrad }

// States returns the energies of each state, for multi-state surfaces.
func (N *Node) States() []float64 { return N.states }

// PrimHessian returns the Hessian approximation in the primitive space.
func (N *Node) PrimHessian() *mat.Dense { return N.hess }

// SetPrimHessian replaces the Hessian approximation.
func (N *Node) SetPrimHessian(H *mat.Dense) { N.hess = H }

// Basis returns the current working basis. The first column is the constraint if
// the basis was built with one.
func (N *Node) Basis() *mat.Dense { return N.basis }

// Constraint returns the constraint vector (in the primitive space) or nil.
func (N *Node) Constraint() []float64 { return N.constraint }

// UpdateBasis rebuilds the working basis at the current geometry, with tangent as
// the constraint. A nil tangent gives an unconstrained basis.
func (N *Node) UpdateBasis(tangent []float64) error {
	U, err := N.eng.Basis(N.xyz, tangent)
	if err != nil {
		return errDecorate(err, "UpdateBasis")
	}
	N.basis = U
	N.constraint = nil
	if tangent != nil {
		N.constraint = mat.Col(nil, 0, U)
	}
	if N.computed {
		N.gradRMS = N.rms()
	}
	return nil
}

// NewHess is the number of steps for which the Hessian must not be updated.
func (N *Node) NewHess() int { return N.newHess }

// SetNewHess sets the number of steps for which the Hessian will not be updated.
func (N *Node) SetNewHess(i int) { N.newHess = i }

// GradRMS returns the RMS of the gradient in the working basis, without the
// constraint component.
func (N *Node) GradRMS() float64 { return N.gradRMS }

// SetGradRMS sets the gradient RMS, for optimizers that measure it differently.
func (N *Node) SetGradRMS(g float64) { N.gradRMS = g }

// BDist returns the boundary distance of the node to the driving coordinate targets.
func (N *Node) BDist() float64 { return N.bdist }

// ProjectedGradient returns the gradient in the working basis, without the
// constraint component, and its largest absolute element.
func (N *Node) ProjectedGradient() ([]float64, float64) { return N.projectedGradient() }

func (N *Node) projectedGradient() ([]float64, float64) {
	if N.pgrad == nil {
		return nil, 0
	}
	g := N.pgrad
	if N.basis != nil {
		g = ic.ToBasis(N.basis, N.pgrad)
		if N.constraint != nil {
			g = g[1:]
		}
	}
	gmax := 0.0
	if len(g) > 0 {
		gmax = math.Max(math.Abs(floats.Max(g)), math.Abs(floats.Min(g)))
	}
	return g, gmax
}

// rms of the projected gradient.
func (N *Node) rms() float64 {
	g, _ := N.projectedGradient()
	return ic.RMS(g)
}
