/*
 * optimizer.go, part of gostring.
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

import "context"

// OptType tells the per-node optimizer what kind of optimization to perform.
type OptType int

const (
	//ICTAN minimizes in the space orthogonal to the tangent.
	ICTAN OptType = iota
	//CLIMB minimizes orthogonal to the tangent and maximizes along it.
	CLIMB
	//TS follows the Hessian eigenvector that best overlaps the tangent uphill.
	TS
	//SEAM is ICTAN on an averaged two-state surface.
	SEAM
	//TSSeam is CLIMB on an averaged two-state surface.
	TSSeam
	//Unconstrained is a plain minimization.
	Unconstrained
	//MECI is a plain minimization of a penalty surface.
	MECI
)

func (t OptType) String() string {
	switch t {
	case CLIMB:
		return "CLIMB"
	case TS:
		return "TS"
	case SEAM:
		return "SEAM"
	case TSSeam:
		return "TS-SEAM"
	case Unconstrained:
		return "UNCONSTRAINED"
	case MECI:
		return "MECI"
	}
	return "ICTAN"
}

// Constrained is true for the types that keep the tangent as the first basis vector.
func (t OptType) Constrained() bool {
	return t == ICTAN || t == CLIMB || t == SEAM || t == TSSeam
}

// Variant is the flavor of the per-node optimizer.
type Variant int

const (
	QuasiNewton Variant = iota
	EigenvectorFollow
)

// Convergence thresholds for a per-node optimizer. EnergyDiff and Gap are in kcal/mol.
type Convergence struct {
	GradRMS    float64
	GradMax    float64
	EnergyDiff float64
	Gap        float64
}

// Optimizer optimizes one node at a time. An Optimizer is owned by one node slot of
// a String and is never used concurrently.
type Optimizer interface {
	//Optimize performs at most steps steps on n. refE is the energy (Hartree) of the
	//first node. tangent is a unit vector in the primitive space, or nil.
	//Optimize replaces the geometry of n and leaves it evaluated.
	Optimize(ctx context.Context, n *Node, refE float64, t OptType, steps int, tangent []float64) error
	Converged() bool
	//Nneg is the number of negative eigenvalues of the Hessian at the last TS step.
	Nneg() int
	//MaxOverlapGood is false if, in the last TS step, no Hessian eigenvector
	//overlapped the tangent well enough.
	MaxOverlapGood() bool
	Conv() *Convergence
	DMax() float64
	SetDMax(float64)
	SetVariant(Variant)
}

// OptimizerFactory returns a new optimizer for the node slot id.
type OptimizerFactory func(id int) Optimizer

// SnapshotWriter receives the state of the string at the end of each iteration.
type SnapshotWriter interface {
	WriteSnapshot(s *Snapshot) error
}

// Snapshot is the state of a string at one iteration.
type Snapshot struct {
	Stage      string //"growth", "opt" or "converged"
	Iteration  int
	Geometries [][]float64
	Energies   []float64 //kcal/mol, relative to the first node
	GradRMS    []float64
	TSNode     int //index of the peak in Geometries
}
