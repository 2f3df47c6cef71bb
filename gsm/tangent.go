/*
 * tangent.go, part of gostring.
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
	"fmt"
	"math"
	"strconv"
	"strings"

	chem "github.com/rmera/gostring"
	"github.com/rmera/gostring/ic"
	"gonum.org/v1/gonum/floats"
)

// DrivingKind is the kind of a driving coordinate.
type DrivingKind int

const (
	Add DrivingKind = iota
	Break
	AngleDrive
	TorsionDrive
	OOPDrive
)

var drivingNames = map[string]DrivingKind{
	"ADD":     Add,
	"BREAK":   Break,
	"ANGLE":   AngleDrive,
	"TORSION": TorsionDrive,
	"OOP":     OOPDrive,
}

// number of atoms for each kind of driving coordinate.
var drivingAtoms = map[DrivingKind]int{
	Add:          2,
	Break:        2,
	AngleDrive:   3,
	TorsionDrive: 4,
	OOPDrive:     4,
}

func (k DrivingKind) String() string {
	for name, v := range drivingNames {
		if v == k {
			return name
		}
	}
	return "UNKNOWN"
}

// DrivingCoord is an instruction to drive a primitive toward a target during
// single-ended growth. Atoms are 1-based. Targets are in A for bonds and in
// degrees for the rest. ADD and BREAK have default targets based on the van der
// Waals radii of the atoms if HasTarget is false.
type DrivingCoord struct {
	Kind      DrivingKind
	Atoms     []int
	Target    float64
	HasTarget bool
}

// atoms returns the 0-based atoms, with the lower index first for bonds.
func (D DrivingCoord) atoms() []int {
	r := make([]int, len(D.Atoms))
	for i, a := range D.Atoms {
		r[i] = a - 1
	}
	if (D.Kind == Add || D.Kind == Break) && r[0] > r[1] {
		r[0], r[1] = r[1], r[0]
	}
	return r
}

// Primitive returns the primitive driven by D.
func (D DrivingCoord) Primitive() ic.Primitive {
	a := D.atoms()
	switch D.Kind {
	case AngleDrive:
		return ic.NewAngle(a[0], a[1], a[2])
	case TorsionDrive:
		return ic.NewDihedral(a[0], a[1], a[2], a[3])
	case OOPDrive:
		return ic.NewOutOfPlane(a[0], a[1], a[2], a[3])
	}
	return ic.NewDistance(a[0], a[1])
}

// target returns the target of D in A or radians.
func (D DrivingCoord) target(top *chem.Topology) (float64, error) {
	if D.HasTarget {
		if D.Kind == Add || D.Kind == Break {
			return D.Target, nil
		}
		return chem.Deg2Rad(D.Target), nil
	}
	if D.Kind != Add && D.Kind != Break {
		return 0, newError(KindInvariant, fmt.Sprintf("%v driving coordinate without target", D.Kind), "target", nil)
	}
	if top == nil {
		return 0, newError(KindInvariant, "default bond targets need a topology", "target", nil)
	}
	a := D.atoms()
	vdw := top.Atom(a[0]).Vdw + top.Atom(a[1]).Vdw
	if D.Kind == Add {
		return vdw / 2.8, nil
	}
	return vdw, nil
}

// DrivingPrimitives returns the primitives driven by dc, to be added to the
// coordinate set of a single-ended string.
func DrivingPrimitives(dc []DrivingCoord) []ic.Primitive {
	r := make([]ic.Primitive, 0, len(dc))
	for _, d := range dc {
		r = append(r, d.Primitive())
	}
	return r
}

// ParseDrivingCoords reads driving coordinates in the form "ADD 1 3 1.2", one per
// line. The target is optional for ADD and BREAK. Empty lines and lines starting
// with # are skipped.
func ParseDrivingCoords(lines []string) ([]DrivingCoord, error) {
	var ret []DrivingCoord
	for ln, l := range lines {
		fields := strings.Fields(l)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		kind, ok := drivingNames[strings.ToUpper(fields[0])]
		if !ok {
			return nil, newError(KindInvariant, fmt.Sprintf("line %d: unknown driving coordinate %s", ln+1, fields[0]), "ParseDrivingCoords", nil)
		}
		nat := drivingAtoms[kind]
		if len(fields) < nat+1 || len(fields) > nat+2 {
			return nil, newError(KindInvariant, fmt.Sprintf("line %d: %s needs %d atoms and a target", ln+1, fields[0], nat), "ParseDrivingCoords", nil)
		}
		d := DrivingCoord{Kind: kind, Atoms: make([]int, nat)}
		for i := 0; i < nat; i++ {
			a, err := strconv.Atoi(fields[i+1])
			if err != nil || a < 1 {
				return nil, newError(KindInvariant, fmt.Sprintf("line %d: bad atom index %s", ln+1, fields[i+1]), "ParseDrivingCoords", err)
			}
			d.Atoms[i] = a
		}
		if len(fields) == nat+2 {
			t, err := strconv.ParseFloat(fields[nat+1], 64)
			if err != nil {
				return nil, newError(KindInvariant, fmt.Sprintf("line %d: bad target %s", ln+1, fields[nat+1]), "ParseDrivingCoords", err)
			}
			d.Target = t
			d.HasTarget = true
		} else if kind != Add && kind != Break {
			return nil, newError(KindInvariant, fmt.Sprintf("line %d: %s needs a target", ln+1, fields[0]), "ParseDrivingCoords", nil)
		}
		ret = append(ret, d)
	}
	return ret, nil
}

// Tangent returns the vector q(b)-q(a), obtained with the primitives of b, so it
// points from a toward b. A zero tangent is an invariant violation.
func Tangent(a, b *Node) ([]float64, error) {
	t := b.eng.CalcDiff(b.xyz, a.xyz)
	if floats.Norm(t, 2) == 0 {
		return nil, newError(KindInvariant, fmt.Sprintf("zero tangent between nodes %d and %d", a.ID, b.ID), "Tangent", nil)
	}
	return t, nil
}

// minimum angular difference (radians) for an angle to count as unsatisfied.
const angleDriveTol = 0.1

// DrivingTangent returns the tangent from n toward the targets of dc, and the
// boundary distance: the root sum of squares of the components whose target has not
// been reached. top is only needed for ADD and BREAK coordinates without a target.
func DrivingTangent(n *Node, top *chem.Topology, dc []DrivingCoord) ([]float64, float64, error) {
	prims := n.eng.Prims()
	tan := make([]float64, prims.Len())
	bdist := 0.0
	for _, d := range dc {
		p := d.Primitive()
		idx := prims.DofIndex(p)
		if idx < 0 {
			return nil, 0, newError(KindInvariant, fmt.Sprintf("driving coordinate %v is not among the primitives", p), "DrivingTangent", nil)
		}
		target, err := d.target(top)
		if err != nil {
			return nil, 0, errDecorate(err, "DrivingTangent")
		}
		current := p.Value(n.xyz)
		diff := target - current
		switch d.Kind {
		case Add:
			if current > target {
				bdist += diff * diff
			}
		case Break:
			if current < target {
				bdist += diff * diff
			}
		case TorsionDrive, OOPDrive:
			diff = math.Remainder(diff, 2*math.Pi)
			if diff <= -math.Pi {
				diff += 2 * math.Pi
			}
			fallthrough
		default:
			if math.Abs(diff) > angleDriveTol {
				bdist += diff * diff
			}
		}
		tan[idx] = diff
	}
	if floats.Norm(tan, 2) == 0 {
		return nil, 0, newError(KindInvariant, "zero driving tangent, no primitive was driven", "DrivingTangent", nil)
	}
	return tan, math.Sqrt(bdist), nil
}

func unit(v []float64) ([]float64, float64) {
	norm := floats.Norm(v, 2)
	r := make([]float64, len(v))
	if norm > 0 {
		floats.ScaleTo(r, 1/norm, v)
	}
	return r, norm
}

// tangents3Way sets the tangents of the interior nodes of a fully grown string. A node
// on a monotonic stretch of the profile uses the tangent to the neighbor on the uphill
// side. Nodes at an extremum use a blend of the tangents to both neighbors, weighted
// toward the side with the larger energy change. During the TS search the choice is
// made by position relative to the peak instead. All tangents point toward the product.
// The bases are rebuilt, except for the peak node during the TS search, unless
// updateTS is true.
func (S *String) tangents3Way(updateTS bool) error {
	E := S.Energies()
	ts := S.TSNode()
	for n := 1; n < S.N()-1; n++ {
		var mode int //-1 backward, 1 forward, 0 blend
		switch {
		case S.stage.find && n < ts:
			mode = 1
		case S.stage.find && n > ts:
			mode = -1
		case S.stage.find:
		case E[n+1] > E[n] && E[n] > E[n-1]:
			mode = 1
		case E[n-1] > E[n] && E[n] > E[n+1]:
			mode = -1
		}
		t, err := S.nodeTangent(n, mode, E)
		if err != nil {
			return errDecorate(err, "tangents3Way")
		}
		S.tangents[n], S.dqmaga[n] = unit(t)
		if S.dqmaga[n] <= 0 {
			return newError(KindInvariant, fmt.Sprintf("non-positive tangent magnitude at node %d", n), "tangents3Way", nil)
		}
		if (S.stage.climb || S.stage.find) && n == ts && !updateTS {
			continue
		}
		if err := S.nodes[n].UpdateBasis(S.tangents[n]); err != nil {
			return errDecorate(err, "tangents3Way")
		}
	}
	return nil
}

func (S *String) nodeTangent(n, mode int, E []float64) ([]float64, error) {
	switch mode {
	case 1:
		return Tangent(S.nodes[n], S.nodes[n+1])
	case -1:
		return Tangent(S.nodes[n-1], S.nodes[n])
	}
	dE1 := math.Abs(E[n+1] - E[n])
	dE2 := math.Abs(E[n] - E[n-1])
	dEmax := math.Max(dE1, dE2)
	dEmin := math.Min(dE1, dE2)
	f1 := dEmax / (dEmax + dEmin + 1e-8)
	if E[n+1] <= E[n-1] {
		f1 = 1 - f1
	}
	t1, err := Tangent(S.nodes[n], S.nodes[n+1])
	if err != nil {
		return nil, err
	}
	t2, err := Tangent(S.nodes[n-1], S.nodes[n])
	if err != nil {
		return nil, err
	}
	t := make([]float64, len(t1))
	floats.AddScaledTo(t, t, f1, t1)
	floats.AddScaled(t, 1-f1, t2)
	return t, nil
}
