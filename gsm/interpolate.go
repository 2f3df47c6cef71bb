/*
 * interpolate.go, part of gostring.
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
	"math"

	chem "github.com/rmera/gostring"
	"github.com/rmera/gostring/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// AddNode returns a new node for slot id, placed stepsize (a fraction in (0,1]) of
// the way from "from" toward "to", along the first vector of the constrained basis
// of from. See Node.Broken for steps whose cartesian coordinates do not converge.
func AddNode(from, to *Node, stepsize float64, id int) (*Node, error) {
	t, err := Tangent(from, to)
	if err != nil {
		return nil, errDecorate(err, "AddNode")
	}
	return step(from, t, stepsize*floats.Norm(t, 2), id, "AddNode")
}

// AddDrivingNode returns a new node for slot id, obtained by stepping from "from"
// toward the targets of dc. The step shrinks as the boundary distance gets smaller.
// It returns nil, and no error, only if the boundary distance is under o.BDistMin.
func AddDrivingNode(from *Node, top *chem.Topology, dc []DrivingCoord, id int, o *Options) (*Node, error) {
	t, bdist, err := DrivingTangent(from, top, dc)
	if err != nil {
		return nil, errDecorate(err, "AddDrivingNode")
	}
	if bdist < o.BDistMin {
		return nil, nil
	}
	dqmag := o.DQMagMin + (o.DQMagMax-o.DQMagMin)*math.Min(bdist/1.5, 1)
	n, err := step(from, t, dqmag, id, "AddDrivingNode")
	if err != nil {
		return nil, err
	}
	_, n.bdist, err = DrivingTangent(n, top, dc)
	if err != nil {
		return nil, errDecorate(err, "AddDrivingNode")
	}
	return n, nil
}

// times a broken step is halved before its best effort geometry is kept.
const stepRetries = 4

// step moves dqmag from "from" along the first vector of its basis constrained to t.
// A step whose cartesian coordinates do not converge is halved, up to stepRetries
// times. If it still does not converge, the node is created anyway and marked broken.
func step(from *Node, t []float64, dqmag float64, id int, caller string) (*Node, error) {
	U, err := from.eng.Basis(from.xyz, t)
	if err != nil {
		return nil, errDecorate(err, caller)
	}
	dir := mat.Col(nil, 0, U)
	dq := make([]float64, len(dir))
	var newxyz []float64
	var bork bool
	for try := 0; try <= stepRetries; try++ {
		floats.ScaleTo(dq, dqmag, dir)
		newxyz, bork, err = from.eng.NewCartesian(from.xyz, dq)
		if err != nil {
			return nil, errDecorate(err, caller)
		}
		if !bork {
			break
		}
		dqmag /= 2
	}
	n := from.Copy(id, newxyz)
	n.broken = bork
	return n, nil
}

// Interpolate returns n nodes between start and end, added alternately from each
// side. If align is true, each new node is superimposed on the one it was
// created from. The nodes are returned in order, with IDs 1 to n.
func Interpolate(start, end *Node, n int, align bool) ([]*Node, error) {
	total := n + 2
	left := []*Node{start}
	right := []*Node{end}
	for i := 0; i < n; i++ {
		nn := len(left) + len(right)
		stepsize := 0.5
		if total-nn > 1 {
			stepsize = 1 / float64(total-nn)
		}
		var from, to *Node
		var id int
		if i%2 == 0 {
			from, to, id = left[len(left)-1], right[len(right)-1], len(left)
		} else {
			from, to, id = right[len(right)-1], left[len(left)-1], total-len(right)-1
		}
		nd, err := AddNode(from, to, stepsize, id)
		if err != nil {
			return nil, errDecorate(err, "Interpolate")
		}
		if align {
			if err := alignTo(nd, from); err != nil {
				return nil, errDecorate(err, "Interpolate")
			}
		}
		if i%2 == 0 {
			left = append(left, nd)
		} else {
			right = append(right, nd)
		}
	}
	ret := append([]*Node(nil), left[1:]...)
	for i := len(right) - 1; i > 0; i-- {
		ret = append(ret, right[i])
	}
	for i, nd := range ret {
		nd.ID = i + 1
	}
	return ret, nil
}

// alignTo rigidly superimposes n on parent. Internal coordinates that do not
// depend on the absolute position are not changed. Systems of fewer than 3 atoms
// are left alone.
func alignTo(n, parent *Node) error {
	if n.eng.NAtoms() < 3 {
		return nil
	}
	test, err := v3.FromFlat(n.xyz)
	if err != nil {
		return err
	}
	templa, err := v3.FromFlat(parent.xyz)
	if err != nil {
		return err
	}
	sup, err := chem.Super(test, templa, nil)
	if err != nil {
		return err
	}
	n.SetGeometry(sup.Flat())
	return nil
}
