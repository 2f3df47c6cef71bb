/*
 * restart.go, part of gostring.
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
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// restart settings for the interior nodes.
const (
	restartConvFactor = 2.5
	restartDMax       = 0.05
)

// SetupFromGeometries replaces the nodes of the string with the given path, for
// instance one read from a previous run. If the number of geometries differs from the
// number of nodes, the path is redistributed to evenly spaced nodes along its internal
// coordinate arc length. Energies are always computed again. The string is left fully
// grown, with all interior nodes active.
func (S *String) SetupFromGeometries(ctx context.Context, geoms [][]float64) error {
	if len(geoms) < 2 {
		return newError(KindInvariant, "at least two geometries are needed to restart a string", "SetupFromGeometries", nil)
	}
	ref := S.nodes[0]
	path := make([]*Node, len(geoms))
	for i, g := range geoms {
		if len(g) != len(ref.xyz) {
			return newError(KindInvariant, fmt.Sprintf("geometry %d has %d coordinates, %d expected", i, len(g), len(ref.xyz)), "SetupFromGeometries", nil)
		}
		path[i] = ref.Copy(i, g)
	}
	if len(path) != S.N() {
		S.log.Info("redistributing restart path", zap.Int("geometries", len(path)), zap.Int("nodes", S.N()))
		var err error
		path, err = redistribute(path, S.N())
		if err != nil {
			return errDecorate(err, "SetupFromGeometries")
		}
	}
	ref.SetGeometry(geoms[0])
	S.nodes[0] = ref
	for i := 1; i < S.N(); i++ {
		S.nodes[i] = S.nodes[i-1].Copy(i, path[i].xyz)
		S.nodes[i].newHess = freshHessSteps
	}
	S.nR, S.nP = S.N(), 0
	S.doneGrowing = true
	if err := S.evaluate(ctx, S.populated()); err != nil {
		return errDecorate(err, "SetupFromGeometries")
	}
	if S.SingleEnded() {
		for _, n := range S.nodes {
			var err error
			if _, n.bdist, err = DrivingTangent(n, S.top, S.driving); err != nil {
				return errDecorate(err, "SetupFromGeometries")
			}
		}
	}
	if err := S.tangents3Way(true); err != nil {
		return errDecorate(err, "SetupFromGeometries")
	}
	for i := 1; i < S.N()-1; i++ {
		S.active[i] = true
		S.opt[i].Conv().GradRMS = S.opts.ConvTol * restartConvFactor
		S.opt[i].SetDMax(restartDMax)
	}
	return nil
}

// redistribute returns n nodes evenly spaced along the internal coordinate arc length
// of path. The first and last nodes of path are kept.
func redistribute(path []*Node, n int) ([]*Node, error) {
	seg := make([]float64, len(path)) //arc length up to each node
	for i := 1; i < len(path); i++ {
		t, err := Tangent(path[i-1], path[i])
		if err != nil {
			return nil, errDecorate(err, "redistribute")
		}
		seg[i] = seg[i-1] + floats.Norm(t, 2)
	}
	total := seg[len(seg)-1]
	ret := make([]*Node, n)
	ret[0] = path[0]
	ret[n-1] = path[len(path)-1]
	j := 0
	for k := 1; k < n-1; k++ {
		s := total * float64(k) / float64(n-1)
		for j < len(path)-2 && seg[j+1] < s {
			j++
		}
		f := 0.0
		if d := seg[j+1] - seg[j]; d > 0 {
			f = (s - seg[j]) / d
		}
		if f <= 0 {
			ret[k] = path[j].Copy(k, nil)
			continue
		}
		nd, err := AddNode(path[j], path[j+1], f, k)
		if err != nil {
			return nil, errDecorate(err, "redistribute")
		}
		if nd.Broken() {
			//the closest of the two geometries
			nd = path[j].Copy(k, nil)
			if f > 0.5 {
				nd = path[j+1].Copy(k, nil)
			}
		}
		ret[k] = nd
	}
	return ret, nil
}

// AddNodeBeforeTS inserts a node halfway between the peak and the node before it.
// The string grows by one node.
func (S *String) AddNodeBeforeTS(ctx context.Context) error {
	ts := S.TSNode()
	if ts < 1 {
		return newError(KindInvariant, "the peak node is the first node", "AddNodeBeforeTS", nil)
	}
	return errDecorate(S.insertBetween(ctx, ts-1, ts), "AddNodeBeforeTS")
}

// AddNodeAfterTS inserts a node halfway between the peak and the node after it.
// The string grows by one node.
func (S *String) AddNodeAfterTS(ctx context.Context) error {
	ts := S.TSNode()
	if ts > S.N()-2 {
		return newError(KindInvariant, "the peak node is the last node", "AddNodeAfterTS", nil)
	}
	return errDecorate(S.insertBetween(ctx, ts, ts+1), "AddNodeAfterTS")
}

// insertBetween adds a node between the consecutive nodes a and b, of a fully grown
// string. The new node gets a new optimizer, and every interior node is made active.
func (S *String) insertBetween(ctx context.Context, a, b int) error {
	if !S.Grown() {
		return newError(KindInvariant, "nodes can only be inserted in a fully grown string", "insertBetween", nil)
	}
	nd, err := AddNode(S.nodes[a], S.nodes[b], 0.5, b)
	if err != nil {
		return errDecorate(err, "insertBetween")
	}
	if nd.Broken() {
		S.log.Warn("inserted node comes from a broken step", zap.Int("node", b))
	}
	S.nodes = insertAt(S.nodes, b, nd)
	S.opt = insertAt(S.opt, b, S.opts.Optimizer(b))
	S.opt[b].SetDMax(S.opt[a].DMax())
	S.tangents = insertAt(S.tangents, b, nil)
	S.dqmaga = insertAt(S.dqmaga, b, 0)
	S.active = insertAt(S.active, b, true)
	for i, n := range S.nodes {
		n.ID = i
		S.active[i] = i > 0 && i < len(S.nodes)-1
	}
	if S.nP > 0 {
		S.nP++
	} else {
		S.nR++
	}
	S.log.Info("inserted node next to the peak", zap.Int("node", b), zap.Int("nodes", S.N()))
	if err := S.evaluate(ctx, []int{b}); err != nil {
		return errDecorate(err, "insertBetween")
	}
	return errDecorate(S.tangents3Way(false), "insertBetween")
}

func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
