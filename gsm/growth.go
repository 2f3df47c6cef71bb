/*
 * growth.go, part of gostring.
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
)

// steps given to the last node of a single-ended string when no more nodes can be added.
const fallbackSteps = 50

// Grow adds nodes to the string until it is fully grown. Double-ended strings grow
// from both ends (or the one set by Options.GrowthDirection), adding a node on a
// side once its front node is relaxed enough. Single-ended strings grow from the
// reactant, toward the targets of the driving coordinates, until the targets are
// reached or the string is full. In the first case, the last node is minimized and
// the string is truncated to the nodes grown so far.
func (S *String) Grow(ctx context.Context) error {
	if S.doneGrowing {
		return nil
	}
	S.log.Info("growing string", zap.Int("nodes", S.N()), zap.Bool("single_ended", S.SingleEnded()))
	if S.nR+S.nP == 2 || (S.SingleEnded() && S.nR == 1) {
		if _, err := S.addNodes(true); err != nil {
			return errDecorate(err, "Grow")
		}
	}
	if err := S.evaluate(ctx, S.populated()); err != nil {
		return errDecorate(err, "Grow")
	}
	if err := S.growthTangents(); err != nil {
		return errDecorate(err, "Grow")
	}
	S.setActive(S.nR-1, S.N()-S.nP)
	for iter := 0; ; iter++ {
		if iter >= S.opts.MaxGrowthIters {
			return newError(KindBudget, fmt.Sprintf("string not grown after %d iterations", S.opts.MaxGrowthIters), "Grow", nil)
		}
		if err := S.optimizeIteration(ctx, S.opts.MaxOptSteps, true); err != nil {
			return errDecorate(err, "Grow")
		}
		totalgrad, gradrms, _ := S.metrics()
		S.stage.emax = S.Energies()[S.TSNode()]
		S.log.Info("growth iteration", zap.Int("iteration", iter), zap.Float64("totalgrad", totalgrad),
			zap.Float64("gradrms", gradrms), zap.Float64("emax", S.stage.emax), zap.Int("nR", S.nR), zap.Int("nP", S.nP))
		S.snapshot("growth", iter)

		refused, err := S.addNodes(false)
		if err != nil {
			return errDecorate(err, "Grow")
		}
		if refused {
			S.log.Info("cannot add more nodes, the driving coordinates were reached", zap.Int("nR", S.nR))
			if err := S.minimizeLast(ctx, S.nR-1); err != nil {
				return errDecorate(err, "Grow")
			}
			S.truncate(S.nR)
			break
		}
		if err := S.evaluate(ctx, S.populated()); err != nil {
			return errDecorate(err, "Grow")
		}
		S.setActive(S.nR-1, S.N()-S.nP)
		if err := S.ReparamGrowth(ctx, 4); err != nil {
			return errDecorate(err, "Grow")
		}
		if err := S.growthTangents(); err != nil {
			return errDecorate(err, "Grow")
		}
		if S.grown() {
			if S.SingleEnded() && !S.Grown() {
				S.truncate(S.nR)
			}
			break
		}
	}
	S.doneGrowing = true
	S.log.Info("string grown", zap.Int("nodes", S.N()))
	S.snapshot("growth", -1)
	return nil
}

// addNodes adds a node on each growing side whose front is relaxed, or on every
// growing side if force is true. It returns true if a single-ended string could
// not grow because the driving coordinates are within Options.BDistMin of their targets.
func (S *String) addNodes(force bool) (bool, error) {
	dir := S.opts.GrowthDirection
	if S.SingleEnded() {
		dir = 1
	}
	tol := S.opts.AddNodeTol
	if dir != 2 && !S.Grown() && (force || S.nodes[S.nR-1].gradRMS < tol) {
		ok, err := S.AddNodeR()
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
	}
	if S.SingleEnded() || dir == 1 || S.Grown() {
		return false, nil
	}
	if force || S.nodes[S.N()-S.nP].gradRMS < tol {
		ok, err := S.AddNodeP()
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
	}
	return false, nil
}

func (S *String) stepsize() float64 {
	nn := S.nR + S.nP
	if S.N()-nn > 1 {
		return 1 / float64(S.N()-nn+1)
	}
	return 0.5
}

// AddNodeR adds a node next to the reactant-side front. It returns false if a
// single-ended string refused to grow because the boundary distance is under
// Options.BDistMin. Adding a node to a full string is an error.
func (S *String) AddNodeR() (bool, error) {
	if S.nR+S.nP+1 > S.N() {
		return false, newError(KindCapacity, fmt.Sprintf("cannot add node %d to a full string", S.nR), "AddNodeR", nil)
	}
	from := S.nodes[S.nR-1]
	var nd *Node
	var err error
	if S.SingleEnded() {
		nd, err = AddDrivingNode(from, S.top, S.driving, S.nR, S.opts)
	} else {
		nd, err = AddNode(from, S.nodes[S.N()-S.nP], S.stepsize(), S.nR)
	}
	if err != nil {
		return false, errDecorate(err, "AddNodeR")
	}
	if nd == nil {
		return false, nil
	}
	if nd.Broken() {
		S.log.Warn("new node comes from a broken step", zap.Int("node", S.nR))
	}
	if S.opts.Align {
		if err := alignTo(nd, from); err != nil {
			return false, errDecorate(err, "AddNodeR")
		}
	}
	S.opt[S.nR].SetDMax(S.opt[S.nR-1].DMax())
	S.nodes[S.nR] = nd
	S.nR++
	S.active[S.nR-1] = true
	S.log.Debug("added reactant-side node", zap.Int("node", S.nR-1), zap.Int("nR", S.nR), zap.Int("nP", S.nP), zap.Float64("bdist", nd.bdist))
	return true, nil
}

// AddNodeP adds a node next to the product-side front. It always returns true on
// success. Adding a node to a full string, or to a single-ended one, is an error.
func (S *String) AddNodeP() (bool, error) {
	if S.nR+S.nP+1 > S.N() {
		return false, newError(KindCapacity, fmt.Sprintf("cannot add node %d to a full string", S.N()-S.nP-1), "AddNodeP", nil)
	}
	if S.SingleEnded() {
		return false, newError(KindInvariant, "single-ended strings have no product side", "AddNodeP", nil)
	}
	n1 := S.N() - S.nP
	n2 := n1 - 1
	from := S.nodes[n1]
	nd, err := AddNode(from, S.nodes[S.nR-1], S.stepsize(), n2)
	if err != nil {
		return false, errDecorate(err, "AddNodeP")
	}
	if nd.Broken() {
		S.log.Warn("new node comes from a broken step", zap.Int("node", n2))
	}
	if S.opts.Align {
		if err := alignTo(nd, from); err != nil {
			return false, errDecorate(err, "AddNodeP")
		}
	}
	S.opt[n2].SetDMax(S.opt[n1].DMax())
	S.nodes[n2] = nd
	S.nP++
	S.active[n2] = true
	S.log.Debug("added product-side node", zap.Int("node", n2), zap.Int("nR", S.nR), zap.Int("nP", S.nP))
	return true, nil
}

// growthTangents sets the tangents and spacings of the grown nodes. All tangents
// point toward the product: within each side from one node to the next, and, for
// the fronts, from the reactant-side front to the product-side one (or toward the
// driving coordinate targets, for single-ended strings). The spacing of a node is the
// length of the tangent before normalization. The bases of the nodes are rebuilt.
func (S *String) growthTangents() error {
	for i := range S.tangents {
		S.tangents[i] = nil
		S.dqmaga[i] = 0
	}
	set := func(i int, t []float64) {
		S.tangents[i], S.dqmaga[i] = unit(t)
	}
	for i := 0; i < S.nR-1; i++ {
		t, err := Tangent(S.nodes[i], S.nodes[i+1])
		if err != nil {
			return errDecorate(err, "growthTangents")
		}
		set(i, t)
	}
	front := S.nodes[S.nR-1]
	if S.SingleEnded() {
		t, bdist, err := DrivingTangent(front, S.top, S.driving)
		if err != nil {
			return errDecorate(err, "growthTangents")
		}
		front.bdist = bdist
		set(S.nR-1, t)
	} else if S.nP > 0 && !S.Grown() {
		t, err := Tangent(front, S.nodes[S.N()-S.nP])
		if err != nil {
			return errDecorate(err, "growthTangents")
		}
		set(S.nR-1, t)
		set(S.N()-S.nP, t)
	}
	for i := S.N() - S.nP + 1; i < S.N(); i++ {
		t, err := Tangent(S.nodes[i-1], S.nodes[i])
		if err != nil {
			return errDecorate(err, "growthTangents")
		}
		set(i, t)
	}
	if S.Grown() && S.nP > 0 {
		//the fronts met: the reactant-side front points to its neighbor, which
		//is the product-side front.
		i := S.N() - S.nP
		t, err := Tangent(S.nodes[i-1], S.nodes[i])
		if err != nil {
			return errDecorate(err, "growthTangents")
		}
		set(i-1, t)
		set(i, t)
	}
	return S.refresh()
}

// refresh rebuilds the basis of every populated node that is not an endpoint, with
// its current tangent as the constraint.
func (S *String) refresh() error {
	for i := 1; i < S.N()-1; i++ {
		if S.nodes[i] == nil {
			continue
		}
		if err := S.nodes[i].UpdateBasis(S.tangents[i]); err != nil {
			return errDecorate(err, "refresh")
		}
	}
	return nil
}

// grown tells whether growth is over. Double-ended strings are grown when full.
// Single-ended strings also stop growing if the profile becomes dissociative, or
// once past a peak with the boundary distance reduced enough.
func (S *String) grown() bool {
	if S.Grown() {
		return true
	}
	if !S.SingleEnded() {
		return false
	}
	fp := S.findPeaks(peaksGrowing)
	if fp == -2 {
		S.log.Info("dissociative profile, stopping growth", zap.Int("nR", S.nR))
		return true
	}
	bdist0 := S.nodes[0].bdist
	front := S.nodes[S.nR-1].bdist
	if fp > 0 && front <= (1-S.opts.BDistRatio)*bdist0 {
		S.log.Info("past a peak and close to the targets, stopping growth", zap.Int("nR", S.nR), zap.Float64("bdist", front))
		return true
	}
	return false
}

// minimizeLast runs a plain minimization (or a MECI search, for levels of theory that
// request coupling) on the node in slot i.
func (S *String) minimizeLast(ctx context.Context, i int) error {
	t := Unconstrained
	if S.nodes[i].lot.DoCoupling() {
		t = MECI
	}
	S.opt[i].Conv().GradRMS = S.opts.ConvTol
	S.log.Info("optimizing last node", zap.Int("node", i), zap.Stringer("type", t))
	if err := S.opt[i].Optimize(ctx, S.nodes[i], S.nodes[0].energy, t, fallbackSteps, nil); err != nil {
		return errDecorate(err, "minimizeLast")
	}
	if S.SingleEnded() {
		var err error
		_, S.nodes[i].bdist, err = DrivingTangent(S.nodes[i], S.top, S.driving)
		if err != nil {
			return errDecorate(err, "minimizeLast")
		}
	}
	return nil
}

// truncate leaves the string with its first n slots, all of them populated.
func (S *String) truncate(n int) {
	S.nodes = S.nodes[:n]
	S.opt = S.opt[:n]
	S.active = S.active[:n]
	S.tangents = S.tangents[:n]
	S.dqmaga = S.dqmaga[:n]
	S.nR = n
	S.nP = 0
	for i := range S.active {
		S.active[i] = false
	}
}
