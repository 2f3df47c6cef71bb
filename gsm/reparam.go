/*
 * reparam.go, part of gostring.
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
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Reparametrization constants.
const (
	maxReparamMove     = 0.5 //largest move per node and round, full string
	maxReparamMoveGrow = 1.1 //same, while growing
	reparamTol         = 0.02
	reparamTolGrow     = 0.01
)

// chainTangents sets, for each node n>0 of a fully grown string, the unit vector
// from node n-1 to node n, and the distance between them. Both are returned, and
// the first elements are nil and 0.
func (S *String) chainTangents() ([][]float64, []float64, error) {
	tans := make([][]float64, S.N())
	mags := make([]float64, S.N())
	for n := 1; n < S.N(); n++ {
		t, err := Tangent(S.nodes[n-1], S.nodes[n])
		if err != nil {
			return nil, nil, errDecorate(err, "chainTangents")
		}
		tans[n], mags[n] = unit(t)
	}
	return tans, mags, nil
}

// Reparam redistributes the interior nodes of a fully grown string so they are evenly
// spaced, or, while climbing or searching for the TS, evenly spaced on each side of the
// peak, which does not move. It stops after rounds rounds, or when the RMS of the
// proposed moves is under 0.02. The moved nodes are evaluated again.
func (S *String) Reparam(ctx context.Context, rounds int) error {
	if !S.Grown() {
		return newError(KindInvariant, "reparametrization of a string that is not fully grown", "Reparam", nil)
	}
	N := S.N()
	if N < 3 {
		return nil
	}
	climbing := S.stage.climb || S.stage.find
	ts := S.TSNode()
	if ts == 0 || ts == N-1 {
		climbing = false
	}
	moved := make(map[int]bool)
	rpmove := make([]float64, N)
	for round := 0; round < rounds; round++ {
		tans, mags, err := S.chainTangents()
		if err != nil {
			return errDecorate(err, "Reparam")
		}
		for i := range rpmove {
			rpmove[i] = 0
		}
		if !climbing {
			avg := floats.Sum(mags[1:]) / float64(N-1)
			for n := 1; n < N-1; n++ {
				rpmove[n] = -(mags[n] - avg)
			}
		} else {
			h1 := floats.Sum(mags[1 : ts+1])
			h2 := floats.Sum(mags[ts+1:])
			for n := 1; n < ts; n++ {
				rpmove[n] = -(mags[n] - h1/float64(ts))
			}
			for n := ts + 1; n < N-1; n++ {
				rpmove[n] = -(mags[n] - h2/float64(N-ts-1))
			}
		}
		for n := 1; n < N-1; n++ {
			rpmove[n] = clip(rpmove[n], maxReparamMove)
		}
		disprms := floats.Norm(rpmove[1:N-1], 2) / math.Sqrt(float64(N-2))
		S.log.Debug("reparametrization round", zap.Int("round", round), zap.Float64("disprms", disprms))
		if disprms < reparamTol {
			break
		}
		for n := 1; n < N-1; n++ {
			if rpmove[n] == 0 {
				continue
			}
			dir := tans[n]
			if rpmove[n] > 0 {
				dir = tans[n+1]
			}
			if err := S.move(n, dir, rpmove[n]); err != nil {
				return errDecorate(err, "Reparam")
			}
			moved[n] = true
			if S.nodes[n].newHess == 0 && !(climbing && n == ts) {
				S.nodes[n].newHess = 2
			}
		}
	}
	return errDecorate(S.evaluate(ctx, keys(moved)), "Reparam")
}

// ReparamGrowth redistributes the nodes grown so far, so the spacing within each side
// of a growing string is even. The gap between the fronts is not considered. It stops
// after rounds rounds, or when the RMS of the proposed moves is under 0.01. A fully
// grown string is passed to Reparam instead.
func (S *String) ReparamGrowth(ctx context.Context, rounds int) error {
	if S.Grown() {
		return S.Reparam(ctx, rounds)
	}
	N := S.N()
	moved := make(map[int]bool)
	rpmove := make([]float64, N)
	for round := 0; round < rounds; round++ {
		if err := S.growthTangents(); err != nil {
			return errDecorate(err, "ReparamGrowth")
		}
		intervals := S.nR - 1
		total := floats.Sum(S.dqmaga[:S.nR-1])
		if S.nP > 0 {
			intervals += S.nP - 1
			total += floats.Sum(S.dqmaga[N-S.nP+1:])
		}
		if intervals < 2 {
			break
		}
		avg := total / float64(intervals)
		for i := range rpmove {
			rpmove[i] = 0
		}
		var idx []int
		for n := 1; n < S.nR; n++ {
			rpmove[n] = clip(-(S.dqmaga[n-1] - avg), maxReparamMoveGrow)
			idx = append(idx, n)
		}
		for n := N - S.nP; n < N-1; n++ {
			rpmove[n] = clip(-(S.dqmaga[n+1] - avg), maxReparamMoveGrow)
			idx = append(idx, n)
		}
		sq := 0.0
		for _, n := range idx {
			sq += rpmove[n] * rpmove[n]
		}
		disprms := math.Sqrt(sq / float64(len(idx)))
		S.log.Debug("growth reparametrization round", zap.Int("round", round), zap.Float64("disprms", disprms))
		if disprms < reparamTolGrow {
			break
		}
		for _, n := range idx {
			if rpmove[n] == 0 {
				continue
			}
			var err error
			if n < S.nR {
				//forward (own tangent) if the node must move away from the reactant
				dir := S.tangents[n]
				if rpmove[n] < 0 {
					dir = S.tangents[n-1]
				}
				err = S.move(n, dir, rpmove[n])
			} else {
				//the product side moves the other way: a positive value is toward the reactant.
				dir := S.tangents[n]
				if rpmove[n] < 0 {
					dir = S.tangents[n+1]
				}
				err = S.move(n, dir, -rpmove[n])
			}
			if err != nil {
				return errDecorate(err, "ReparamGrowth")
			}
			moved[n] = true
			if S.nodes[n].newHess == 0 {
				S.nodes[n].newHess = 2
			}
		}
	}
	if S.SingleEnded() {
		for n := range moved {
			var err error
			if _, S.nodes[n].bdist, err = DrivingTangent(S.nodes[n], S.top, S.driving); err != nil {
				return errDecorate(err, "ReparamGrowth")
			}
		}
	}
	return errDecorate(S.evaluate(ctx, keys(moved)), "ReparamGrowth")
}

// move displaces node n by amount along dir, in the primitive space. dir is made
// the first vector of a constrained basis at the node geometry. Broken moves are
// skipped.
func (S *String) move(n int, dir []float64, amount float64) error {
	nd := S.nodes[n]
	if dir == nil {
		return newError(KindInvariant, fmt.Sprintf("no tangent to move node %d along", n), "move", nil)
	}
	U, err := nd.eng.Basis(nd.xyz, dir)
	if err != nil {
		return errDecorate(err, "move")
	}
	dq := mat.Col(nil, 0, U)
	floats.Scale(amount, dq)
	newxyz, bork, err := nd.eng.NewCartesian(nd.xyz, dq)
	if err != nil {
		return errDecorate(err, "move")
	}
	if bork {
		S.log.Debug("skipping broken reparametrization move", zap.Int("node", n), zap.Float64("amount", amount))
		return nil
	}
	nd.SetGeometry(newxyz)
	return nil
}

func clip(v, lim float64) float64 {
	if math.Abs(v) > lim {
		return math.Copysign(lim, v)
	}
	return v
}

func keys(m map[int]bool) []int {
	r := make([]int, 0, len(m))
	for k := range m {
		r = append(r, k)
	}
	return r
}
