/*
 * optimize.go, part of gostring.
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
)

// Kinds of optimization run, for Optimize and Run.
const (
	NoClimb = iota //relax the string only
	Climb          //the peak node climbs
	FindTS         //climb, then search for the exact TS
)

// Run grows the string, if needed, and optimizes it.
func (S *String) Run(ctx context.Context, rtype int) error {
	if err := S.Grow(ctx); err != nil {
		return errDecorate(err, "Run")
	}
	return errDecorate(S.Optimize(ctx, rtype), "Run")
}

// Optimize optimizes a fully grown string. Each iteration reparametrizes the string,
// rebuilds the tangents and optimizes the interior nodes, then decides whether the
// peak node should start climbing or searching for the exact TS (for rtype Climb and
// FindTS) and whether the run has converged. A persistent intermediate ends the run
// early without error (see EndedEarly).
func (S *String) Optimize(ctx context.Context, rtype int) error {
	if !S.Grown() {
		return newError(KindInvariant, "the string is not fully grown", "Optimize", nil)
	}
	if rtype < NoClimb || rtype > FindTS {
		return newError(KindInvariant, fmt.Sprintf("unknown optimization type %d", rtype), "Optimize", nil)
	}
	st := &S.stage
	st.nclimb = 0
	st.hessrcount = 0
	st.newClimbScale = 2
	st.climber = rtype >= Climb
	st.finder = rtype == FindTS
	S.doneGrowing = true
	for i := 1; i < S.N()-1; i++ {
		S.active[i] = true
	}
	if err := S.evaluate(ctx, S.populated()); err != nil {
		return errDecorate(err, "Optimize")
	}
	st.emax = S.Energies()[S.TSNode()]
	S.log.Info("optimizing string", zap.Int("nodes", S.N()), zap.Int("rtype", rtype))
	for oi := 0; ; oi++ {
		st.pTSnode = S.TSNode()
		st.emaxp = st.emax
		st.added = false
		if oi >= S.opts.MaxOptIters {
			return newError(KindBudget, fmt.Sprintf("string not converged after %d iterations", S.opts.MaxOptIters), "Optimize", nil)
		}
		if err := S.Reparam(ctx, 8); err != nil {
			return errDecorate(err, "Optimize")
		}
		if err := S.tangents3Way(false); err != nil {
			return errDecorate(err, "Optimize")
		}
		S.setNodeConvergence(S.TSNode())
		if err := S.optimizeIteration(ctx, S.opts.OptSteps, false); err != nil {
			return errDecorate(err, "Optimize")
		}
		ts := S.TSNode()
		if (st.climb || st.find) && (ts == S.N()-2 || ts == 1) {
			var err error
			if ts == 1 {
				err = S.AddNodeBeforeTS(ctx)
			} else {
				err = S.AddNodeAfterTS(ctx)
			}
			if err != nil {
				return errDecorate(err, "Optimize")
			}
			st.added = true
			ts = S.TSNode()
		}
		fp := S.findPeaks(peaksOpting)
		cgradq := 0.0
		if !st.find {
			cgradq = S.cgradq(ts)
		}
		tsg := S.nodes[ts].gradRMS
		st.emax = S.Energies()[ts]
		st.dEIter = math.Abs(st.emax - st.emaxp)
		totalgrad, gradrms, sumgradrms := S.metrics()

		converged := S.isConverged(rtype, ts, totalgrad, cgradq)
		if err := S.setStage(ts, totalgrad, cgradq, fp); err != nil {
			return errDecorate(err, "Optimize")
		}
		if st.climb {
			st.nclimb--
		}
		if st.noptIntermediate > 0 {
			st.noptIntermediate--
		}
		if st.pTSnode != ts && st.climb {
			if !st.find {
				o := S.opt[ts]
				o.SetDMax(o.DMax() / st.newClimbScale)
				if st.newClimbScale < S.cal.ClimbScaleMax {
					st.newClimbScale++
				}
				S.log.Info("the peak moved, slowing down the climb", zap.Int("from", st.pTSnode), zap.Int("to", ts))
			} else {
				st.find = false
				st.nclimb = 1
				S.opt[ts].SetVariant(QuasiNewton)
				S.log.Info("the peak moved, going back to climbing", zap.Int("from", st.pTSnode), zap.Int("to", ts))
			}
		}
		if err := S.checkCurvature(ts, tsg); err != nil {
			return errDecorate(err, "Optimize")
		}
		if rtype > NoClimb && S.hasIntermediate() {
			if !st.flagIntermediate {
				S.log.Info("intermediate found, relaxing the string before climbing again")
				st.noptIntermediate = S.cal.IntermediateIt
				st.climb = false
				st.find = false
				st.flagIntermediate = true
			}
			if st.noptIntermediate == 0 && st.flagIntermediate {
				S.log.Info("the intermediate persists, ending early")
				st.endEarly = true
				converged = true
			}
		} else if st.flagIntermediate {
			st.flagIntermediate = false
		}
		if (st.climber || st.finder) && monotonic(S.Energies(), S.cal.AllUpTol) {
			S.log.Info("monotonic profile, no climbing")
			rtype = NoClimb
			st.climber, st.finder, st.climb, st.find = false, false, false, false
		}
		S.log.Info("optimization iteration", zap.Int("iteration", oi), zap.Float64("totalgrad", totalgrad),
			zap.Float64("gradrms", gradrms), zap.Float64("sum_gradrms", sumgradrms), zap.Int("ts_node", ts),
			zap.Float64("emax", st.emax), zap.Float64("dE_iter", st.dEIter), zap.Bool("climb", st.climb), zap.Bool("find", st.find))
		S.snapshot("opt", oi)
		if converged {
			S.log.Info("string converged", zap.Int("iterations", oi+1), zap.Int("ts_node", ts), zap.Bool("ended_early", st.endEarly))
			S.snapshot("converged", oi)
			return nil
		}
	}
}

// checkCurvature rebuilds the Hessian of the peak node during the TS search when the
// optimizer could not follow the tangent mode, or when the curvature looks wrong. If
// that keeps happening, the search goes back to climbing for a few iterations.
func (S *String) checkCurvature(ts int, tsg float64) error {
	st := &S.stage
	if !st.find {
		return nil
	}
	c := S.cal
	o := S.opt[ts]
	nneg := o.Nneg()
	bad := nneg > c.MaxNneg || nneg == 0 || st.hessNegStreak > c.HessNegStreak ||
		st.hessCounter > c.HessCounterMax || math.Abs(st.tsE0-st.emax) > c.TSEnergyDrift
	defer func() {
		switch {
		case nneg > 1:
			st.hessNegStreak++
		case nneg == 1:
			st.hessNegStreak--
		}
	}()
	switch {
	case !o.MaxOverlapGood():
		if err := S.tangents3Way(false); err != nil {
			return err
		}
		return S.modifyTSHess()
	case bad && tsg > S.opts.ConvTol:
		if st.hessrcount < 1 && st.pTSnode == ts {
			S.log.Info("resetting the Hessian of the peak node", zap.Int("nneg", nneg))
			if err := S.tangents3Way(false); err != nil {
				return err
			}
			st.hessrcount = 1
			return S.modifyTSHess()
		}
		S.log.Info("Hessian consistently bad, going back to climbing", zap.Int("nneg", nneg))
		st.find = false
		st.nclimb = c.ClimbCooldown
		o.SetVariant(QuasiNewton)
	case nneg > 1 && tsg < S.opts.ConvTol:
		S.log.Info("several negative eigenvalues near convergence, reforming the Hessian", zap.Int("nneg", nneg))
		if err := S.tangents3Way(false); err != nil {
			return err
		}
		return S.modifyTSHess()
	case nneg <= c.MaxNneg:
		st.hessrcount--
		st.hessCounter++
	}
	return nil
}

// monotonic is true if E never goes down, or never goes up, by more than tol.
func monotonic(E []float64, tol float64) bool {
	up, down := true, true
	for i := 1; i < len(E); i++ {
		if E[i]+tol < E[i-1] {
			up = false
		}
		if E[i]-tol > E[i-1] {
			down = false
		}
	}
	return up || down
}

// optimizeIteration optimizes the active nodes in parallel. The kind of optimization
// and the number of steps of each node are decided before the fan-out.
func (S *String) optimizeIteration(ctx context.Context, steps int, growing bool) error {
	refE := S.nodes[0].energy
	ts := S.TSNode()
	types := make([]OptType, S.N())
	nsteps := make([]int, S.N())
	var idx []int
	for i, a := range S.active {
		if !a || S.nodes[i] == nil {
			continue
		}
		idx = append(idx, i)
		types[i] = S.setOptType(i, ts)
		nsteps[i] = steps
		if !growing {
			nsteps[i] = S.multSteps(i, ts, steps)
		}
	}
	err := S.parallel(ctx, idx, func(ctx context.Context, i int) error {
		return S.opt[i].Optimize(ctx, S.nodes[i], refE, types[i], nsteps[i], S.tangents[i])
	})
	if err != nil {
		return errDecorate(err, "optimizeIteration")
	}
	if growing || !S.SingleEnded() || S.opts.ProductGeomFixed {
		return nil
	}
	last := S.N() - 1
	E := S.Energies()
	if E[last] > E[last-1] && S.findPeaks(peaksOpting) > 0 && S.nodes[last].gradRMS > S.opts.ConvTol {
		S.log.Info("the last node is not a minimum, optimizing it", zap.Int("node", last))
		if err := S.opt[last].Optimize(ctx, S.nodes[last], refE, Unconstrained, steps, nil); err != nil {
			return errDecorate(err, "optimizeIteration")
		}
	}
	return nil
}
