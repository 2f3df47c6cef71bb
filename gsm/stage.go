/*
 * stage.go, part of gostring.
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
	"slices"

	"github.com/rmera/gostring/lot"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

type peakMode int

const (
	peaksGrowing peakMode = iota
	peaksOpting
	peaksIntermediate
)

// findPeaks counts the significant peaks of the energy profile, that is, the local
// maxima with some later node lying lower than them by more than a threshold. While
// growing, only the reactant side is considered. In the intermediate mode, a single
// peak followed by a minimum counts as two. It returns -1 for profiles that only go
// uphill and -2 for those that look dissociative, if no peak was found.
func (S *String) findPeaks(mode peakMode) int {
	E := S.Energies()
	nn := S.N()
	if mode == peaksGrowing {
		nn = S.nR
	}
	if nn < 2 {
		return 0
	}
	c := S.cal
	allup := true
	for n := 1; n < nn; n++ {
		if E[n]+c.PeakUpTol < E[n-1] {
			allup = false
			break
		}
	}
	diss := false
	if E[nn-1] > c.DissociativeE && nn >= 4 {
		diss = E[nn-1]-E[nn-2] < c.DissociativeDE &&
			E[nn-2]-E[nn-3] < c.DissociativeDE &&
			E[nn-3]-E[nn-4] < c.DissociativeDE
	}
	var minnodes, maxnodes []int
	if E[1] > E[0] {
		minnodes = append(minnodes, 0)
	}
	if E[nn-1] < E[nn-2] {
		minnodes = append(minnodes, nn-1)
	}
	for n := 1; n < nn-1; n++ {
		if E[n+1] > E[n] && E[n] < E[n-1] {
			minnodes = append(minnodes, n)
		}
		if E[n+1] < E[n] && E[n] > E[n-1] {
			maxnodes = append(maxnodes, n)
		}
	}
	ediff := c.PeakEDiff
	switch mode {
	case peaksGrowing:
		ediff = c.PeakEDiffGrow
	case peaksIntermediate:
		ediff = c.PeakEDiffInter
	}
	npeaks, found := 0, 0
	for _, n := range maxnodes {
		for _, e := range E[n:nn] {
			if E[n]-e > ediff {
				found = n
				npeaks++
				break
			}
		}
	}
	if mode == peaksIntermediate && npeaks == 1 {
		for n := found; n < nn-1; n++ {
			if slices.Contains(minnodes, n) {
				if n > 0 {
					npeaks = 2
				}
				break
			}
		}
	}
	S.log.Debug("peaks", zap.Int("nodes", nn), zap.Bool("allup", allup), zap.Bool("dissociative", diss),
		zap.Ints("maxima", maxnodes), zap.Ints("minima", minnodes), zap.Int("significant", npeaks))
	if allup && npeaks == 0 {
		return -1
	}
	if diss && npeaks == 0 {
		return -2
	}
	return npeaks
}

// hasIntermediate tells whether the profile has an interior minimum with both sides
// rising more than the noise threshold before dipping again.
func (S *String) hasIntermediate() bool {
	E := S.Energies()
	noise := S.cal.Noise
	for i := 1; i < len(E)-1; i++ {
		var rnoise, pnoise float64
		for a := 1; E[i-a] >= E[i]; a++ {
			rnoise = math.Max(rnoise, E[i-a]-E[i])
			if rnoise > noise || i-a == 0 {
				break
			}
		}
		for b := 1; E[i+b] >= E[i]; b++ {
			pnoise = math.Max(pnoise, E[i+b]-E[i])
			if pnoise > noise || i+b == len(E)-1 {
				break
			}
		}
		if rnoise > noise && pnoise > noise {
			S.log.Debug("potential intermediate", zap.Int("node", i))
			return true
		}
	}
	return false
}

// setOptType returns the kind of optimization node n gets in this iteration.
func (S *String) setOptType(n, ts int) OptType {
	avg := S.nodes[n].lot.Surface() == lot.AveragedSeam
	switch {
	case S.stage.climb && n == ts && !S.stage.find && !avg:
		return CLIMB
	case S.stage.find && n == ts:
		return TS
	case avg && S.stage.climb && n == ts:
		return TSSeam
	case avg:
		return SEAM
	}
	return ICTAN
}

// multSteps returns the number of steps node n gets in this iteration. Nodes close in
// energy to the peak during the TS search, and sharp peaks, get twice as many.
func (S *String) multSteps(n, ts, steps int) int {
	if ts <= 0 || ts >= S.N()-1 {
		return steps
	}
	c := S.cal
	st := &S.stage
	E := S.Energies()
	sharp := func(f float64) bool { return E[ts] > E[ts-1]*f && E[ts] > E[ts+1]*f }
	switch {
	case st.find && n != ts && E[n] > E[ts]*c.MultHigh:
		conv := S.opt[n].Conv()
		conv.GradRMS = S.opts.ConvTol
		conv.GradMax = S.opts.ConvGmax
		conv.EnergyDiff = S.opts.ConvEdiff
		return 2 * steps
	case st.find && n == ts && sharp(c.MultSteep):
		return 2 * steps
	case !st.find && !st.climb && n == ts && st.climber && sharp(c.MultSteepPlain):
		return 2 * steps
	}
	return steps
}

// setNodeConvergence sets the thresholds of every optimizer. They are looser for
// nodes other than the peak when the run climbs or searches for the TS.
func (S *String) setNodeConvergence(ts int) {
	f := 1.0
	if S.stage.climber || S.stage.finder {
		f = S.cal.ConvFactor
	}
	for i, o := range S.opt {
		if S.nodes[i] == nil {
			continue
		}
		conv := o.Conv()
		conv.GradRMS = S.opts.ConvTol * f
		conv.GradMax = S.opts.ConvGmax * f
		conv.EnergyDiff = S.opts.ConvEdiff * f
		conv.Gap = S.opts.ConvdE
	}
	S.opt[ts].Conv().GradRMS = S.opts.ConvTol
}

// cgradq returns the absolute gradient of node n along its constraint.
func (S *String) cgradq(n int) float64 {
	nd := S.nodes[n]
	c := nd.constraint
	if c == nil {
		c = S.tangents[n]
	}
	if c == nil || nd.pgrad == nil {
		return 0
	}
	return math.Abs(floats.Dot(nd.pgrad, c))
}

// allConverged is true if every interior node has a gradient RMS under tol.
func (S *String) allConverged(tol float64) bool {
	for i := 1; i < S.N()-1; i++ {
		if S.nodes[i].gradRMS >= tol {
			return false
		}
	}
	return true
}

// isConverged tells whether the optimization of the string is over.
func (S *String) isConverged(rtype, ts int, totalgrad, cgradq float64) bool {
	st := &S.stage
	c := S.cal
	tol := S.opts.ConvTol
	tsg := S.nodes[ts].gradRMS
	switch {
	case rtype == FindTS && st.find:
		o := S.opt[ts]
		return (tsg < tol && st.dEIter < o.Conv().EnergyDiff) ||
			(totalgrad < c.TSConvTotal && tsg < c.TSConvFactor*tol && st.dEIter < c.TSConvDE && o.Nneg() < 2)
	case rtype == Climb && st.climb:
		return tsg < tol && cgradq < tol && st.dEIter < c.ClimbConvDE
	case !st.climber && !st.finder:
		for i := 1; i < S.N()-1; i++ {
			if !S.opt[i].Converged() {
				return false
			}
		}
		return true
	}
	return false
}

// setStage starts climbing, or the exact TS search, when the string is relaxed enough.
func (S *String) setStage(ts int, totalgrad, cgradq float64, fp int) error {
	st := &S.stage
	c := S.cal
	tol := S.opts.ConvTol
	tsg := S.nodes[ts].gradRMS
	relaxed := ((totalgrad < c.ClimbTotalGrad || cgradq < c.ClimbCGrad) && st.dEIter < c.ClimbDEIter) ||
		S.allConverged(tol*c.AllConvergedFactor)
	if fp <= 0 || !relaxed || st.noptIntermediate >= 1 {
		return nil
	}
	if !st.climb && st.climber {
		S.log.Info("starting climb", zap.Int("node", ts), zap.Float64("totalgrad", totalgrad),
			zap.Float64("gradrms", tsg), zap.Float64("cgradq", cgradq))
		st.climb = true
		st.pTSnode = ts
		return nil
	}
	if !st.climb || st.find || !st.finder || st.nclimb >= 1 || st.added || st.dEIter >= c.FindDEIter {
		return nil
	}
	ready := (totalgrad < c.FindTotalGrad && tsg < tol*c.FindTSFactor && cgradq < c.FindCGrad) ||
		(totalgrad < c.FindTotalGrad2 && tsg < tol*c.FindTSFactor && cgradq < c.FindCGrad2) ||
		S.allConverged(tol) ||
		tsg < tol*c.FindLooseTS
	if !ready {
		return nil
	}
	S.log.Info("starting exact TS search", zap.Int("node", ts), zap.Float64("totalgrad", totalgrad),
		zap.Float64("gradrms", tsg), zap.Float64("cgradq", cgradq))
	st.find = true
	if err := S.tangents3Way(false); err != nil {
		return errDecorate(err, "setStage")
	}
	if err := S.modifyTSHess(); err != nil {
		return errDecorate(err, "setStage")
	}
	o := S.opt[ts]
	if o.DMax() > c.FindDMax {
		o.SetDMax(c.FindDMax)
	}
	o.SetVariant(EigenvectorFollow)
	st.hessrcount = 0
	st.hessNegStreak = 0
	return nil
}
