/*
 * opt.go, part of gostring.
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

// Package opt contains the per-node optimizer used by the growing string method.
// Steps are taken in the working basis of each node, with a Hessian approximation
// kept in the primitive space.
package opt

import (
	"context"
	"math"

	"github.com/rmera/gostring/gsm"
	"github.com/rmera/gostring/ic"
	"github.com/rmera/gostring/lot"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Options for an Optimizer. Steps are in the internal coordinate space.
type Options struct {
	DMax    float64 `yaml:"dmax"`     //initial trust radius
	MaxDMax float64 `yaml:"max_dmax"` //the trust radius never grows over this
	MinDMax float64 `yaml:"min_dmax"` //nor shrinks under this
	//MinCurvature is the smallest absolute eigenvalue used to scale a step.
	MinCurvature float64 `yaml:"min_curvature"`
	//MinOverlap is the smallest acceptable overlap between the tangent and
	//the Hessian eigenvector followed in a TS step.
	MinOverlap float64 `yaml:"min_overlap"`
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{
		DMax:         0.1,
		MaxDMax:      0.25,
		MinDMax:      0.0001,
		MinCurvature: 0.01,
		MinOverlap:   0.5,
	}
}

// Optimizer implements gsm.Optimizer.
type Optimizer struct {
	id        int
	o         Options
	conv      gsm.Convergence
	dmax      float64
	variant   gsm.Variant
	converged bool
	nneg      int
	overlapOK bool
	log       *zap.Logger
}

// New returns an optimizer for the node slot id. A nil o gives DefaultOptions,
// and a nil log, a no-op logger.
func New(id int, o *Options, log *zap.Logger) *Optimizer {
	if o == nil {
		o = DefaultOptions()
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := gsm.DefaultOptions()
	return &Optimizer{
		id: id,
		o:  *o,
		conv: gsm.Convergence{
			GradRMS:    d.ConvTol,
			GradMax:    d.ConvGmax,
			EnergyDiff: d.ConvEdiff,
			Gap:        d.ConvdE,
		},
		dmax:      o.DMax,
		overlapOK: true,
		log:       log.With(zap.Int("node", id)),
	}
}

// Factory returns a gsm.OptimizerFactory that builds optimizers with the given options.
func Factory(o *Options, log *zap.Logger) gsm.OptimizerFactory {
	return func(id int) gsm.Optimizer {
		return New(id, o, log)
	}
}

// Converged tells whether the last call to Optimize ended because the
// convergence criteria were met.
func (O *Optimizer) Converged() bool { return O.converged }

// Nneg returns the number of negative Hessian eigenvalues found in the last TS step.
func (O *Optimizer) Nneg() int { return O.nneg }

// MaxOverlapGood is false if the last TS step found no eigenvector overlapping the tangent.
func (O *Optimizer) MaxOverlapGood() bool { return O.overlapOK }

// Conv returns the convergence thresholds, which the caller may change.
func (O *Optimizer) Conv() *gsm.Convergence { return &O.conv }

// DMax is the current trust radius.
func (O *Optimizer) DMax() float64 { return O.dmax }

// SetDMax sets the trust radius, within the limits given in the options.
func (O *Optimizer) SetDMax(d float64) {
	O.dmax = math.Min(math.Max(d, O.o.MinDMax), O.o.MaxDMax)
}

// SetVariant sets the Hessian update used. EigenvectorFollow uses the Powell
// update, which does not force the Hessian to stay positive definite.
func (O *Optimizer) SetVariant(v gsm.Variant) { O.variant = v }

// Optimize performs at most steps steps on n. See gsm.Optimizer.
func (O *Optimizer) Optimize(ctx context.Context, n *gsm.Node, refE float64, t gsm.OptType, steps int, tangent []float64) error {
	O.converged = false
	if t == gsm.Unconstrained || t == gsm.MECI {
		return O.minimize(ctx, n, steps)
	}
	if err := n.Evaluate(ctx); err != nil {
		return err
	}
	var constraint []float64
	if t.Constrained() {
		constraint = tangent
	}
	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.UpdateBasis(constraint); err != nil {
			return err
		}
		U := n.Basis()
		g := ic.ToBasis(U, n.PrimGradient())
		H := ic.HessianToBasis(U, n.PrimHessian())
		var dq []float64
		switch t {
		case gsm.TS:
			dq = O.tsStep(H, g, U, tangent)
		case gsm.CLIMB, gsm.TSSeam:
			dq = O.constrainedStep(H, g, true)
		default:
			if constraint == nil {
				dq = O.newtonStep(H, g)
				break
			}
			dq = O.constrainedStep(H, g, false)
		}
		if norm := floats.Norm(dq, 2); norm > O.dmax {
			floats.Scale(O.dmax/norm, dq)
		}
		pred := predicted(H, g, dq)
		xyzOld := n.XYZ()
		gOld := append([]float64(nil), n.PrimGradient()...)
		eOld := n.Energy()

		newxyz, bork, err := n.Engine().NewCartesian(xyzOld, ic.FromBasis(U, dq))
		if err != nil {
			return err
		}
		if bork {
			O.SetDMax(O.dmax / 2)
			O.log.Debug("back-transformation failed, reducing the step", zap.Float64("dmax", O.dmax))
			continue
		}
		n.SetGeometry(newxyz)
		if err := n.Evaluate(ctx); err != nil {
			return err
		}
		dE := n.Energy() - eOld
		O.trust(dE, pred, t)
		if n.NewHess() > 0 {
			n.SetNewHess(n.NewHess() - 1)
		} else {
			s := n.Engine().CalcDiff(newxyz, xyzOld)
			y := make([]float64, len(gOld))
			floats.SubTo(y, n.PrimGradient(), gOld)
			if O.variant == gsm.EigenvectorFollow || t == gsm.TS {
				powell(n.PrimHessian(), s, y)
			} else {
				bfgs(n.PrimHessian(), s, y)
			}
		}
		if err := n.UpdateBasis(constraint); err != nil {
			return err
		}
		_, gmax := n.ProjectedGradient()
		dEkcal := math.Abs(dE) * lot.KcalMolPerHartree
		O.log.Debug("step", zap.Stringer("type", t), zap.Int("step", step),
			zap.Float64("E", (n.Energy()-refE)*lot.KcalMolPerHartree), zap.Float64("dE", dEkcal),
			zap.Float64("gradrms", n.GradRMS()), zap.Float64("gmax", gmax), zap.Float64("dmax", O.dmax))
		if n.GradRMS() < O.conv.GradRMS && gmax < O.conv.GradMax && dEkcal < O.conv.EnergyDiff && O.gapOK(n, t) {
			O.converged = true
			break
		}
	}
	return nil
}

// gapOK checks the gap between the two states for the seam types.
func (O *Optimizer) gapOK(n *gsm.Node, t gsm.OptType) bool {
	if t != gsm.SEAM && t != gsm.TSSeam {
		return true
	}
	s := n.States()
	if len(s) < 2 {
		return true
	}
	return math.Abs(s[1]-s[0])*lot.KcalMolPerHartree < O.conv.Gap
}

// trust updates the trust radius from the ratio between the actual and
// predicted energy changes.
func (O *Optimizer) trust(dE, pred float64, t gsm.OptType) {
	if pred == 0 {
		return
	}
	ratio := dE / pred
	switch {
	case ratio < 0.25 || ratio > 4:
		O.SetDMax(O.dmax / 2)
	case ratio > 0.75 && ratio < 1.33 && t != gsm.TS:
		O.SetDMax(O.dmax * 1.2)
	}
}

// eigen returns the eigenvalues, in ascending order, and the eigenvectors of the
// symmetrized H.
func eigen(H mat.Matrix) ([]float64, *mat.Dense, bool) {
	k, _ := H.Dims()
	S := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			S.SetSym(i, j, (H.At(i, j)+H.At(j, i))/2)
		}
	}
	var es mat.EigenSym
	if !es.Factorize(S, true) {
		return nil, nil, false
	}
	V := mat.NewDense(k, k, nil)
	es.VectorsTo(V)
	return es.Values(nil), V, true
}

// newtonStep is a minimization step along every direction. Each eigenvector
// contributes -(v.g)/|l| v, so the step always goes downhill.
func (O *Optimizer) newtonStep(H mat.Matrix, g []float64) []float64 {
	k := len(g)
	dq := make([]float64, k)
	vals, V, ok := eigen(H)
	if !ok {
		copy(dq, g)
		floats.Scale(-1, dq)
		return dq
	}
	v := make([]float64, k)
	for i, l := range vals {
		mat.Col(v, i, V)
		floats.AddScaled(dq, -floats.Dot(v, g)/math.Max(math.Abs(l), O.o.MinCurvature), v)
	}
	return dq
}

// constrainedStep minimizes in the space orthogonal to the first basis vector.
// If climb is true, it also maximizes along that vector.
func (O *Optimizer) constrainedStep(H *mat.Dense, g []float64, climb bool) []float64 {
	k := len(g)
	dq := make([]float64, k)
	if k > 1 {
		sub := O.newtonStep(H.Slice(1, k, 1, k), g[1:])
		copy(dq[1:], sub)
	}
	if climb {
		dq[0] = g[0] / math.Max(math.Abs(H.At(0, 0)), O.o.MinCurvature)
	}
	return dq
}

// tsStep follows uphill the Hessian eigenvector that overlaps the tangent the
// most, and minimizes along all the others.
func (O *Optimizer) tsStep(H *mat.Dense, g []float64, U *mat.Dense, tangent []float64) []float64 {
	k := len(g)
	vals, V, ok := eigen(H)
	if !ok {
		O.overlapOK = false
		return O.newtonStep(H, g)
	}
	O.nneg = 0
	for _, l := range vals {
		if l < -1e-5 {
			O.nneg++
		}
	}
	mode := 0
	if tangent != nil {
		tb := ic.ToBasis(U, tangent)
		if nrm := floats.Norm(tb, 2); nrm > 0 {
			floats.Scale(1/nrm, tb)
		}
		best := -1.0
		v := make([]float64, k)
		for i := 0; i < k; i++ {
			mat.Col(v, i, V)
			if ov := math.Abs(floats.Dot(v, tb)); ov > best {
				best, mode = ov, i
			}
		}
		O.overlapOK = best >= O.o.MinOverlap
	}
	dq := make([]float64, k)
	v := make([]float64, k)
	for i, l := range vals {
		mat.Col(v, i, V)
		c := -floats.Dot(v, g) / math.Max(math.Abs(l), O.o.MinCurvature)
		if i == mode {
			c = -c
		}
		floats.AddScaled(dq, c, v)
	}
	O.log.Debug("TS step", zap.Int("mode", mode), zap.Float64("eigenvalue", vals[mode]), zap.Int("nneg", O.nneg), zap.Bool("overlap_ok", O.overlapOK))
	return dq
}

// predicted energy change for the step dq, with the quadratic model.
func predicted(H mat.Matrix, g, dq []float64) float64 {
	d := mat.NewVecDense(len(dq), dq)
	return floats.Dot(g, dq) + 0.5*mat.Inner(d, H, d)
}

// bfgs updates H in place. The update is skipped when it would not keep H
// positive definite.
func bfgs(H *mat.Dense, s, y []float64) {
	n := len(s)
	sv := mat.NewVecDense(n, s)
	yv := mat.NewVecDense(n, y)
	ys := mat.Dot(yv, sv)
	Hs := mat.NewVecDense(n, nil)
	Hs.MulVec(H, sv)
	sHs := mat.Dot(sv, Hs)
	if ys < 1e-10 || sHs < 1e-10 {
		return
	}
	var a, b mat.Dense
	a.Outer(1/ys, yv, yv)
	b.Outer(1/sHs, Hs, Hs)
	H.Add(H, &a)
	H.Sub(H, &b)
}

// powell applies the Powell symmetric Broyden update to H, in place.
func powell(H *mat.Dense, s, y []float64) {
	n := len(s)
	sv := mat.NewVecDense(n, s)
	ss := mat.Dot(sv, sv)
	if ss < 1e-12 {
		return
	}
	r := mat.NewVecDense(n, nil)
	r.MulVec(H, sv)
	r.SubVec(mat.NewVecDense(n, y), r)
	rs := mat.Dot(r, sv)
	var a, b, c mat.Dense
	a.Outer(1/ss, r, sv)
	b.Outer(1/ss, sv, r)
	c.Outer(rs/(ss*ss), sv, sv)
	H.Add(H, &a)
	H.Add(H, &b)
	H.Sub(H, &c)
}
