/*
 * curvature.go, part of gostring.
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

	"github.com/rmera/gostring/lot"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// steps without Hessian updates after the curvature correction.
const freshHessSteps = 5

// modifyTSHess replaces the curvature of the peak node Hessian along its tangent with
// a 3-point finite difference estimate from the peak and its neighbors. The other
// components are not changed. The basis of the peak node is left unconstrained.
func (S *String) modifyTSHess() error {
	ts := S.TSNode()
	if ts == 0 {
		return newError(KindInvariant, "the peak node has no left neighbor", "modifyTSHess", nil)
	}
	nd := S.nodes[ts]
	tan := S.tangents[ts]
	if tan == nil {
		return newError(KindInvariant, fmt.Sprintf("no tangent for peak node %d", ts), "modifyTSHess", nil)
	}
	E := S.Energies()
	S.stage.hessCounter = 0
	S.stage.tsE0 = E[ts]

	U, err := nd.eng.Basis(nd.xyz, tan)
	if err != nil {
		return errDecorate(err, "modifyTSHess")
	}
	t0 := mat.Col(nil, 0, U)
	E0 := E[ts] / lot.KcalMolPerHartree
	Em1 := E[ts-1] / lot.KcalMolPerHartree
	Ep1 := Em1
	a := math.Abs(floats.Dot(t0, nd.eng.CalcDiff(nd.xyz, S.nodes[ts-1].xyz)))
	b := a
	if ts+1 < S.N() {
		Ep1 = E[ts+1] / lot.KcalMolPerHartree
		b = math.Abs(floats.Dot(t0, nd.eng.CalcDiff(S.nodes[ts+1].xyz, nd.xyz)))
	}
	if a == 0 || b == 0 {
		return newError(KindInvariant, fmt.Sprintf("peak node %d coincides with a neighbor along the tangent", ts), "modifyTSHess", nil)
	}
	c := 2 * (Em1/a/(a+b) - E0/a/b + Ep1/b/(a+b))

	//t0 lies in the non-redundant space, so the update in the primitive space
	//gives the same result in any basis that spans it.
	n := len(t0)
	tv := mat.NewVecDense(n, t0)
	Ht := mat.NewVecDense(n, nil)
	Ht.MulVec(nd.hess, tv)
	tHt := mat.Dot(tv, Ht)
	var ttt mat.Dense
	ttt.Outer(c-tHt, tv, tv)
	nd.hess.Add(nd.hess, &ttt)
	nd.newHess = freshHessSteps

	if err := nd.UpdateBasis(nil); err != nil {
		return errDecorate(err, "modifyTSHess")
	}
	S.log.Info("modified the Hessian of the peak node", zap.Int("node", ts), zap.Float64("tHt", tHt),
		zap.Float64("a", a), zap.Float64("b", b), zap.Float64("c", c))
	return nil
}
