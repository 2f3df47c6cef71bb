/*
 * minimize.go, part of gostring.
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

package opt

import (
	"context"
	"math"

	"github.com/rmera/gostring/gsm"
	"github.com/rmera/gostring/lot"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// minimize performs an unconstrained L-BFGS minimization of n in cartesian
// coordinates, on whatever surface the level of theory of n gives.
func (O *Optimizer) minimize(ctx context.Context, n *gsm.Node, steps int) error {
	var (
		lastX   []float64
		lastRes *lot.Result
		lotErr  error
	)
	eval := func(x []float64) *lot.Result {
		if lastX != nil && floats.Equal(x, lastX) {
			return lastRes
		}
		if lotErr != nil {
			return nil
		}
		r, err := n.LoT().Compute(ctx, x)
		if err != nil {
			lotErr = err
			return nil
		}
		lastX = append(lastX[:0], x...)
		lastRes = r
		return r
	}
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			r := eval(x)
			if r == nil {
				return math.Inf(1)
			}
			return r.Energy
		},
		Grad: func(grad, x []float64) {
			r := eval(x)
			if r == nil {
				for i := range grad {
					grad[i] = 0
				}
				return
			}
			copy(grad, r.Gradient)
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   steps,
		GradientThreshold: O.conv.GradRMS,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Iterations: 20,
		},
	}
	res, err := optimize.Minimize(p, n.XYZ(), settings, &optimize.LBFGS{})
	if lotErr != nil {
		return lotErr
	}
	if e := ctx.Err(); e != nil {
		return e
	}
	if res != nil && len(res.X) > 0 {
		n.SetGeometry(res.X)
	}
	if e := n.Evaluate(ctx); e != nil {
		return e
	}
	if err != nil {
		O.log.Debug("minimization stopped", zap.Error(err))
	}
	O.converged = err == nil && res != nil && res.Status == optimize.GradientThreshold
	O.log.Debug("minimized", zap.Int("steps", steps), zap.Float64("E", n.Energy()), zap.Bool("converged", O.converged))
	return nil
}
