/*
 * surfaces.go, part of gostring.
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

package lot

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// both computes the two states concurrently.
func both(ctx context.Context, a, b LevelOfTheory, xyz []float64) (*Result, *Result, error) {
	var ra, rb *Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ra, err = a.Compute(gctx, xyz)
		return err
	})
	g.Go(func() error {
		var err error
		rb, err = b.Compute(gctx, xyz)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ra, rb, nil
}

// Average is the mean of two states, used to optimize on a crossing seam.
type Average struct {
	A, B LevelOfTheory
}

func (S *Average) Compute(ctx context.Context, xyz []float64) (*Result, error) {
	ra, rb, err := both(ctx, S.A, S.B, xyz)
	if err != nil {
		return nil, err
	}
	r := &Result{
		Energy:   0.5 * (ra.Energy + rb.Energy),
		Gradient: make([]float64, len(ra.Gradient)),
		States:   []float64{ra.Energy, rb.Energy},
	}
	for i := range r.Gradient {
		r.Gradient[i] = 0.5 * (ra.Gradient[i] + rb.Gradient[i])
	}
	return r, nil
}

func (S *Average) DoCoupling() bool     { return S.A.DoCoupling() || S.B.DoCoupling() }
func (S *Average) Surface() SurfaceKind { return AveragedSeam }

// Default parameters of the penalty function, in Hartree for Alpha.
const (
	DefaultSigma = 3.5
	DefaultAlpha = 0.02
)

// Penalty is the penalty function of Levine, Coe and Martinez (J. Phys. Chem. B 112, 405
// (2008)), the mean of two states plus Sigma*dE^2/(dE+Alpha), where dE is the gap.
// It is minimized at a conical intersection.
type Penalty struct {
	A, B         LevelOfTheory
	Sigma, Alpha float64
}

// NewPenalty returns a penalty surface with the default parameters.
func NewPenalty(a, b LevelOfTheory) *Penalty {
	return &Penalty{A: a, B: b, Sigma: DefaultSigma, Alpha: DefaultAlpha}
}

func (S *Penalty) Compute(ctx context.Context, xyz []float64) (*Result, error) {
	ra, rb, err := both(ctx, S.A, S.B, xyz)
	if err != nil {
		return nil, err
	}
	gap := rb.Energy - ra.Energy
	sign := 1.0
	if gap < 0 {
		gap = -gap
		sign = -1
	}
	r := &Result{
		Energy:   0.5*(ra.Energy+rb.Energy) + S.Sigma*gap*gap/(gap+S.Alpha),
		Gradient: make([]float64, len(ra.Gradient)),
		States:   []float64{ra.Energy, rb.Energy},
	}
	dpen := S.Sigma * (gap*gap + 2*S.Alpha*gap) / ((gap + S.Alpha) * (gap + S.Alpha))
	for i := range r.Gradient {
		r.Gradient[i] = 0.5*(ra.Gradient[i]+rb.Gradient[i]) + sign*dpen*(rb.Gradient[i]-ra.Gradient[i])
	}
	return r, nil
}

func (S *Penalty) DoCoupling() bool     { return true }
func (S *Penalty) Surface() SurfaceKind { return PenaltySurface }
