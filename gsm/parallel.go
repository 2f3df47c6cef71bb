/*
 * parallel.go, part of gostring.
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
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// parallel runs f for each slot in idx, with at most Options.Workers running at the
// same time. Each call gets its own context, with the node timeout if one is set.
// The first error cancels the rest. Each slot is touched by one goroutine only.
func (S *String) parallel(ctx context.Context, idx []int, f func(context.Context, int) error) error {
	if len(idx) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if S.opts.Workers > 0 {
		g.SetLimit(S.opts.Workers)
	}
	for _, i := range idx {
		i := i
		g.Go(func() error {
			tctx := gctx
			if S.opts.NodeTimeout > 0 {
				var cancel context.CancelFunc
				tctx, cancel = context.WithTimeout(gctx, S.opts.NodeTimeout)
				defer cancel()
			}
			err := f(tctx, i)
			if err == nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return newError(KindBudget, fmt.Sprintf("node %d took longer than %v", i, S.opts.NodeTimeout), "parallel", err)
			}
			return errDecorate(err, fmt.Sprintf("parallel(node %d)", i))
		})
	}
	return g.Wait()
}
