/*
 * doc.go, part of gostring.
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

/*
Package gsm implements the growing string method, which finds reaction paths and
transition states by evolving a chain of structures (nodes) in internal coordinates.

A double-ended string (NewDE) is grown from both a reactant and a product. A
single-ended string (NewSE) is grown from a reactant only, driven by a set of
DrivingCoord, such as "ADD 1 3 1.2", which bring atoms 1 and 3 to 1.2 A.

Once grown (Grow), the string is optimized (Optimize) in stages: first every
node is relaxed orthogonally to the path, then the highest energy node climbs
along the path, and finally an exact transition state search is performed on it,
using a Hessian corrected with the curvature along the path.

	s, err := gsm.NewDE(ctx, top, reactant, product, opts)
	if err != nil {
		...
	}
	err = s.Run(ctx, gsm.FindTS)

The per-node optimizers are supplied through Options.Optimizer (see package opt),
and energies and gradients come from the level of theory of each node (see
package lot). Nodes are optimized in parallel within each iteration.

Errors returned by this package can be checked against ErrRetryExhausted,
ErrInvariant, ErrCapacity and ErrBudget with errors.Is.
*/
package gsm
