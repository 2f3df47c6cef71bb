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
Package chem is the base package of gostring, a growing string method library for
locating reaction paths and transition states. It provides atom, topology and molecule
structures, reading and writing of (multi-frame) XYZ files, distance-based bond
assignment and rigid superposition.

The rest of the library is organized in sub-packages:

	v3: Nx3 coordinate matrices based on gonum.
	ic: primitive internal coordinates, Wilson B-matrix, and the Cartesian/internal
	    coordinate transformations.
	lot: levels of theory (energies and gradients): an analytic force field, xtb,
	     and two-surface combinations.
	opt: per-node optimizers.
	gsm: the string itself: growth, tangents, reparametrization, climbing image
	     and transition state search.
	traj/stf: compressed trajectory snapshots of the string.
	chemplot: energy profile plots.
	cmd/gostring: command line interface.
*/
package chem
