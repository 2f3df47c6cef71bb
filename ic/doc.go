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
Package ic implements redundant primitive internal coordinates (distances, angles,
dihedrals, out-of-plane, and fragment translations/rotations) and the transformations
between them and cartesian coordinates.

All coordinates are handled as flat slices of 3N float64, in Angstrom. Angular
primitives are in radians.

An Engine is built over a PrimitiveSet and owns the caches used by the transformations
(the Wilson B-matrix memo, and a one-entry memo for NewCartesian). An Engine is not safe
for concurrent use. A PrimitiveSet can be shared by several engines, as long as it is
not modified after that.
*/
package ic
