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

// Package lot provides levels of theory, i.e. the functions that give the energy
// and gradient of a molecule for a given geometry.
//
// Energies are in Hartree and gradients in Hartree/A. Geometries are flat slices
// with 3N elements, in A.
//
// ForceField is an analytic model built on the internal coordinates of package ic.
// XTB runs the xtb program by Stefan Grimme's group, which must be installed
// separately. Average and Penalty combine two surfaces, for seam and conical
// intersection searches.
package lot
