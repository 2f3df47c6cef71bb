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
Package stf implements the string trajectory format, used to store the state of a
string at every iteration, so a run can be inspected, plotted or restarted.

The files are plain ASCII text, compressed with z-standard (zstd), or with gzip if
the file name ends in "z" (for instance, path.stz).

# Format

A file starts with a header. Each header line is a key=value pair. The header
ends with a line starting with "**", followed by one or more spaces and the number
of atoms per node. The precision (a positive integer, see below) must be given in
the header with the key "prec", for instance:

	prec=4
	run=2f0c1b0e-8f3c-4a4e-9c53-3b8f7d0c2a11
	** 3

After the header come the snapshots. Each snapshot starts with a line

	> stage iteration tsnode nodes

and is followed by one frame per node. A frame has one line per atom, with
the x, y and z cartesian coordinates in A, multiplied by 10 to the power of
the precision and rounded to an integer. Each frame ends with a line starting
with "*", followed by the energy of the node (kcal/mol, relative to the first
node) and its gradient RMS.

The "**" sequence is only used to end the header.
*/
package stf
