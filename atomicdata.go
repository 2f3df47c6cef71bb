/*
 * atomicdata.go, part of gostring.
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

package chem

type element struct {
	mass     float64
	covrad   float64 //Cordero et al., 2008 (DOI:10.1039/B801115J)
	vdw      float64 //10.1021/j100785a001 and 10.1021/jp8111556
	maxbonds int     //0 means not checked
}

// H has an enlarged covalent radius. It only ever keeps one bond, so the extra
// bonds get removed by the maxbonds check.
var elements = map[string]element{
	"H":  {1.008, 0.40, 1.10, 1},
	"He": {4.003, 0.28, 1.40, 0},
	"Li": {6.94, 1.28, 1.82, 0},
	"Be": {9.012, 0.96, 1.53, 0},
	"B":  {10.81, 0.84, 1.92, 0},
	"C":  {12.01, 0.76, 1.70, 4},
	"N":  {14.01, 0.71, 1.55, 0},
	"O":  {16.00, 0.66, 1.52, 2},
	"F":  {18.998, 0.57, 1.47, 1},
	"Na": {22.99, 1.66, 2.27, 0},
	"Mg": {24.30, 1.41, 1.73, 0},
	"Al": {26.98, 1.21, 1.84, 0},
	"Si": {28.08, 1.11, 2.10, 0},
	"P":  {30.97, 1.07, 1.80, 0},
	"S":  {32.06, 1.05, 1.80, 0},
	"Cl": {35.45, 1.02, 1.75, 1},
	"K":  {39.10, 2.03, 2.75, 0},
	"Ca": {40.08, 1.76, 2.31, 0},
	"Cr": {51.996, 1.39, 1.97, 0},
	"Mn": {54.94, 1.61, 1.96, 0},
	"Fe": {55.84, 1.52, 1.96, 0},
	"Co": {58.93, 1.50, 1.95, 0},
	"Cu": {63.55, 1.32, 2.00, 0},
	"Zn": {65.38, 1.22, 2.02, 0},
	"Se": {78.96, 1.20, 1.90, 0},
	"Br": {79.904, 1.20, 1.83, 1},
	"I":  {126.90, 1.39, 1.98, 1},
}

// KnownElement returns true if atomic data is available for the symbol.
func KnownElement(symbol string) bool {
	_, ok := elements[symbol]
	return ok
}
