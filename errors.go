/*
 * errors.go, part of gostring.
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

import "strings"

// Error is the interface for errors that all packages in this library implement. The Decorate method allows to add and retrieve info from the
// error, without changing it's type or wrapping it around something else.
type Error interface {
	Error() string
	Decorate(string) []string //If passed an empty string, it should just return the current value, not add the empty string to the slice.
}

// CError is the error type returned by the chem package.
type CError struct {
	msg      string
	deco     []string
	critical bool
}

// Error returns the error message, followed by the functions the error went through.
func (err CError) Error() string {
	if len(err.deco) == 0 {
		return err.msg
	}
	return err.msg + " (" + strings.Join(err.deco, " < ") + ")"
}

// Decorate will add the dec string to the decoration slice of strings of the error,
// and return the resulting slice.
func (err *CError) Decorate(dec string) []string {
	if dec == "" {
		return err.deco
	}
	err.deco = append(err.deco, dec)
	return err.deco
}

// Critical returns whether the error is critical or it can be ignored
func (err CError) Critical() bool { return err.critical }

// errDecorate adds caller to the decorations of err, if err is a CError.
func errDecorate(err error, caller string) error {
	switch e := err.(type) {
	case CError:
		e.Decorate(caller)
		return e
	case *CError:
		e.Decorate(caller)
		return e
	}
	return err
}
