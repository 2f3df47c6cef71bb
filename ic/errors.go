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

package ic

import (
	"errors"
	"strings"
)

// ErrRetryExhausted is wrapped by the errors returned when a numerical procedure
// could not be rescued by perturbing its input.
var ErrRetryExhausted = errors.New("retries exhausted")

// ErrInvariant is wrapped by the errors returned when the input violates a structural
// requirement, such as a constraint with no component in the coordinate space.
var ErrInvariant = errors.New("invariant violated")

// Error is the error type for the ic package.
type Error struct {
	message  string
	deco     []string
	critical bool
	cause    error
}

// Error returns the error message, followed by the functions the error went through.
func (err *Error) Error() string {
	if len(err.deco) == 0 {
		return err.message
	}
	return err.message + " (" + strings.Join(err.deco, " < ") + ")"
}

// Decorate adds dec to the decoration slice of the error and returns the resulting slice.
func (err *Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

// Critical returns whether the error is critical or it can be ignored
func (err *Error) Critical() bool { return err.critical }

// Unwrap returns the sentinel error, if any, that classifies err.
func (err *Error) Unwrap() error { return err.cause }

// PanicMsg is a message used for panics, even though it does satisfy the error interface.
// for errors use Error.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrWrongLength = PanicMsg("ic: coordinate slice length does not match the number of atoms")
	ErrUnknownAxis = PanicMsg("ic: axis must be 0, 1 or 2")
)
