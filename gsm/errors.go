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

package gsm

import (
	"errors"
	"strings"

	"github.com/rmera/gostring/ic"
)

// Kind classifies the errors returned by the gsm package, so callers can decide
// whether to resume, change the configuration or give up.
type Kind int

const (
	KindOther Kind = iota
	KindRetryExhausted
	KindInvariant
	KindCapacity
	KindBudget
)

func (k Kind) String() string {
	switch k {
	case KindRetryExhausted:
		return "retry exhausted"
	case KindInvariant:
		return "invariant violated"
	case KindCapacity:
		return "capacity exceeded"
	case KindBudget:
		return "budget exhausted"
	}
	return "other"
}

// Sentinels to be used with errors.Is.
var (
	ErrRetryExhausted = errors.New("retry exhausted")
	ErrInvariant      = errors.New("invariant violated")
	ErrCapacity       = errors.New("capacity exceeded")
	ErrBudget         = errors.New("ran out of iterations")
)

var kindSentinel = map[Kind]error{
	KindRetryExhausted: ErrRetryExhausted,
	KindInvariant:      ErrInvariant,
	KindCapacity:       ErrCapacity,
	KindBudget:         ErrBudget,
}

// Error is the error type for the gsm package.
type Error struct {
	message  string
	deco     []string
	critical bool
	kind     Kind
	cause    error
}

func newError(kind Kind, msg, caller string, cause error) *Error {
	return &Error{message: msg, deco: []string{caller}, critical: kind != KindOther, kind: kind, cause: cause}
}

// Error returns the error message, followed by the functions the error went through.
func (err *Error) Error() string {
	s := err.message
	if err.cause != nil {
		s += ": " + err.cause.Error()
	}
	if len(err.deco) == 0 {
		return s
	}
	return s + " (" + strings.Join(err.deco, " < ") + ")"
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

// Kind returns the class of the error.
func (err *Error) Kind() Kind { return err.kind }

// Unwrap gives access to both the sentinel for the error kind and the underlying cause.
func (err *Error) Unwrap() []error {
	var ret []error
	if s, ok := kindSentinel[err.kind]; ok {
		ret = append(ret, s)
	}
	if err.cause != nil {
		ret = append(ret, err.cause)
	}
	return ret
}

// errDecorate decorates gsm errors with caller, and turns errors from the
// coordinate engine into gsm errors of the corresponding kind. Other errors
// are wrapped with KindOther.
func errDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		e.Decorate(caller)
		return e
	}
	kind := KindOther
	switch {
	case errors.Is(err, ic.ErrRetryExhausted):
		kind = KindRetryExhausted
	case errors.Is(err, ic.ErrInvariant):
		kind = KindInvariant
	}
	return &Error{message: "gsm", deco: []string{caller}, critical: true, kind: kind, cause: err}
}
