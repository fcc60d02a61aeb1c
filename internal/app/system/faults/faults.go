// Package faults is the error taxonomy every core operation reports
// through. Each error carries a Kind plus a human-readable message;
// callers branch on the kind, never on message text.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// Validation: incomplete or contradictory input (missing location
	// fields, malformed tenure dates, missing documents).
	Validation Kind = "validation"
	// Conflict: the operation lost to existing state (duplicate unit or
	// position, already-claimed constituent, re-review of a terminal
	// application).
	Conflict Kind = "conflict"
	// Authority: the caller's role or unit does not grant the action.
	Authority Kind = "authority"
	// NotFound: referenced unit, application, or user does not exist.
	NotFound Kind = "not_found"
	// Invariant: the mutation would break a structural guarantee, such
	// as dropping a city unit below its minimum membership.
	Invariant Kind = "invariant"
)

// Error is a kinded error. Err, when set, is the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a kinded error with a plain message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: Validation, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Msg: fmt.Sprintf(format, args...)}
}

func Authorityf(format string, args ...any) *Error {
	return &Error{Kind: Authority, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

func Invariantf(format string, args ...any) *Error {
	return &Error{Kind: Invariant, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) has the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
