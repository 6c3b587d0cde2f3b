// Package brokererr defines the stable, machine-readable error codes the
// broker core returns. Every operation in internal/broker propagates errors
// as values of this type; the core never raises a cross-cutting exception.
package brokererr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is a stable wire-level error discriminant.
type Code string

const (
	EntityNotFound      Code = "EntityNotFound"
	EntityAlreadyExists Code = "EntityAlreadyExists"
	InvalidName         Code = "InvalidName"
	QuotaExceeded       Code = "QuotaExceeded"
	MessageNotFound     Code = "MessageNotFound"
	MessageLockLost     Code = "MessageLockLost"
	MessageTooLarge     Code = "MessageTooLarge"
	RuleNotFound        Code = "RuleNotFound"
	RuleAlreadyExists   Code = "RuleAlreadyExists"
	InvalidArgument     Code = "InvalidArgument"
	SessionLockLost     Code = "SessionLockLost"
	// Internal marks a detected invariant violation. The operation that
	// returns it is the only one affected; the broker keeps serving other
	// entities.
	Internal Code = "Internal"
)

// Error is the broker's single error type. It carries a stable Code plus a
// human-readable message, and optionally wraps an underlying cause.
type Error struct {
	Code    Code
	Message string
	Name    string // offending entity/rule name, when applicable
	cause   error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is a *Error with the same Code, so callers can
// write errors.Is(err, brokererr.New(brokererr.EntityNotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New constructs an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Named constructs an Error carrying the offending entity/rule name.
func Named(code Code, name, message string) *Error {
	return &Error{Code: code, Message: message, Name: name}
}

// Wrap attaches a cause to an Error for diagnostics while preserving Code.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Internalf builds an Internal error for a detected invariant violation,
// capturing a stack trace via github.com/pkg/errors so operators can find
// the originating call site in logs. This is the one place in the broker
// that reaches for a stack-carrying error instead of the plain Code+Message
// form, because an invariant violation is unexpected and needs a trace to
// debug, whereas every other error here is an expected, coded outcome.
func Internalf(format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Code: Internal, Message: msg, cause: errors.New(msg)}
}

// CodeOf extracts the Code from err, returning Internal if err is not a
// *Error (e.g. it escaped from a non-broker dependency uncoded).
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}
