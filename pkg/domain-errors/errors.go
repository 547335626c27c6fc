// Package domainerrors defines the error taxonomy shared by all caseflow
// components. Services return these; transport translates them to HTTP.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable identifiers: callers
// branch on them, transport maps them to status codes, and logs carry them.
type Code string

const (
	// CodeNotFound: a referenced Party/Block/Hit/Version does not exist.
	// Not retryable; surfaced to the caller as-is.
	CodeNotFound Code = "not_found"

	// CodeConflict: a uniqueness or state-transition invariant would be
	// violated by a concurrent writer. The whole operation should be retried.
	CodeConflict Code = "conflict"

	// CodeAlreadyFinalized: the block version is already closed. Terminal;
	// a second finalize attempt is rejected rather than silently absorbed.
	CodeAlreadyFinalized Code = "already_finalized"

	// CodeValidation: malformed input rejected before any mutation.
	CodeValidation Code = "validation"

	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeInternal           Code = "internal"
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a domain error with a code and a human-readable message. It may
// wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is treat two domain errors with the same code as equal.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost domain error code, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
