// Package engineerr gives every handler in internal/engine a single error
// type carrying one of the error kinds named in the external interface, so
// CommandResult.Error never leaks a raw Go error string without a kind.
package engineerr

import (
	"errors"
	"fmt"

	"github.com/agentfleet/conductor/pkg/types"
)

// Error is a kinded error: a Kind drawn from the taxonomy, a human message,
// and an optional wrapped cause.
type Error struct {
	Kind    types.ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a kinded error with no cause.
func New(kind types.ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a kinded error that preserves the original error as Cause.
func Wrap(kind types.ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind from err, defaulting to "" (which callers
// should treat as an unkinded/unexpected error) when err is not an *Error.
func KindOf(err error) types.ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Convenience constructors for the taxonomy named in the spec.
func InvalidInput(format string, args ...any) *Error {
	return New(types.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(types.ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(types.ErrConflict, fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...any) *Error {
	return New(types.ErrInvalidState, fmt.Sprintf(format, args...))
}

func Timeout(format string, args ...any) *Error {
	return New(types.ErrTimeout, fmt.Sprintf(format, args...))
}

func Cancelled(format string, args ...any) *Error {
	return New(types.ErrCancelled, fmt.Sprintf(format, args...))
}

func BudgetExceeded(counter string) *Error {
	return &Error{Kind: types.ErrBudgetExceeded, Message: "budget exceeded: " + counter}
}

func BackendError(cause error) *Error {
	return Wrap(types.ErrBackendError, "backend error", cause)
}

func UpstreamError(status int, body string) *Error {
	return &Error{Kind: types.ErrUpstreamError, Message: fmt.Sprintf("upstream status %d: %s", status, body)}
}

func CircuitOpen() *Error {
	return New(types.ErrCircuitOpen, "circuit breaker open")
}

// ToResult converts any error into a CommandResult, defaulting unkinded
// errors to invalid_state so a bug never silently looks like success.
func ToResult(err error, requestID string) types.CommandResult {
	if err == nil {
		return types.CommandResult{Success: true, RequestID: requestID}
	}
	var e *Error
	if errors.As(err, &e) {
		return types.CommandResult{Success: false, Error: e.Kind, Message: e.Message, RequestID: requestID}
	}
	return types.CommandResult{Success: false, Error: types.ErrInvalidState, Message: err.Error(), RequestID: requestID}
}
