// Package svcerr defines the framework's error taxonomy: a small set of
// kinds every kernel, timer, saga, and HTTP/WebSocket adapter recognizes,
// so a handler's error maps to a consistent status and log shape no matter
// which transport carried the call.
//
// The hierarchy mirrors cliffracer's core/exceptions.py (ServiceError and
// its subclasses) re-expressed as a single Go error type discriminated by
// Kind, the way the teacher's errhttp package maps sentinel errors to HTTP
// status rather than modeling a class hierarchy.
package svcerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the taxonomy's error categories.
type Kind string

const (
	KindConnection    Kind = "connection"
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindRPCTimeout    Kind = "rpc_timeout"
	KindRPC           Kind = "rpc"
	KindHandler       Kind = "handler"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindTimerExecution Kind = "timer_execution"
	KindSagaCompensation Kind = "saga_compensation"
	KindNotFound       Kind = "not_found"
)

// Error is the concrete error type carried across every framework boundary.
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	Details       map[string]any
	Cause         error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithCorrelationID returns a shallow copy of e carrying correlationID.
func (e *Error) WithCorrelationID(correlationID string) *Error {
	out := *e
	out.CorrelationID = correlationID
	return &out
}

// WithDetails returns a shallow copy of e carrying the given details.
func (e *Error) WithDetails(details map[string]any) *Error {
	out := *e
	out.Details = details
	return &out
}

// Is reports whether target shares this error's Kind, so callers can write
// errors.Is(err, svcerr.New(svcerr.KindValidation, "")) style kind checks,
// matching the teacher's sentinel-comparison idiom via errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Constructors mirroring cliffracer's named exception classes, for call
// sites that want a direct spelling instead of New(KindX, ...).

func NewConnectionError(message string, cause error) *Error {
	return Wrap(KindConnection, message, cause)
}

func NewConfigurationError(message string) *Error {
	return New(KindConfiguration, message)
}

func NewValidationError(message string, details map[string]any) *Error {
	return New(KindValidation, message).WithDetails(details)
}

func NewRPCTimeoutError(method string) *Error {
	return New(KindRPCTimeout, fmt.Sprintf("rpc %q timed out", method))
}

func NewRPCError(method string, cause error) *Error {
	return Wrap(KindRPC, fmt.Sprintf("rpc %q failed", method), cause)
}

func NewHandlerError(method string, cause error) *Error {
	return Wrap(KindHandler, fmt.Sprintf("handler %q panicked or errored", method), cause)
}

func NewAuthenticationError(message string) *Error {
	return New(KindAuthentication, message)
}

func NewAuthorizationError(message string) *Error {
	return New(KindAuthorization, message)
}

func NewTimerExecutionError(timer string, cause error) *Error {
	return Wrap(KindTimerExecution, fmt.Sprintf("timer %q execution failed", timer), cause)
}

func NewSagaCompensationError(saga, step string, cause error) *Error {
	return Wrap(KindSagaCompensation, fmt.Sprintf("saga %q compensation failed at step %q", saga, step), cause)
}

func NewNotFoundError(resource string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource))
}
