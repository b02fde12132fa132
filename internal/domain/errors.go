package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code returned to clients verbatim.
type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNotFound          Code = "NOT_FOUND"
	CodeForbidden         Code = "FORBIDDEN"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeConflict          Code = "CONFLICT"
	CodeGatewayTimeout    Code = "GATEWAY_TIMEOUT"
	CodeGatewayError      Code = "GATEWAY_ERROR"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
)

// Error is the lifecycle error type. Two errors match under errors.Is when
// their codes are equal, so the Err* sentinels below can be used as targets.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation error"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden         = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition, Message: "invalid transition"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "conflict"}
	ErrGatewayTimeout    = &Error{Code: CodeGatewayTimeout, Message: "payment gateway timeout"}
	ErrGatewayError      = &Error{Code: CodeGatewayError, Message: "payment gateway error"}
	ErrUnauthenticated   = &Error{Code: CodeUnauthenticated, Message: "unauthenticated"}
)

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newError(CodeValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(CodeNotFound, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(CodeForbidden, format, args...)
}

func InvalidTransition(format string, args ...any) error {
	return newError(CodeInvalidTransition, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(CodeConflict, format, args...)
}

func Unauthenticated(format string, args ...any) error {
	return newError(CodeUnauthenticated, format, args...)
}

// Wrap attaches a code to an underlying cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}

// MessageOf returns the user-facing message of the first *Error in err's chain.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
