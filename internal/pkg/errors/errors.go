// Package errors provides the application error type shared by services and
// handlers. An Error carries an HTTP status code, a stable machine-readable
// reason and a human-readable message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// UnknownReason is used when a plain error reaches the HTTP boundary.
const UnknownReason = "UNKNOWN"

// UnknownMessage is returned to callers for unclassified internal failures.
const UnknownMessage = "internal server error"

// Error is the application error type.
type Error struct {
	Code     int               `json:"code"`
	Reason   string            `json:"reason"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("error: code = %d message = %s", e.Code, e.Message)
	}
	return fmt.Sprintf("error: code = %d reason = %s message = %s", e.Code, e.Reason, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error without changing what callers see.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithMetadata attaches key/value context surfaced in the response body.
func (e *Error) WithMetadata(md map[string]string) *Error {
	e.Metadata = md
	return e
}

// New creates an application error with the given HTTP status code.
func New(code int, reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// Newf creates an application error with a formatted message.
func Newf(code int, reason, format string, args ...any) *Error {
	return New(code, reason, fmt.Sprintf(format, args...))
}

func BadRequest(reason, message string) *Error {
	return New(http.StatusBadRequest, reason, message)
}

func Unauthorized(reason, message string) *Error {
	return New(http.StatusUnauthorized, reason, message)
}

func Forbidden(reason, message string) *Error {
	return New(http.StatusForbidden, reason, message)
}

func NotFound(reason, message string) *Error {
	return New(http.StatusNotFound, reason, message)
}

func Conflict(reason, message string) *Error {
	return New(http.StatusConflict, reason, message)
}

func Internal(reason, message string) *Error {
	return New(http.StatusInternalServerError, reason, message)
}

// FromError converts any error into an *Error. Plain errors become 500s with
// a generic message so internal details never leak to clients.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(http.StatusInternalServerError, UnknownReason, UnknownMessage).WithCause(err)
}

// Reason returns the machine-readable reason of err, or UnknownReason.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return UnknownReason
}

// Code returns the HTTP status carried by err, or 500 for plain errors.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// IsReason reports whether err is an application error with the given reason.
func IsReason(err error, reason string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Reason == reason
}
