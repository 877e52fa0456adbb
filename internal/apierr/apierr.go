// Package apierr maps domain and filesystem errors to HTTP responses.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error with an HTTP status and a stable machine-readable code.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error with the given status, code and message.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap attaches an underlying cause to a new *Error.
func Wrap(err error, status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, "VALIDATION_ERROR", message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, "FORBIDDEN", message)
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, "NOT_FOUND", what+" not found")
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, "CONFLICT", message)
}

func TooLarge(message string) *Error {
	return New(http.StatusRequestEntityTooLarge, "TOO_LARGE", message)
}

func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, "RATE_LIMITED", message)
}

func Internal(err error) *Error {
	return Wrap(err, http.StatusInternalServerError, "INTERNAL", "internal server error")
}

// From converts any error into an *Error. *Error values pass through;
// filesystem errors are mapped by errno; everything else is a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if code, ok := ErrnoCode(err); ok {
		return Wrap(err, StatusForErrno(code), code, UserMessage(code, err))
	}
	return Internal(err)
}

// Status returns the HTTP status for err.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}
