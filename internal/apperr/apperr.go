// Package apperr defines the error taxonomy shared by services and handlers.
// Services return *Error values; the HTTP layer maps Kind to a status code
// and the envelope's business code.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindTokenExpired
	KindBadRequest
	KindConflict
	KindNotFound
)

// CodeTokenExpired is the business code clients watch for to trigger the
// refresh flow instead of a hard logout.
const CodeTokenExpired = -102

// Error is an application error carrying a Kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field validation messages (BadRequest only).
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnauthorized, KindTokenExpired:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the envelope business code. It equals the HTTP status except
// for TokenExpired.
func (e *Error) Code() int {
	if e.Kind == KindTokenExpired {
		return CodeTokenExpired
	}
	return e.Status()
}

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func TokenExpired(msg string) *Error { return &Error{Kind: KindTokenExpired, Message: msg} }
func BadRequest(msg string) *Error   { return &Error{Kind: KindBadRequest, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }

// Internal wraps an unexpected error. The wrapped error is kept for logging
// and never rendered to clients.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Invalid builds a BadRequest carrying per-field messages.
func Invalid(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg, Fields: fields}
}

// KindOf reports the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
