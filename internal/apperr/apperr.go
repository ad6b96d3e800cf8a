// Package apperr defines the error taxonomy the API front translates
// into HTTP status codes and error envelope codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is one of the error categories of the propagation policy.
type Kind string

const (
	KindUserInput            Kind = "USER_INPUT"
	KindUnauthorized         Kind = "UNAUTHORIZED"
	KindForbidden            Kind = "FORBIDDEN"
	KindNotFound             Kind = "NOT_FOUND"
	KindThrottled            Kind = "THROTTLED"
	KindRetrievalUnavailable Kind = "RETRIEVAL_UNAVAILABLE"
	KindUpstreamLLM          Kind = "UPSTREAM_LLM"
	KindTimedOut             Kind = "TIMED_OUT"
	KindInternalInvariant    Kind = "INTERNAL_INVARIANT"
)

// Error is a typed application error carrying a Kind and a machine
// readable code for the error envelope.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error without a wrapped cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error around an existing cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// As extracts an *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a Kind to its response status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindUserInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindThrottled:
		return http.StatusTooManyRequests
	case KindRetrievalUnavailable, KindTimedOut:
		return http.StatusServiceUnavailable
	case KindUpstreamLLM:
		return http.StatusBadGateway
	case KindInternalInvariant:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Common sentinel-style constructors, mirroring the error codes of §4.11.
func ValidationError(message string) *Error {
	return New(KindUserInput, "VALIDATION_ERROR", message)
}

func EmptyQuestion() *Error {
	return New(KindUserInput, "EMPTY_QUESTION", "question must not be empty")
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, "FORBIDDEN", message)
}

func SourceNotFound(source string) *Error {
	return New(KindNotFound, "SOURCE_NOT_FOUND", "unknown source: "+source)
}

func RateLimited(message string) *Error {
	return New(KindThrottled, "RATE_LIMITED", message)
}

func Internal(err error) *Error {
	return Wrap(KindInternalInvariant, "INTERNAL_ERROR", "internal error", err)
}

func UpstreamLLM(err error) *Error {
	return Wrap(KindUpstreamLLM, "LLM_UPSTREAM_ERROR", "upstream LLM error", err)
}

func ServiceUnavailable(message string) *Error {
	return New(KindTimedOut, "SERVICE_UNAVAILABLE", message)
}

func RetrievalUnavailable(message string) *Error {
	return New(KindRetrievalUnavailable, "SERVICE_UNAVAILABLE", message)
}
