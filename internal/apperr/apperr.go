// Package apperr provides the coded domain errors used by every service.
//
// Services return *apperr.Error; handlers translate the code into an HTTP
// status. Errors compare with errors.Is against the sentinel values, so a
// caller can write:
//
//	if errors.Is(err, apperr.ErrUnauthorized) { ... }
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error class.
type Code string

const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeValidation      Code = "VALIDATION"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeConflict        Code = "CONFLICT"
	CodePolicyViolation Code = "POLICY_VIOLATION"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus maps an error code onto the status the API responds with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeConflict:
		return http.StatusConflict
	case CodePolicyViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code and a caller-facing message.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status for this error.
func (e *Error) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithCause wraps an underlying error without changing the code or message.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, cause: err}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized    = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrValidation      = &Error{Code: CodeValidation, Message: "validation error"}
	ErrRateLimited     = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrConflict        = &Error{Code: CodeConflict, Message: "conflict"}
	ErrPolicyViolation = &Error{Code: CodePolicyViolation, Message: "policy violation"}
	ErrInternal        = &Error{Code: CodeInternal, Message: "internal error"}
)

func NotFound(msg string) *Error        { return &Error{Code: CodeNotFound, Message: msg} }
func Unauthorized(msg string) *Error    { return &Error{Code: CodeUnauthorized, Message: msg} }
func Validation(msg string) *Error      { return &Error{Code: CodeValidation, Message: msg} }
func RateLimited(msg string) *Error     { return &Error{Code: CodeRateLimited, Message: msg} }
func Conflict(msg string) *Error        { return &Error{Code: CodeConflict, Message: msg} }
func PolicyViolation(msg string) *Error { return &Error{Code: CodePolicyViolation, Message: msg} }

func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", cause: err}
}

// Wrap passes *Error values through unchanged and hides anything else behind
// Internal, so store errors never leak to API clients.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
