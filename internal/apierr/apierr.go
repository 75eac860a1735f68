// Package apierr defines the error taxonomy shared by every HTTP handler:
// a declared error carries its own HTTP status and stable code, so handlers
// return a typed error instead of reaching for http.Error directly.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a declared application error with a stable code and HTTP status.
type Error struct {
	Code    string
	Status  int
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

// WithCause attaches an underlying error for logging without changing the
// code, status, or client-facing message.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Status: e.Status, Message: e.Message, cause: cause}
}

func newf(code string, status int, format string, args ...any) *Error {
	return &Error{Code: code, Status: status, Message: fmt.Sprintf(format, args...)}
}

// Constructors for the §7 error taxonomy. Each returns a fresh *Error so the
// caller's message can be specific to the failing request.

func AuthMissing(format string, args ...any) *Error {
	return newf("auth_missing", http.StatusUnauthorized, format, args...)
}

func AuthInvalid(format string, args ...any) *Error {
	return newf("auth_invalid", http.StatusUnauthorized, format, args...)
}

func ScopeInsufficient(format string, args ...any) *Error {
	return newf("scope_insufficient", http.StatusForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf("not_found", http.StatusNotFound, format, args...)
}

func ValidationError(format string, args ...any) *Error {
	return newf("validation_error", http.StatusBadRequest, format, args...)
}

func IdempotencyConflict(format string, args ...any) *Error {
	return newf("idempotency_conflict", http.StatusConflict, format, args...)
}

func PayloadTooLarge(format string, args ...any) *Error {
	return newf("payload_too_large", http.StatusRequestEntityTooLarge, format, args...)
}

func RateLimited(format string, args ...any) *Error {
	return newf("rate_limited", http.StatusTooManyRequests, format, args...)
}

func StatusListFull(format string, args ...any) *Error {
	return newf("status_list_full", http.StatusInternalServerError, format, args...)
}

func ResolutionError(format string, args ...any) *Error {
	return newf("resolution_error", http.StatusBadGateway, format, args...)
}

func Internal(format string, args ...any) *Error {
	return newf("internal", http.StatusInternalServerError, format, args...)
}

// As extracts an *Error from err, if any step in its chain is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
