// Package apierror defines the error taxonomy of the cash/fiscal core and the
// standardized envelope returned to API clients. All errors surfaced to clients
// go through this package so that internal details (stack traces, SQL errors)
// never leak.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
	State  string            `json:"state,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ── Typed domain errors ──────────────────────────────────────────────────────

// ValidationError: malformed or inconsistent input. Surfaced immediately to
// the caller, never retried automatically.
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NewValidation wraps multiple field errors from request binding.
func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Msg: "validation failed", Fields: fields}
}

// ConflictError: a violated uniqueness or singleton invariant (shift already
// open, duplicate correction, numbering contention exhausted after retries).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func Conflictf(format string, args ...any) *ConflictError {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// StateError: the operation is invalid for the entity's current state. The
// current state is included so the caller can react without retrying.
type StateError struct {
	Msg     string
	Current string
}

func (e *StateError) Error() string { return e.Msg }

func Statef(current, format string, args ...any) *StateError {
	return &StateError{Msg: fmt.Sprintf(format, args...), Current: current}
}

// ExternalServiceError: a collaborator (fiscal authority gateway, reservation
// service) is unreachable. Local effects are never rolled back because of it.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// DocumentRejected: the fiscal authority explicitly rejected a document.
// A legitimate terminal outcome, not a bug — the remedy is a new document.
type DocumentRejected struct {
	Reason string
}

func (e *DocumentRejected) Error() string {
	return "document rejected by fiscal authority: " + e.Reason
}

// ── HTTP mapping ─────────────────────────────────────────────────────────────

// FromError converts a domain error into its HTTP status and response
// envelope. Unknown errors map to 500 with a generic detail.
func FromError(err error) (int, *APIError) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, &APIError{Detail: ve.Msg, Fields: ve.Fields}
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return http.StatusConflict, &APIError{Detail: ce.Msg}
	}
	var se *StateError
	if errors.As(err, &se) {
		return http.StatusConflict, &APIError{Detail: se.Msg, State: se.Current}
	}
	var ee *ExternalServiceError
	if errors.As(err, &ee) {
		return http.StatusBadGateway, &APIError{Detail: ee.Error()}
	}
	var dr *DocumentRejected
	if errors.As(err, &dr) {
		return http.StatusUnprocessableEntity, &APIError{Detail: dr.Error()}
	}
	return http.StatusInternalServerError, &APIError{Detail: "internal server error"}
}
