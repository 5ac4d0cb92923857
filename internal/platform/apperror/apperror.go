// Package apperror defines the typed error taxonomy shared by all domain
// services and the echo error handler that renders the uniform problem
// envelope {title, status, detail, issues}.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Issue describes a single field-level validation problem.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a domain error carrying an HTTP status hint. Services return
// these; the boundary layer converts them into the problem envelope.
type Error struct {
	Status int
	Title  string
	Detail string
	Issues []Issue
	cause  error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Title + ": " + e.Detail
	}
	return e.Title
}

func (e *Error) Unwrap() error { return e.cause }

// Unauthenticated signals a missing or invalid session credential.
func Unauthenticated(detail string) *Error {
	return &Error{Status: http.StatusUnauthorized, Title: "Unauthenticated", Detail: detail}
}

// Unauthorized signals a valid session lacking the required capability.
func Unauthorized(capability string) *Error {
	return &Error{
		Status: http.StatusForbidden,
		Title:  "Unauthorized",
		Detail: fmt.Sprintf("missing capability: %s", capability),
	}
}

// Validation signals malformed or missing input fields.
func Validation(issues ...Issue) *Error {
	return &Error{Status: http.StatusBadRequest, Title: "ValidationFailed", Issues: issues}
}

// NotFound signals that a referenced entity does not exist.
func NotFound(entity string) *Error {
	return &Error{Status: http.StatusNotFound, Title: "NotFound", Detail: entity + " not found"}
}

// Conflict signals a state-machine violation (locked note, double finalize,
// patient/encounter mismatch).
func Conflict(detail string) *Error {
	return &Error{Status: http.StatusConflict, Title: "Conflict", Detail: detail}
}

// Unexpected wraps an infrastructure failure. The cause is logged server-side
// and never surfaced to the caller.
func Unexpected(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Title: "Unexpected", cause: cause}
}

// As extracts an *Error from err, or nil.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// IsConflict reports whether err is a Conflict error.
func IsConflict(err error) bool {
	ae := As(err)
	return ae != nil && ae.Status == http.StatusConflict
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	ae := As(err)
	return ae != nil && ae.Status == http.StatusNotFound
}
