// Package domainerrors provides coded errors for business-rule rejections.
// Codes let handlers translate rejections to HTTP statuses and let tests
// assert on the rejection category instead of matching message text.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal"
	CodeInvariantViolation Code = "invariant_violation"

	// Rejection categories from the transition engine. These are the normal,
	// expected return path for invalid input, not exceptional conditions.
	CodeTerminalState     Code = "terminal_state"
	CodeRoleNotPermitted  Code = "role_not_permitted"
	CodeInvalidTransition Code = "invalid_transition"
)

// Error carries a code alongside a human-readable reason.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds a coded domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeTerminalState:
		return http.StatusConflict
	case CodeRoleNotPermitted:
		return http.StatusForbidden
	case CodeInvalidTransition, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
