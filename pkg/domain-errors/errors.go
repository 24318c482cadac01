// Package domainerrors is the single error type business logic returns.
//
// Stores and infrastructure layers return sentinel facts
// (pkg/platform/sentinel) or raw driver errors; services translate those
// into a DomainError carrying a stable Code at the point where a decision
// about HTTP/gRPC surface is made. Handlers never need to inspect anything
// but the Code.
package domainerrors // import "credo/pkg/domain-errors"

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-checkable error classification. Surfaces map
// Code to a transport status (see README-level mapping in the HTTP layer).
type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeValidation         Code = "VALIDATION"
	CodeMissingConsent     Code = "MISSING_CONSENT"
	CodeInvalidConsent     Code = "INVALID_CONSENT"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeInvalidMfaCode     Code = "INVALID_MFA_CODE"
	CodeAccountLocked      Code = "ACCOUNT_LOCKED"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodePrecondition       Code = "PRECONDITION"
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
	CodeTimeout            Code = "TIMEOUT"
	CodeDependencyDown     Code = "DEPENDENCY_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// DomainError is the canonical error shape. Message is safe to surface to a
// caller; it MUST NOT leak PII or internal state (spec §7: wrong email and
// wrong password both read "invalid credentials").
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.cause }

// New constructs a DomainError with no wrapped cause.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Wrap attaches a Code and message to an underlying error, preserving it for
// errors.Is/As and logging while giving callers a stable Code to branch on.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with
// the given Code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site parity with the teacher's
// dErrors.Is(err, code) usage.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the Code from err, returning CodeInternal if err is not a
// DomainError (or is nil, in which case ok is false).
func CodeOf(err error) (code Code, ok bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code, true
	}
	return CodeInternal, false
}
