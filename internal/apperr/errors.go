// Package apperr defines the error taxonomy shared by the event core and
// its transports.
//
// Every failure that crosses the core boundary is an *Error carrying a
// Kind. The wrapped cause is kept for logs only and is never rendered to
// callers.
package apperr

import (
	"errors"
	"fmt"

	"example.com/brandevents/internal/domain"
)

// Kind classifies a failure.
type Kind string

const (
	// KindBadInput covers malformed or missing fields and bad id/slug formats.
	KindBadInput Kind = "BAD_INPUT"
	// KindNotFound covers unknown tenants, disabled scopes and unknown ids.
	KindNotFound Kind = "NOT_FOUND"
	// KindContract is a holistic validation failure. It is logged, never returned.
	KindContract Kind = "CONTRACT"
	// KindInternal covers store I/O failures, lock timeouts and unexpected panics.
	KindInternal Kind = "INTERNAL"
)

// Error codes.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidID           = "INVALID_ID"
	CodeInvalidSlug         = "INVALID_SLUG"
	CodeIDConflict          = "ID_CONFLICT"
	CodeDuplicateSubmission = "DUPLICATE_SUBMISSION"
	CodeTenantNotFound      = "TENANT_NOT_FOUND"
	CodeScopeNotEnabled     = "SCOPE_NOT_ENABLED"
	CodeEventNotFound       = "EVENT_NOT_FOUND"
	CodeLockTimeout         = "LOCK_TIMEOUT"
	CodeStoreFailure        = "STORE_FAILURE"
	CodeWriteFailure        = "WRITE_FAILURE"
)

// Error is a structured failure returned by the core.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// FieldErrors lists every violation found in one validation pass.
	FieldErrors []domain.FieldError `json:"field_errors,omitempty"`

	// Retryable is set when the caller may repeat the same request.
	Retryable bool `json:"retryable,omitempty"`

	// Err is the underlying cause, for side-channel diagnostics only.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithFieldErrors attaches field-level violations.
func (e *Error) WithFieldErrors(fes []domain.FieldError) *Error {
	if e == nil || len(fes) == 0 {
		return e
	}
	e.FieldErrors = fes
	return e
}

// BadInput creates a BAD_INPUT error.
func BadInput(code, message string) *Error {
	return &Error{Kind: KindBadInput, Code: code, Message: message}
}

// Invalid creates a BAD_INPUT validation error carrying all violations.
func Invalid(fes []domain.FieldError) *Error {
	return BadInput(CodeValidationFailed, "one or more fields are invalid").WithFieldErrors(fes)
}

// NotFound creates a NOT_FOUND error.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Internal wraps err as an INTERNAL error.
func Internal(code, message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: message, Err: err}
}

// Retryable wraps err as a retryable INTERNAL error.
func Retryable(code, message string, err error) *Error {
	e := Internal(code, message, err)
	e.Retryable = true
	return e
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err. Errors outside the taxonomy are INTERNAL.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
