// Package domainerrors defines the structured error type returned by every
// trialgate operation. Errors carry a machine-readable code, a human message,
// and optionally the offending record id and field-level detail. They are
// values, never panics: services translate store sentinels into these codes
// and handlers translate codes into HTTP statuses.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers. The set mirrors the RTSM failure
// taxonomy: most codes are terminal for the request, the retryable ones are
// called out below.
type Code string

const (
	// CodeUnauthenticated covers bad or missing credentials. Not retryable
	// without new credentials.
	CodeUnauthenticated Code = "unauthenticated"
	// CodeForbidden marks an operation outside the actor's capability set.
	CodeForbidden Code = "forbidden"
	// CodeNotFound covers both absent records and records outside the caller's
	// scope. The two cases are deliberately indistinguishable so a scoped
	// actor cannot probe for existence.
	CodeNotFound Code = "not_found"
	// CodeInvalidState rejects a lifecycle transition that is not legal from
	// the record's current state. The message names the current state.
	CodeInvalidState Code = "invalid_state"
	// CodeValidation covers missing or malformed input. Retryable after
	// correction; field detail is attached via WithField.
	CodeValidation Code = "validation"
	// CodeAllocationFailed surfaces allocator errors during randomization.
	// No partial state is committed, so the same call may be retried.
	CodeAllocationFailed Code = "allocation_failed"
	// CodeDepotUnavailable means the pack is not available in depot inventory.
	// No consignment is written, so the same call may be retried.
	CodeDepotUnavailable Code = "depot_unavailable"
	// CodeNotEligible rejects an arrival for a pack with no pending
	// consignment at the caller's site.
	CodeNotEligible Code = "not_eligible"
	// CodeConcurrentModification means a serialized transition lost a race
	// against another writer. Retryable after re-reading current state.
	CodeConcurrentModification Code = "concurrent_modification"
	// CodeConflict covers uniqueness violations (duplicate usernames, site
	// codes, and the like).
	CodeConflict Code = "conflict"
	// CodeInvalidInput rejects malformed identifiers at trust boundaries.
	CodeInvalidInput Code = "invalid_input"
	// CodeInvariantViolation marks a broken domain invariant; usually mapped
	// to a more specific code before it leaves a service.
	CodeInvariantViolation Code = "invariant_violation"
	CodeBadRequest         Code = "bad_request"
	CodeInternal           Code = "internal"
)

// Error is the structured error value shared by all modules.
type Error struct {
	Code     Code
	Message  string
	RecordID string
	Fields   map[string]string
	cause    error
}

func (e *Error) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("%s: %s (record %s)", e.Code, e.Message, e.RecordID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error while preserving it
// for errors.Is/As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithRecord annotates the error with the offending record id.
func (e *Error) WithRecord(id string) *Error {
	e.RecordID = id
	return e
}

// WithField attaches field-level validation detail.
func (e *Error) WithField(field, problem string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = problem
	return e
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the outermost code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status used by the JSON error
// envelope.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeConflict, CodeConcurrentModification:
		return http.StatusConflict
	case CodeValidation, CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeAllocationFailed, CodeDepotUnavailable, CodeNotEligible:
		return http.StatusUnprocessableEntity
	case CodeInvariantViolation, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
