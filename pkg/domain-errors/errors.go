// Package domainerrors provides coded errors for the RTP domain.
//
// Services return these so the transport layer can translate failures into
// HTTP status codes without inspecting error strings. Stores return
// pkg/platform/sentinel errors instead; services translate at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and logging.
type Code string

const (
	// CodeValidation covers malformed or missing input fields.
	CodeValidation Code = "validation_error"
	// CodeBadRequest covers requests that are well-formed but unusable,
	// such as a token configuration missing its endpoint or secret.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized covers failed counterpart authentication, e.g. a
	// certificate serial that does not match the registry.
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound covers unknown RTPs, unresolved service providers and
	// payers without an activation.
	CodeNotFound Code = "not_found"
	// CodeConflict covers uniqueness violations such as a second
	// activation for the same fiscal code.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation covers state machine rejections: a trigger
	// that is not applicable to the RTP's current status.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUpstream covers failed outbound integration: the debtor
	// provider returned an error, an unreadable body, or timed out.
	CodeUpstream Code = "upstream_error"
	// CodeTimeout covers deadline expiry on outbound calls.
	CodeTimeout Code = "timeout"
	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal_error"
)

// DomainError carries a code, a message and an optional wrapped cause.
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

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping it unwrappable.
// A nil err yields nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
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

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error is not a domain error.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should
// answer with. Invalid transitions surface as conflicts so redelivery of an
// already-applied callback is distinguishable from a malformed one.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeUpstream:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
