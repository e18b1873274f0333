// Package domainerrors carries typed error codes across layer boundaries.
// Services wrap low-level failures with a code; transports translate the code
// to a status without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure. Codes are stable API; messages are not.
type Code string

const (
	// Identity / ledger failures.
	CodeUnknownIdentity   Code = "unknown_identity"
	CodeUnauthorized      Code = "unauthorized"
	CodeInvalidWindow     Code = "invalid_window"
	CodeSignerUnavailable Code = "signer_unavailable"
	CodeSuperseded        Code = "superseded"
	CodeRejected          Code = "rejected"

	// Resolution / content failures.
	CodeResolutionTimeout   Code = "resolution_timeout"
	CodeDocumentUnavailable Code = "document_unavailable"
	CodeNotFound            Code = "not_found"

	// Orchestration / registry failures.
	CodePartialCreate   Code = "partial_create"
	CodePointerConflict Code = "pointer_conflict"

	// Generic failures.
	CodeInvalidInput Code = "invalid_input"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is the concrete error carried between layers. Use New or Wrap; do not
// construct directly so the zero-code case cannot occur.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with a code and human-readable message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. If err is nil, Wrap
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the outermost domain code from an error chain.
// Errors without a code report CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// ToHTTPStatus maps a code to the status the transport layer should emit.
// Unknown codes map to 500 so new codes fail safe.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnknownIdentity, CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeInvalidWindow, CodeInvalidInput, CodeSignerUnavailable:
		return http.StatusBadRequest
	case CodeSuperseded, CodeRejected, CodePointerConflict:
		return http.StatusConflict
	case CodeResolutionTimeout, CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeDocumentUnavailable:
		return http.StatusBadGateway
	case CodePartialCreate:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
