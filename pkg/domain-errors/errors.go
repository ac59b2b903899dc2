// Package domainerrors defines the coded error taxonomy shared by all
// services. Stores return sentinel errors (pkg/platform/sentinel); services
// translate those into coded errors here, and the HTTP layer maps codes to
// status lines. Callers assert on codes with HasCode, never on message text.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code tags an error with its domain meaning.
type Code string

const (
	// CodeValidation marks bad input the caller can correct and retry.
	CodeValidation Code = "validation"
	// CodeInvalidInput marks a malformed identifier or field at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeConflict marks a space/time overlap; recoverable by picking another slot.
	CodeConflict Code = "conflict"
	// CodeNotFound marks an unknown id or token.
	CodeNotFound Code = "not_found"
	// CodeInvalidState marks a transition attempted from a state that forbids it.
	CodeInvalidState Code = "invalid_state"
	// CodeLocked marks a login refused while a suspension window is in effect.
	CodeLocked Code = "account_locked"
	// CodeUnauthorized marks missing or bad credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeUnavailable marks a transient infrastructure failure; safe to retry.
	CodeUnavailable Code = "store_unavailable"
	// CodeInternal marks everything the caller cannot act on.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Details carries structured context the
// transport layer may surface to callers (for example the suspension end time
// on an account_locked error).
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail attaches a structured detail and returns the same error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// New builds a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error from a format string.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	for errors.As(err, &coded) {
		if coded.Code == code {
			return true
		}
		err = coded.cause
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// DetailsOf returns the outermost structured details in the chain, if any.
func DetailsOf(err error) map[string]any {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Details
	}
	return nil
}

// HTTPStatus maps a code to the status line the reference protocol uses.
// account_locked deliberately uses 423 so callers can distinguish a
// suspension from a generic authentication failure.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConflict, CodeInvalidState:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeLocked:
		return http.StatusLocked
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
