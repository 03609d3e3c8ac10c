// Package errors provides coded application errors shared by the approval
// services and their transport handlers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an application error.
type Code string

const (
	ErrCodeValidation         Code = "VALIDATION_ERROR"
	ErrCodeConflict           Code = "CONFLICT"
	ErrCodeNoApplicableMatrix Code = "NO_APPLICABLE_MATRIX"
	ErrCodeInvalidTransition  Code = "INVALID_TRANSITION"
	ErrCodeNotFound           Code = "NOT_FOUND"
	ErrCodeVersionConflict    Code = "VERSION_CONFLICT"
	ErrCodeInternal           Code = "INTERNAL"
)

// NotAwaitingActionMessage is shown to actors whose decision arrives after the
// request has left the state they saw.
const NotAwaitingActionMessage = "this request is no longer awaiting your action"

// Error is a coded error with an optional field and cause.
type Error struct {
	Code    Code
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so callers can test against
// the sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Field == "" && t.Err == nil && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrValidation         = &Error{Code: ErrCodeValidation}
	ErrConflict           = &Error{Code: ErrCodeConflict}
	ErrNoApplicableMatrix = &Error{Code: ErrCodeNoApplicableMatrix}
	ErrInvalidTransition  = &Error{Code: ErrCodeInvalidTransition}
	ErrNotFound           = &Error{Code: ErrCodeNotFound}
	ErrVersionConflict    = &Error{Code: ErrCodeVersionConflict}
)

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// InvalidInput reports a malformed field.
func InvalidInput(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Field: field, Message: message}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// InvalidTransition reports a stale or out-of-order state change.
func InvalidTransition(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// UserMessage renders err for an end user. Transition failures get the fixed
// "no longer awaiting your action" wording.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch CodeOf(err) {
	case ErrCodeInvalidTransition, ErrCodeVersionConflict:
		return NotAwaitingActionMessage
	case ErrCodeInternal:
		return "internal error"
	}
	var e *Error
	if stderrors.As(err, &e) {
		if e.Field != "" {
			return fmt.Sprintf("%s: %s", e.Field, e.Message)
		}
		return e.Message
	}
	return err.Error()
}
