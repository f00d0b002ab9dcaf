package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryInput    Category = "input"
	CategoryData     Category = "data"
	CategorySession  Category = "session"
	CategoryProtocol Category = "protocol"
)

// PenguinsError is a structured error with a registered code, an optional
// offending field and a fix suggestion.
type PenguinsError struct {
	// Code is a unique error identifier (e.g., "E201").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Field names the input or config key the error is about, if any.
	Field string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *PenguinsError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Field)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	if e.Code != "" {
		return e.Code + ": " + msg
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *PenguinsError) Unwrap() error {
	return e.Wrapped
}

// Is matches another *PenguinsError with the same code.
func (e *PenguinsError) Is(target error) bool {
	t, ok := target.(*PenguinsError)
	return ok && t.Code != "" && t.Code == e.Code
}

// WithField records the offending input or config key.
func (e *PenguinsError) WithField(f string) *PenguinsError {
	e.Field = f
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *PenguinsError) WithSuggestion(s string) *PenguinsError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *PenguinsError) WithDetail(d string) *PenguinsError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *PenguinsError) Wrap(err error) *PenguinsError {
	e.Wrapped = err
	return e
}

// HTTPStatus maps the error category to a response status.
func (e *PenguinsError) HTTPStatus() int {
	switch e.Category {
	case CategoryInput, CategoryProtocol:
		return http.StatusBadRequest
	case CategorySession:
		if e.Code == CodeSessionNotFound {
			return http.StatusNotFound
		}
		if e.Code == CodeSessionLimit {
			return http.StatusServiceUnavailable
		}
		return http.StatusConflict
	case CategoryData:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a PenguinsError from a registered error code.
func New(code string) *PenguinsError {
	template, ok := registry[code]
	if !ok {
		return &PenguinsError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &PenguinsError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new PenguinsError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *PenguinsError {
	return &PenguinsError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a PenguinsError. An error that
// already is (or wraps) a PenguinsError is returned unchanged.
func FromError(err error, code string) *PenguinsError {
	if err == nil {
		return nil
	}
	var pe *PenguinsError
	if stderrors.As(err, &pe) {
		return pe
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err is or wraps a PenguinsError with the code.
func HasCode(err error, code string) bool {
	var pe *PenguinsError
	for err != nil {
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Wrapped
	}
	return false
}

// Status returns the HTTP status for err, 500 for non-coded errors.
func Status(err error) int {
	var pe *PenguinsError
	if stderrors.As(err, &pe) {
		return pe.HTTPStatus()
	}
	return http.StatusInternalServerError
}
