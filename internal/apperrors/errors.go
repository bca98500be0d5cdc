// Package apperrors holds the error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeNotFound  Code = "not_found"
	CodeConflict  Code = "conflict"
	CodeForbidden Code = "forbidden"
	CodeBadInput  Code = "bad_input"
	CodeInternal  Code = "internal"
)

// Error is a categorized failure. Message is safe to show to clients except
// for CodeInternal, whose cause stays in Err for logging.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) error  { return &Error{Code: CodeNotFound, Message: msg} }
func Conflict(msg string) error  { return &Error{Code: CodeConflict, Message: msg} }
func Forbidden(msg string) error { return &Error{Code: CodeForbidden, Message: msg} }
func BadInput(msg string) error  { return &Error{Code: CodeBadInput, Message: msg} }

// Internal wraps an unexpected failure. msg describes the operation that failed.
func Internal(msg string, err error) error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

// CodeOf returns the category of err; uncategorized errors are internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// PublicMessage returns the client-facing text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}

// HTTPStatus maps a code to the status the API answers with. A duplicate
// registration answers 400, which is what existing clients expect.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeBadInput:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
