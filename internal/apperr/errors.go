package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failed operation for callers and the HTTP layer.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeValidation        Code = "VALIDATION"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeStorageFailure    Code = "STORAGE_FAILURE"
)

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

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(CodeUnauthorized, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(CodeInvalidState, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, format, args...)
}

func InsufficientFunds(format string, args ...any) *Error {
	return New(CodeInsufficientFunds, format, args...)
}

func Storage(err error) *Error {
	return &Error{Code: CodeStorageFailure, Message: "storage operation failed", Err: err}
}

// CodeOf extracts the classification from an error chain.
// Unclassified errors are reported as STORAGE_FAILURE.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorageFailure
}

// MessageOf returns the user-facing message from an error chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
