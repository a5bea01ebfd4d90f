// Package errors defines the coded error type storage adapters return, so
// callers can branch on the kind of failure without knowing the backend.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the kind of failure.
type ErrorCode string

const (
	ErrCodeNotFound    ErrorCode = "not_found"
	ErrCodeConflict    ErrorCode = "conflict"
	ErrCodeValidation  ErrorCode = "validation"
	ErrCodeUnavailable ErrorCode = "unavailable" // backend unreachable or overloaded; retryable
	ErrCodeInternal    ErrorCode = "internal"
	ErrCodeTimeout     ErrorCode = "timeout"
	ErrCodeCanceled    ErrorCode = "canceled"
)

// AppError carries a code, a message and, for validation failures, the
// offending field. Cause stays reachable through errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	Field   string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// New returns an AppError without a cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches code and message to err. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// NotFound, Conflict and Validation are shorthands for New.
func NotFound(message string) *AppError   { return New(ErrCodeNotFound, message) }
func Conflict(message string) *AppError   { return New(ErrCodeConflict, message) }
func Validation(message string) *AppError { return New(ErrCodeValidation, message) }

// ValidationField reports an invalid value for field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// GetCode returns the code of the outermost AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetField returns the field of the outermost AppError in err's chain.
func GetField(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Field
	}
	return ""
}

func IsNotFound(err error) bool    { return GetCode(err) == ErrCodeNotFound }
func IsConflict(err error) bool    { return GetCode(err) == ErrCodeConflict }
func IsValidation(err error) bool  { return GetCode(err) == ErrCodeValidation }
func IsUnavailable(err error) bool { return GetCode(err) == ErrCodeUnavailable }
func IsTimeout(err error) bool     { return GetCode(err) == ErrCodeTimeout }
func IsCanceled(err error) bool    { return GetCode(err) == ErrCodeCanceled }

// IsRetryable reports whether the same call may succeed later.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrCodeUnavailable, ErrCodeTimeout:
		return true
	default:
		return false
	}
}
