package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "VALIDATION"
	ErrorTypeNotFound          ErrorType = "NOT_FOUND"
	ErrorTypeMalformedKey      ErrorType = "MALFORMED_KEY"
	ErrorTypeStoreUnavailable  ErrorType = "STORE_UNAVAILABLE"
	ErrorTypeTransactionFailed ErrorType = "TRANSACTION_FAILED"
	ErrorTypeConflict          ErrorType = "CONFLICT"
	ErrorTypeInternal          ErrorType = "INTERNAL"
)

// Codes refine an ErrorType for callers that need to branch further.
const (
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeConditionFailed = "CONDITION_FAILED"
	CodeThrottled       = "THROTTLED"
	CodeTimeout         = "TIMEOUT"
	CodeCircuitOpen     = "CIRCUIT_OPEN"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCode returns a copy of the error carrying the given code.
func (e *AppError) WithCode(code string) *AppError {
	cp := *e
	cp.Code = code
	return &cp
}

// Constructor functions for different error types

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewValidationf creates a validation error with a formatted message
func NewValidationf(format string, args ...any) error {
	return NewValidation(fmt.Sprintf(format, args...))
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewNotFoundf creates a not found error with a formatted message
func NewNotFoundf(format string, args ...any) error {
	return NewNotFound(fmt.Sprintf(format, args...))
}

// NewMalformedKey creates an error for a stored key that does not have the expected shape
func NewMalformedKey(key, prefix string) error {
	return &AppError{
		Type:    ErrorTypeMalformedKey,
		Message: fmt.Sprintf("key %q does not match %s#<id>", key, prefix),
	}
}

// NewStoreUnavailable creates a transient backend error
func NewStoreUnavailable(message string, err error) error {
	return &AppError{Type: ErrorTypeStoreUnavailable, Message: message, Err: err}
}

// NewTransactionFailed creates an error for an aborted multi-item write
func NewTransactionFailed(message string, err error) error {
	return &AppError{Type: ErrorTypeTransactionFailed, Message: message, Err: err}
}

// NewConflict creates a conflict error
func NewConflict(message string) error {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	// Otherwise, create an internal error
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Type checking functions

// TypeOf returns the ErrorType of err, or the empty string for foreign errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// CodeOf returns the code attached to err, if any.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsMalformedKey checks if an error is a malformed key error
func IsMalformedKey(err error) bool {
	return TypeOf(err) == ErrorTypeMalformedKey
}

// IsStoreUnavailable checks if an error is a transient store error
func IsStoreUnavailable(err error) bool {
	return TypeOf(err) == ErrorTypeStoreUnavailable
}

// IsTransactionFailed checks if an error is an aborted transaction
func IsTransactionFailed(err error) bool {
	return TypeOf(err) == ErrorTypeTransactionFailed
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return TypeOf(err) == ErrorTypeConflict
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return TypeOf(err) == ErrorTypeInternal
}

// IsRetryable reports whether the caller may retry the whole operation.
// Store outages and aborted transactions leave no partial state behind.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeStoreUnavailable, ErrorTypeTransactionFailed:
		return true
	default:
		return false
	}
}
