package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// Error codes used across the quote store and migration engine.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeSourceSchema = "SOURCE_SCHEMA_ERROR"
	CodeTransaction  = "TRANSACTION_ERROR"
	CodeVerification = "VERIFICATION_MISMATCH"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewValidationError reports a record rejected before reaching storage
// because a required field is missing or empty.
func NewValidationError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeValidation, message)
}

// NewNotFoundError reports a scoped lookup that matched no row.
func NewNotFoundError(message string) *AppError {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// NewSourceSchemaError reports a migration source with no usable quote table.
// Fatal: nothing is written when this is raised.
func NewSourceSchemaError(message string) *AppError {
	return NewError(http.StatusUnprocessableEntity, CodeSourceSchema, message)
}

// NewTransactionError reports an infrastructure-level batch failure. Batches
// committed before the failure remain committed.
func NewTransactionError(message string) *AppError {
	return NewError(http.StatusServiceUnavailable, CodeTransaction, message)
}

// NewVerificationMismatch reports a post-run count or sample discrepancy. It
// is surfaced as a warning and never undoes a completed run.
func NewVerificationMismatch(message string) *AppError {
	return NewError(http.StatusConflict, CodeVerification, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(message string) *AppError {
	return NewError(http.StatusInternalServerError, CodeInternal, message)
}

// Is checks if the target error is of type AppError with the same code
func Is(err error, code string) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Code == code
}

// AsAppError unwraps err into an *AppError, or wraps it as an internal error.
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewInternalServerError(err.Error())
}
