// Package errors provides structured error types for the Meridian catalog.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidArgument = "INVALID_ARGUMENT"

	// Catalog codes
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeNotInitialized     = "NOT_INITIALIZED"
	CodeCascadeInterrupted = "CASCADE_INTERRUPTED"

	// Storage codes
	CodeStorageFailed = "STORAGE_FAILED"
	CodeCorruptRecord = "CORRUPT_RECORD"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// MeridianError is the structured error type used throughout the system.
type MeridianError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *MeridianError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *MeridianError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *MeridianError) Is(target error) bool {
	var t *MeridianError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new MeridianError.
func New(category ErrorCategory, code, message string) *MeridianError {
	return &MeridianError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new MeridianError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *MeridianError {
	return &MeridianError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *MeridianError) WithDetails(details map[string]interface{}) *MeridianError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var me *MeridianError
	if errors.As(err, &me) {
		return me.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a MeridianError.
func GetCategory(err error) ErrorCategory {
	var me *MeridianError
	if errors.As(err, &me) {
		return me.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a MeridianError.
func GetCode(err error) string {
	var me *MeridianError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable.
// A plain storage failure may be retried by the caller; a cascade that was
// interrupted midway must be reconciled first, never blindly retried.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeStorageFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewNotFound(message string) *MeridianError {
	return New(ErrCategoryCatalog, CodeNotFound, message)
}

func NewAlreadyExists(message string) *MeridianError {
	return New(ErrCategoryCatalog, CodeAlreadyExists, message)
}

func NewInvalidArgument(message string) *MeridianError {
	return New(ErrCategoryValidation, CodeInvalidArgument, message)
}

func NewNotInitialized(message string) *MeridianError {
	return New(ErrCategoryCatalog, CodeNotInitialized, message)
}

func NewStorageError(message string, cause error) *MeridianError {
	return Wrap(ErrCategoryStorage, CodeStorageFailed, message, cause)
}

func NewCorruptRecord(message string, cause error) *MeridianError {
	return Wrap(ErrCategoryStorage, CodeCorruptRecord, message, cause)
}

func NewCascadeInterrupted(message string, cause error) *MeridianError {
	return Wrap(ErrCategoryCatalog, CodeCascadeInterrupted, message, cause)
}

func NewInternalError(message string, cause error) *MeridianError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// Code-check helpers used by callers to branch on failure kind.

func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

func IsAlreadyExists(err error) bool {
	return GetCode(err) == CodeAlreadyExists
}

func IsInvalidArgument(err error) bool {
	return GetCode(err) == CodeInvalidArgument
}

func IsNotInitialized(err error) bool {
	return GetCode(err) == CodeNotInitialized
}

func IsStorageFailure(err error) bool {
	return GetCategory(err) == ErrCategoryStorage
}

func IsCascadeInterrupted(err error) bool {
	return GetCode(err) == CodeCascadeInterrupted
}
