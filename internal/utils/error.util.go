package utils

import (
	"errors"
	"fmt"
)

// Custom error types for better error categorization and handling

// History engine errors
var (
	ErrInvalidRange  = errors.New("unrecognized period label")
	ErrFetchFailure  = errors.New("history fetch failed")
	ErrStaleResponse = errors.New("response superseded by a newer request")
	ErrUnknownView   = errors.New("unknown history view")
	ErrSelectionFull = errors.New("measurement selection is full")
	ErrUnknownSeries = errors.New("series not loaded")
)

// Data Processing errors
var (
	ErrInvalidDataFormat   = errors.New("invalid data format")
	ErrDataMarshalFailed   = errors.New("failed to marshal data")
	ErrDataUnmarshalFailed = errors.New("failed to unmarshal data")
	ErrValidationFailed    = errors.New("data validation failed")
)

// Configuration errors
var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Network and HTTP errors
var (
	ErrNetworkError      = errors.New("network error")
	ErrHTTPRequestFailed = errors.New("HTTP request failed")
	ErrResponseTooLarge  = errors.New("response size exceeds limit")
)

// Database errors
var (
	ErrDatabaseNotInit    = errors.New("database not initialized")
	ErrDatabaseConnection = errors.New("database connection error")
	ErrQueryFailed        = errors.New("database query failed")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeData       ErrorType = "data_processing"
	ErrorTypeConfig     ErrorType = "configuration"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeFileSystem ErrorType = "filesystem"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
)

// CategorizedError wraps an error with additional context and categorization
type CategorizedError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]any
}

func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

func (e *CategorizedError) Is(target error) bool {
	if target == nil {
		return false
	}

	if categorizedTarget, ok := target.(*CategorizedError); ok {
		return e.Type == categorizedTarget.Type && e.Code == categorizedTarget.Code
	}

	return errors.Is(e.Cause, target)
}

// NewCategorizedError creates a new categorized error
func NewCategorizedError(errorType ErrorType, code, message string, cause error) *CategorizedError {
	return &CategorizedError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (e *CategorizedError) WithContext(key string, value any) *CategorizedError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Common error creation functions for consistency

// NewDataError creates a data processing error
func NewDataError(code, message string, cause error) *CategorizedError {
	return NewCategorizedError(ErrorTypeData, code, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(code, message string, cause error) *CategorizedError {
	return NewCategorizedError(ErrorTypeConfig, code, message, cause)
}

// NewNetworkError creates a network error
func NewNetworkError(code, message string, cause error) *CategorizedError {
	return NewCategorizedError(ErrorTypeNetwork, code, message, cause)
}

// NewFileSystemError creates a file system error
func NewFileSystemError(code, message string, cause error) *CategorizedError {
	return NewCategorizedError(ErrorTypeFileSystem, code, message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(code, message string, cause error) *CategorizedError {
	return NewCategorizedError(ErrorTypeDatabase, code, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(code, message string, cause error) *CategorizedError {
	return NewCategorizedError(ErrorTypeValidation, code, message, cause)
}

// NewInvalidRangeError reports a period label the resolver does not know.
func NewInvalidRangeError(label string) *CategorizedError {
	return NewValidationError("INVALID_RANGE", fmt.Sprintf("unknown period %q", label), ErrInvalidRange).
		WithContext("label", label)
}

// NewFetchFailureError reports a failed history fetch for one measurement.
func NewFetchFailureError(measurementID string, cause error) *CategorizedError {
	return NewNetworkError("FETCH_FAILURE", fmt.Sprintf("history fetch for %s failed", measurementID), errors.Join(ErrFetchFailure, cause)).
		WithContext("measurement", measurementID)
}

// NewStaleResponseError reports a refresh result that lost the race against a newer state.
func NewStaleResponseError(started, current uint64) *CategorizedError {
	return NewCategorizedError(ErrorTypeConflict, "STALE_RESPONSE", "refresh result discarded", ErrStaleResponse).
		WithContext("generation", started).
		WithContext("current_generation", current)
}

// NewUnknownViewError reports a view id that is not in the registry.
func NewUnknownViewError(id string) *CategorizedError {
	return NewCategorizedError(ErrorTypeNotFound, "UNKNOWN_VIEW", fmt.Sprintf("view %s not found", id), ErrUnknownView)
}

// Error type checking functions

// IsNetworkError checks if error is network related
func IsNetworkError(err error) bool {
	var categorizedErr *CategorizedError
	return errors.As(err, &categorizedErr) && categorizedErr.Type == ErrorTypeNetwork
}

// IsStaleResponse checks if a refresh was superseded
func IsStaleResponse(err error) bool {
	return errors.Is(err, ErrStaleResponse)
}

// GetErrorCode extracts error code from categorized error
func GetErrorCode(err error) string {
	var categorizedErr *CategorizedError
	if errors.As(err, &categorizedErr) {
		return categorizedErr.Code
	}
	return "unknown"
}

// GetErrorType extracts error type from categorized error
func GetErrorType(err error) ErrorType {
	var categorizedErr *CategorizedError
	if errors.As(err, &categorizedErr) {
		return categorizedErr.Type
	}
	return ErrorTypeInternal
}
