package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a pipeline failure
type ErrorType string

const (
	ErrTypeSourceUnavailable ErrorType = "SOURCE_UNAVAILABLE"
	ErrTypeEmptyCache        ErrorType = "EMPTY_CACHE"
	ErrTypeEncodingRange     ErrorType = "ENCODING_RANGE"
	ErrTypeSchemaViolation   ErrorType = "SCHEMA_VIOLATION"
	ErrTypePublication       ErrorType = "PUBLICATION"
	ErrTypeParsing           ErrorType = "PARSING"
	ErrTypeConfig            ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err (or anything it wraps) is an AppError of the
// given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// NewSourceUnavailableError signals that the dataset source could not be
// reached or unpacked. The run aborts with no partial data published.
func NewSourceUnavailableError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSourceUnavailable, message, cause)
}

// NewEmptyCacheError signals that the cached raw file was present but held
// zero rows. The cache is purged before this error is raised.
func NewEmptyCacheError(path string) *AppError {
	return NewAppError(ErrTypeEmptyCache, "cached dataset file contains no rows", nil).
		WithContext("path", path)
}

// NewEncodingRangeError signals that more distinct countries survived
// filtering than the 8-bit code width supports.
func NewEncodingRangeError(distinct, max int) *AppError {
	return NewAppError(ErrTypeEncodingRange,
		fmt.Sprintf("%d distinct countries exceed the %d supported by int8 encoding", distinct, max), nil).
		WithContext("distinct", distinct).
		WithContext("max", max)
}

// NewSchemaViolationError signals that the candidate table failed one or more
// expectation suite rules. Publication must not proceed.
func NewSchemaViolationError(failedRules []string) *AppError {
	return NewAppError(ErrTypeSchemaViolation,
		fmt.Sprintf("candidate table failed %d validation rule(s)", len(failedRules)), nil).
		WithContext("failed_rules", failedRules)
}

// FailedRules extracts the failed rule names from a schema violation error,
// or nil when err is not one.
func FailedRules(err error) []string {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Type != ErrTypeSchemaViolation {
		return nil
	}
	rules, _ := appErr.Context["failed_rules"].([]string)
	return rules
}

// NewPublicationError signals that the feature store rejected the write.
// Surfaced as-is, no automatic retry.
func NewPublicationError(message string, cause error) *AppError {
	return NewAppError(ErrTypePublication, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
