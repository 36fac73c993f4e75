package errors

import (
	"errors"
	"fmt"
)

// WorkbenchError is the structured error type for user-facing failures.
type WorkbenchError struct {
	// Code is the unique error code (e.g., "ERR_203_FILE_EXISTS").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Transport, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *WorkbenchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *WorkbenchError) Unwrap() error {
	return e.Cause
}

// Is matches another WorkbenchError by code.
func (e *WorkbenchError) Is(target error) bool {
	if t, ok := target.(*WorkbenchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *WorkbenchError) WithDetail(key, value string) *WorkbenchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *WorkbenchError) WithSuggestion(suggestion string) *WorkbenchError {
	e.Suggestion = suggestion
	return e
}

// New creates a WorkbenchError. Category, severity and the retryable flag
// are derived from the code.
func New(code string, message string, cause error) *WorkbenchError {
	return &WorkbenchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a WorkbenchError from an existing error.
func Wrap(code string, err error) *WorkbenchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *WorkbenchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *WorkbenchError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *WorkbenchError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the WorkbenchError in err's chain, if any.
func As(err error) (*WorkbenchError, bool) {
	var we *WorkbenchError
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// IsRetryable reports whether err carries a retryable WorkbenchError.
func IsRetryable(err error) bool {
	we, ok := As(err)
	return ok && we.Retryable
}

// CodeOf returns the code of the WorkbenchError in err's chain, or "".
func CodeOf(err error) string {
	if we, ok := As(err); ok {
		return we.Code
	}
	return ""
}
