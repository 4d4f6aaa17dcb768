package errors

import (
	"fmt"
)

// Error codes for the download pipeline
const (
	CodeDownloadCancelled   = "DOWNLOAD_CANCELLED"
	CodeNetworkError        = "NETWORK_ERROR"
	CodeStorageError        = "STORAGE_ERROR"
	CodeConversionError     = "CONVERSION_ERROR"
	CodeServerError         = "SERVER_ERROR"
	CodeForeignNotSupported = "FOREIGN_NOT_SUPPORTED"
	CodeConversionFailed    = "CONVERSION_FAILED"
	CodeUnknownError        = "UNKNOWN_ERROR"
)

// Error represents a classified download failure. Code identifies the
// failure kind, Retry advises whether a UI retry action makes sense, and
// UserMessage is safe to surface directly.
type Error struct {
	Code        string         `json:"code"`
	Retry       bool           `json:"retry"`
	UserMessage string         `json:"message"`
	CanConvert  bool           `json:"can_convert,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	Cause       error          `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.UserMessage, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.UserMessage)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause sets the underlying cause of the error
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// New creates a new Error
func New(code, userMessage string, retry bool) *Error {
	return &Error{
		Code:        code,
		Retry:       retry,
		UserMessage: userMessage,
	}
}

// Constructors for the fixed taxonomy

func Cancelled() *Error {
	return New(CodeDownloadCancelled, "download cancelled", false)
}

func NetworkError(message string) *Error {
	return New(CodeNetworkError, message, true)
}

func StorageError(message string) *Error {
	return New(CodeStorageError, message, true)
}

func ConversionError(message string) *Error {
	return New(CodeConversionError, message, false)
}

func ServerError(message string) *Error {
	return New(CodeServerError, message, true)
}

// ForeignNotSupported is returned when a foreign reference cannot be
// downloaded because automatic conversion is disabled. CanConvert marks
// the error as actionable so callers can offer manual conversion.
func ForeignNotSupported(source string) *Error {
	e := New(CodeForeignNotSupported,
		fmt.Sprintf("%s tracks must be converted before downloading", source), false)
	e.CanConvert = true
	return e
}

func ConversionFailed(cause error) *Error {
	return New(CodeConversionFailed, "track conversion failed", false).WithCause(cause)
}

func Unknown(message string) *Error {
	return New(CodeUnknownError, message, false)
}

// IsRetryable reports whether err carries a retry-eligible classification.
// Unclassified errors are not considered retryable; classification happens
// once, at the orchestrator boundary.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retry
	}
	return false
}

// IsCancellation reports whether err is a user-initiated cancellation.
func IsCancellation(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == CodeDownloadCancelled
	}
	return false
}
