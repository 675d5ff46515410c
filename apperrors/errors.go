package apperrors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidCreds ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// User Management
	ErrCodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	ErrCodeUserExists          ErrorCode = "USER_EXISTS"
	ErrCodeInvalidUsername     ErrorCode = "INVALID_USERNAME"
	ErrCodeRegistrationClosed  ErrorCode = "REGISTRATION_DISABLED"
	ErrCodeInvalidSystemConfig ErrorCode = "INVALID_SYSTEM_CONFIG"

	// File Upload
	ErrCodeInvalidFileType ErrorCode = "INVALID_FILE_TYPE"
	ErrCodeFileTooLarge    ErrorCode = "FILE_TOO_LARGE"
	ErrCodeInvalidFilename ErrorCode = "INVALID_FILENAME"
	ErrCodeUploadFailed    ErrorCode = "UPLOAD_FAILED"

	// Storage
	ErrCodeStorageError ErrorCode = "STORAGE_ERROR"
	ErrCodeSaveFailed   ErrorCode = "SAVE_FAILED"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	// Upstream feeds
	ErrCodeUpstreamFailed ErrorCode = "UPSTREAM_FAILED"

	// Rate Limiting
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// Validation
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"

	// Internal Errors
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"-"`
	Internal   error                  `json:"-"`
	Operation  string                 `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Context    map[string]interface{} `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithDetails adds client-visible details to the error
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithContext adds server-side context that is logged but never returned
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithOperation names the operation that failed
func (e *AppError) WithOperation(op string) *AppError {
	e.Operation = op
	return e
}

// WithInternal wraps an internal error
func (e *AppError) WithInternal(err error) *AppError {
	e.Internal = err
	return e
}

// LogFields flattens the error into structured logger fields
func (e *AppError) LogFields() map[string]interface{} {
	fields := map[string]interface{}{
		"code":   string(e.Code),
		"status": e.StatusCode,
	}
	if e.Operation != "" {
		fields["operation"] = e.Operation
	}
	if e.Internal != nil {
		fields["internal"] = e.Internal.Error()
	}
	for k, v := range e.Details {
		fields["detail_"+k] = v
	}
	for k, v := range e.Context {
		fields[k] = v
	}
	return fields
}

// New creates a new AppError
func New(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// HasCode reports whether err is an AppError carrying code
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// FromError converts a standard error to AppError if possible
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case fiber.StatusUnauthorized:
			return NewUnauthorized("")
		case fiber.StatusForbidden:
			return NewForbidden(fiberErr.Message)
		case fiber.StatusNotFound:
			return New(ErrCodeNotFound, "Resource not found", fiber.StatusNotFound)
		case fiber.StatusRequestEntityTooLarge:
			return New(ErrCodeFileTooLarge, "Request body too large", fiber.StatusRequestEntityTooLarge)
		case fiber.StatusTooManyRequests:
			return NewRateLimitError()
		}
		if fiberErr.Code >= 400 && fiberErr.Code < 500 {
			return New(ErrCodeInvalidInput, fiberErr.Message, fiberErr.Code)
		}
	}

	// Default to internal error
	return NewInternalError("").WithInternal(err)
}
