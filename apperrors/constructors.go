package apperrors

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Storage errors
func NewStorageError(operation string, path string, err error) *AppError {
	return New(ErrCodeStorageError, "Storage operation failed", fiber.StatusInternalServerError).
		WithOperation(operation).
		WithContext("path", path).
		WithContext("subsystem", "filestore").
		WithInternal(err)
}

func NewSaveFailed(username string, err error) *AppError {
	return New(ErrCodeSaveFailed, "Failed to save", fiber.StatusInternalServerError).
		WithOperation("user_save").
		WithContext("username", username).
		WithContext("subsystem", "userstore").
		WithInternal(err)
}

// Upstream feed errors
func NewUpstreamError(source string, message string, err error) *AppError {
	return New(ErrCodeUpstreamFailed, message, fiber.StatusInternalServerError).
		WithOperation("feed_fetch").
		WithContext("source", source).
		WithContext("subsystem", "feeds").
		WithInternal(err)
}

// File upload errors
func NewFileUploadError(filename string, reason string, err error) *AppError {
	return New(ErrCodeUploadFailed, "File upload failed", fiber.StatusBadRequest).
		WithOperation("file_upload").
		WithDetails("filename", filename).
		WithDetails("reason", reason).
		WithContext("subsystem", "upload").
		WithInternal(err)
}

func NewFileValidationError(filename string, violations []string) *AppError {
	return New(ErrCodeInvalidFileType, "File validation failed", fiber.StatusBadRequest).
		WithOperation("file_validation").
		WithDetails("filename", filename).
		WithDetails("violations", violations).
		WithContext("subsystem", "upload")
}

func NewFileNotFound(filename string) *AppError {
	return New(ErrCodeNotFound, "File not found", fiber.StatusNotFound).
		WithDetails("filename", filename)
}

func NewInvalidFilename() *AppError {
	return New(ErrCodeInvalidFilename, "Invalid filename", fiber.StatusBadRequest)
}

// Authentication errors

// NewAuthenticationError never reveals whether the account exists.
func NewAuthenticationError(username string, reason string) *AppError {
	return New(ErrCodeInvalidCreds, "User not found or password incorrect", fiber.StatusUnauthorized).
		WithOperation("user_authentication").
		WithContext("username", username).
		WithContext("reason", reason).
		WithContext("subsystem", "auth")
}

func NewAuthorizationError(username string, resource string, message string) *AppError {
	return New(ErrCodeForbidden, message, fiber.StatusForbidden).
		WithOperation("authorization_check").
		WithContext("username", username).
		WithContext("resource", resource).
		WithContext("subsystem", "auth")
}

// NewLoginLocked reports the remaining lockout in whole seconds, rounded up.
func NewLoginLocked(ip string, remaining time.Duration) *AppError {
	seconds := int((remaining + time.Second - 1) / time.Second)
	return New(ErrCodeRateLimited, fmt.Sprintf("Too many attempts, wait %ds", seconds), fiber.StatusTooManyRequests).
		WithOperation("login_throttle").
		WithDetails("retry_after", seconds).
		WithContext("ip", ip).
		WithContext("subsystem", "auth")
}

func NewUnauthorized(message string) *AppError {
	if message == "" {
		message = "Unauthorized"
	}
	return New(ErrCodeUnauthorized, message, fiber.StatusUnauthorized)
}

func NewInvalidToken() *AppError {
	return New(ErrCodeInvalidToken, "Invalid token", fiber.StatusUnauthorized)
}

func NewForbidden(message string) *AppError {
	if message == "" {
		message = "Forbidden"
	}
	return New(ErrCodeForbidden, message, fiber.StatusForbidden)
}

func NewRegistrationDisabled() *AppError {
	return New(ErrCodeRegistrationClosed, "Registration disabled in Single User Mode", fiber.StatusForbidden)
}

func NewUserNotFound() *AppError {
	return New(ErrCodeUserNotFound, "User data not found", fiber.StatusNotFound)
}

func NewUserExists(username string) *AppError {
	return New(ErrCodeUserExists, "User already exists", fiber.StatusBadRequest).
		WithContext("username", username)
}

func NewInvalidUsername(reason string) *AppError {
	return New(ErrCodeInvalidUsername, "Invalid username (alphanumeric, 3+ chars)", fiber.StatusBadRequest).
		WithDetails("reason", reason)
}

func NewInvalidSystemConfig() *AppError {
	return New(ErrCodeInvalidSystemConfig, "Invalid config", fiber.StatusBadRequest)
}

func NewInvalidFileType(allowed []string) *AppError {
	return New(ErrCodeInvalidFileType, "Invalid file type", fiber.StatusBadRequest).
		WithDetails("allowed_types", allowed)
}

func NewFileTooLarge(maxSize int64) *AppError {
	return New(ErrCodeFileTooLarge, "File size exceeds limit", fiber.StatusBadRequest).
		WithDetails("max_size_bytes", maxSize)
}

func NewValidationError(message string) *AppError {
	return New(ErrCodeValidationFailed, message, fiber.StatusBadRequest)
}

func NewBadRequest(message string) *AppError {
	if message == "" {
		message = "Bad request"
	}
	return New(ErrCodeInvalidInput, message, fiber.StatusBadRequest)
}

func NewInternalError(message string) *AppError {
	if message == "" {
		message = "An internal error occurred"
	}
	return New(ErrCodeInternal, message, fiber.StatusInternalServerError)
}

func NewRateLimitError() *AppError {
	return New(ErrCodeRateLimited, "Too many requests. Please try again later.", fiber.StatusTooManyRequests)
}
