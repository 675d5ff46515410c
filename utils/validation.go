package utils

import (
	"regexp"

	"flatnas/apperrors"
)

var (
	usernameRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	unsafeFilenameRun = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// ValidateUsername checks if the username meets registration requirements
func ValidateUsername(username string) *apperrors.AppError {
	if len(username) < 3 {
		return apperrors.NewInvalidUsername("Username must be at least 3 characters long")
	}

	if !usernameRegex.MatchString(username) {
		return apperrors.NewInvalidUsername("Username can only contain letters, numbers, underscores, and hyphens")
	}

	return nil
}

// SanitizeUsername strips every character that is unsafe in a file name.
func SanitizeUsername(username string) string {
	return unsafeFilenameRun.ReplaceAllString(username, "")
}
