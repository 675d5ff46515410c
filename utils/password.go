package utils

import (
	"strings"

	"flatnas/apperrors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt variants written by the Node and PHP ecosystems as well as Go.
var passwordHashPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// IsPasswordHash reports whether a stored password is already a bcrypt hash.
func IsPasswordHash(stored string) bool {
	for _, prefix := range passwordHashPrefixes {
		if strings.HasPrefix(stored, prefix) {
			return true
		}
	}
	return false
}

func HashPassword(password string, cost int) (string, *apperrors.AppError) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeInternal, "Failed to hash password", 500).WithInternal(err)
	}
	return string(hashed), nil
}

// CheckPassword compares a candidate against a stored hash or legacy plaintext.
func CheckPassword(stored, candidate string) bool {
	if IsPasswordHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}
	return stored == candidate
}
