package security

import (
	"errors"
	"fmt"

	"github.com/alpha-framework/alpha/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a clear-text password with bcrypt's default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a password against its bcrypt hash. A mismatch is
// reported as apperr.ErrUnauthorized.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("wrong password: %w", apperr.ErrUnauthorized)
	}
	if err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	return nil
}
