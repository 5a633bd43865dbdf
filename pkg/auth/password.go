package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost      = 12
	SessionTokenLen = 32 // bytes of entropy in an opaque session token
	MinPasswordLen  = 6
	MaxPasswordLen  = 72 // bcrypt ignores input past 72 bytes
)

// ErrPasswordMismatch is returned by ComparePassword when the password does not match the hash.
var ErrPasswordMismatch = errors.New("password does not match")

// PasswordValidationError holds the rule violations found for a password.
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "password " + strings.Join(e.Errors, ", ")
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword checks password against a bcrypt hash. An empty hash
// (OAuth-only account) never matches.
func ComparePassword(hashedPassword, password string) error {
	if hashedPassword == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// GenerateSessionToken returns an unguessable URL-safe session token.
func GenerateSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenLen)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// ValidatePassword enforces the length bounds accepted at registration and rotation.
func ValidatePassword(password string) error {
	errs := make([]string, 0, 2)

	if len(password) < MinPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}
	if strings.TrimSpace(password) == "" {
		errs = append(errs, "cannot be blank")
	}

	if len(errs) > 0 {
		return &PasswordValidationError{Errors: errs}
	}
	return nil
}
