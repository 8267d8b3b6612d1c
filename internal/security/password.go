package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the lowest work factor accepted for stored credentials.
const MinBcryptCost = 12

func HashPassword(password string, cost int) (string, error) {
	if cost < MinBcryptCost {
		return "", fmt.Errorf("bcrypt cost %d below minimum %d", cost, MinBcryptCost)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// VerifyPassword reports a plain mismatch as (false, nil) and a corrupt stored
// hash as an error.
func VerifyPassword(encoded, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("verify password: %w", err)
	}
}
