package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the registration policy minimum.
const MinPasswordLength = 8

// bcrypt silently truncates input past 72 bytes; reject instead of hashing
// a prefix.
const maxPasswordBytes = 72

var (
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password exceeds 72 bytes")
)

// HashPassword enforces the password policy and returns a bcrypt hash.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword checks a candidate against the stored hash.
func VerifyPassword(storedHash, candidate string) error {
	if storedHash == "" {
		return errors.New("account has no password hash")
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate))
}
