package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	minimumPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maximumPasswordBytes = 72
)

var (
	ErrWeakPassword    = errors.New("password does not meet minimum length")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// passwordCost is lowered in tests.
var passwordCost = bcrypt.DefaultCost

func HashPassword(plain string) (string, error) {
	switch {
	case len([]rune(plain)) < minimumPasswordLength:
		return "", ErrWeakPassword
	case len(plain) > maximumPasswordBytes:
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword compares in constant time; a malformed hash never matches.
func VerifyPassword(hash, plain string) bool {
	if hash == "" || len(plain) > maximumPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
