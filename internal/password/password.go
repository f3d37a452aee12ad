// Package password hashes and verifies player passwords with bcrypt.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest password accepted. bcrypt silently truncates
// input beyond 72 bytes, so longer passwords are rejected up front.
const MaxLength = 72

// Hash derives a bcrypt hash from a plaintext password.
func Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("password is empty")
	}
	if len(plaintext) > MaxLength {
		return "", fmt.Errorf("password exceeds %d bytes", MaxLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether plaintext matches the stored hash.
func Compare(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
