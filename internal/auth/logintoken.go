package auth

import "github.com/google/uuid"

// NewLoginUID returns a fresh login-link identifier.
//
// A version 4 UUID carries 122 random bits from crypto/rand, which is far
// beyond guessing range for a link that is single-use and expires.
func NewLoginUID() string {
	return uuid.NewString()
}
