package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// TokenPrefix marks generated ingress tokens so they are easy to spot in
// logs and secret scanners.
const TokenPrefix = "cp_"

// bcrypt only looks at the first 72 bytes of its input.
const maxTokenBytes = 72

var ErrUnusableToken = errors.New("token must be 1 to 72 bytes")

// HashToken returns the bcrypt hash to store in INGRESS_TOKEN_HASH.
func HashToken(token string) (string, error) {
	if token == "" || len(token) > maxTokenBytes {
		return "", ErrUnusableToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// CheckToken reports a non-nil error unless token matches hash.
func CheckToken(hash, token string) error {
	if len(token) > maxTokenBytes {
		return ErrUnusableToken
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
}

// GenerateToken returns TokenPrefix followed by 32 random bytes, base64url
// encoded without padding.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return TokenPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}
