package identity

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// secretAlphabet is the character set for generated login secrets.
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"

	// secretLength is the length of generated login secrets.
	secretLength = 24

	// bcryptCost matches the cost the workflow platform uses for its own
	// password hashes. The platform verifies these hashes on /rest/login,
	// so the cost must stay compatible with its verifier.
	bcryptCost = 10
)

// GenerateSecret returns a new random login secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identity: generating secret: %w", err)
	}
	for i, b := range buf {
		buf[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return string(buf), nil
}

// HashSecret returns the bcrypt hash of a login secret in the platform's
// expected format.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("identity: hashing secret: %w", err)
	}
	return string(hash), nil
}
