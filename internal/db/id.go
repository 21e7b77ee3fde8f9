package db

import "crypto/rand"

// platformIDAlphabet matches the workflow platform's nanoid alphabet.
const platformIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// platformIDLength is the platform's id length for projects and workflows.
const platformIDLength = 16

// NewPlatformID generates a 16-character nanoid-style identifier in the
// workflow platform's convention. Projects and workflows use these instead
// of UUIDs because the platform's own schema does.
func NewPlatformID() (string, error) {
	buf := make([]byte, platformIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = platformIDAlphabet[int(b)%len(platformIDAlphabet)]
	}
	return string(buf), nil
}
