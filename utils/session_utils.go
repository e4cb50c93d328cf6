package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	sessionIDBytes = 16
	siteIDBytes    = 8
)

// RandomHex returns n crypto-random bytes hex encoded.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewSessionID returns a 32-character hex session identifier.
func NewSessionID() (string, error) {
	return RandomHex(sessionIDBytes)
}

// NewSiteID returns a 16-character hex site identifier.
func NewSiteID() (string, error) {
	return RandomHex(siteIDBytes)
}
