package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	refreshTokenBytes = 32
	// RefreshTokenTTL is the lifetime of an issued refresh token
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// NewRefreshToken generates an opaque refresh token value
func NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
