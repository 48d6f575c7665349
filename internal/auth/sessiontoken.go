// Package auth implements the authentication core for the Meridian users service.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SessionTokenIssuer generates high-entropy opaque bearer tokens for the
// legacy session model. The raw token is handed to the client exactly once;
// only its SHA-256 hash is persisted and used for lookup.
type SessionTokenIssuer struct {
	tokenBytes int
}

// NewSessionTokenIssuer creates a SessionTokenIssuer with the default
// token entropy.
func NewSessionTokenIssuer() *SessionTokenIssuer {
	return &SessionTokenIssuer{tokenBytes: SessionTokenBytes}
}

// GenerateToken returns a fresh raw bearer token and its lookup hash.
// The raw token is URL-safe base64 without padding, so it never contains
// '+', '/' or '='. The hash is deterministic and unique per token, suitable
// as a unique database key.
func (i *SessionTokenIssuer) GenerateToken() (rawToken, tokenHash string, err error) {
	buf := make([]byte, i.tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate session token: %w", err)
	}

	rawToken = base64.RawURLEncoding.EncodeToString(buf)
	return rawToken, i.HashToken(rawToken), nil
}

// HashToken computes the hex-encoded SHA-256 digest of a raw token.
// Presented bearer tokens are re-hashed with this at request time and
// compared against stored hashes; raw tokens are never stored or compared.
func (i *SessionTokenIssuer) HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
