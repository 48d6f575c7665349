// Package domain contains the core business entities for the Meridian users service.
package domain

import (
	"time"
)

// Session represents a persisted opaque-token session.
// Only the SHA-256 hash of the bearer token is stored; the raw token exists
// transiently at issuance and is handed to the client exactly once.
type Session struct {
	// ID is the unique identifier for the session record.
	ID int64 `json:"id"`

	// UserID is the ID of the user who owns this session.
	UserID int64 `json:"user_id"`

	// TokenHash is the hex-encoded SHA-256 digest of the raw bearer token.
	// Unique across all sessions; used as the lookup key at request time.
	TokenHash string `json:"-"`

	// CreatedAt is the timestamp when the session was created.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the optional expiration time. Nil means the session
	// does not expire (legacy behavior).
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewSession creates a new Session for a user.
func NewSession(userID int64, tokenHash string, expiresAt *time.Time) *Session {
	return &Session{
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
}

// IsExpired returns true if the session has an expiry in the past.
func (s *Session) IsExpired() bool {
	if s.ExpiresAt == nil {
		return false
	}
	return time.Now().UTC().After(*s.ExpiresAt)
}

// IsValid returns true if the session can still authenticate requests.
func (s *Session) IsValid() bool {
	return !s.IsExpired()
}
