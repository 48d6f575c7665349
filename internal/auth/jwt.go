// Package auth implements the authentication core for the Meridian users service.
package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT claims payload carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Email is the user's email address.
	Email string `json:"email,omitempty"`

	// Name is the user's display name.
	Name string `json:"name,omitempty"`

	// Role is the user's role string.
	Role string `json:"role,omitempty"`

	// UID duplicates the subject as a numeric claim. Some gateway
	// deployments emit it instead of a parseable sub; validation accepts
	// either.
	UID int64 `json:"uid,omitempty"`
}

// TokenManager issues and validates HMAC-SHA256 signed JWTs. Its
// configuration is immutable after construction and safe for concurrent use.
type TokenManager struct {
	signingKey []byte
	issuer     string
	audience   string
	expiry     time.Duration
}

// NewTokenManager creates a TokenManager. The signing key must be at least
// MinSigningKeyBytes long; a shorter or absent key is a startup-fatal
// configuration error surfaced to the caller.
func NewTokenManager(signingKey []byte, issuer, audience string, expiry time.Duration) (*TokenManager, error) {
	if len(signingKey) < MinSigningKeyBytes {
		return nil, ErrSigningKeyTooShort
	}
	return &TokenManager{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   audience,
		expiry:     expiry,
	}, nil
}

// GenerateToken issues a signed access token for the given identity.
// The token carries subject, email, name, role, a fresh jti, issued-at,
// not-before=now and expiry=now+configured duration.
func (m *TokenManager) GenerateToken(userID int64, email, role, name string) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
		Email: email,
		Name:  name,
		Role:  role,
		UID:   userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// ValidateToken verifies signature, issuer, audience and lifetime as one
// atomic check. Any single failure, including malformed input, yields
// (nil, false); a partially verified claims object is never returned.
func (m *TokenManager) ValidateToken(tokenString string) (*Claims, bool) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithLeeway(ClockSkewLeeway),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, false
	}

	return claims, true
}

// GetTokenExpiration returns the expiry a token issued now would carry.
// Pure computation; used to advertise expiry to clients without re-parsing.
func (m *TokenManager) GetTokenExpiration() time.Time {
	return time.Now().UTC().Add(m.expiry)
}

// UserID extracts the numeric user ID from the claims, accepting either a
// parseable subject or the uid claim.
func (c *Claims) UserID() (int64, bool) {
	if id, err := strconv.ParseInt(c.Subject, 10, 64); err == nil && id > 0 {
		return id, true
	}
	if c.UID > 0 {
		return c.UID, true
	}
	return 0, false
}
