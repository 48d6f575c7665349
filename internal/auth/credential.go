// Package auth implements the authentication core for the Meridian users service.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/metrics"
)

// Method identifies which credential mechanism authenticated a request.
type Method string

const (
	// MethodJWT indicates a locally validated JWT access token.
	MethodJWT Method = "jwt"

	// MethodSession indicates a legacy opaque session token backed by a
	// server-side session row.
	MethodSession Method = "session"

	// MethodGateway indicates identity propagated by the trusted gateway,
	// validated upstream rather than locally.
	MethodGateway Method = "gateway"
)

// Principal is the outcome of a successful credential verification.
type Principal struct {
	// UserID is the authenticated user's ID.
	UserID int64

	// Email is the user's email address.
	Email string

	// Role is the user's role string.
	Role string

	// Name is the user's display name.
	Name string

	// Method is the credential mechanism that verified this principal.
	Method Method
}

// Verifier checks one kind of bearer credential. Call sites never need to
// know which mechanism authenticated the caller; the two coexisting token
// models sit behind this single interface.
type Verifier interface {
	// Verify checks a presented bearer token. Every failure collapses to
	// ErrTokenInvalid; granular reasons stay server-side.
	Verify(ctx context.Context, token string) (*Principal, error)
}

// SessionStore is the session lookup surface the opaque-token verifier
// needs. Implemented by the session repository (optionally cache-fronted).
type SessionStore interface {
	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
}

// UserDirectory is the user lookup surface verifiers need.
type UserDirectory interface {
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// =============================================================================
// JWT Verifier
// =============================================================================

type jwtVerifier struct {
	tokens *TokenManager
}

// NewJWTVerifier creates a Verifier that validates self-contained JWTs.
// No server-side lookup is performed; revocation does not apply to JWTs.
func NewJWTVerifier(tokens *TokenManager) Verifier {
	return &jwtVerifier{tokens: tokens}
}

func (v *jwtVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	claims, ok := v.tokens.ValidateToken(token)
	if !ok {
		return nil, ErrTokenInvalid
	}

	userID, ok := claims.UserID()
	if !ok {
		return nil, ErrTokenInvalid
	}

	return &Principal{
		UserID: userID,
		Email:  claims.Email,
		Role:   claims.Role,
		Name:   claims.Name,
		Method: MethodJWT,
	}, nil
}

// =============================================================================
// Opaque Session Verifier
// =============================================================================

type sessionVerifier struct {
	issuer   *SessionTokenIssuer
	sessions SessionStore
	users    UserDirectory
}

// NewSessionVerifier creates a Verifier that re-hashes a presented opaque
// token and resolves it against the session store. Comparison is by hash
// equality only; raw tokens are never stored or compared.
func NewSessionVerifier(issuer *SessionTokenIssuer, sessions SessionStore, users UserDirectory) Verifier {
	return &sessionVerifier{issuer: issuer, sessions: sessions, users: users}
}

func (v *sessionVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	session, err := v.sessions.GetByTokenHash(ctx, v.issuer.HashToken(token))
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if session.IsExpired() {
		return nil, ErrTokenInvalid
	}

	user, err := v.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if !user.CanAuthenticate() {
		return nil, ErrTokenInvalid
	}

	return &Principal{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		Name:   user.Nickname,
		Method: MethodSession,
	}, nil
}

// =============================================================================
// Chain Verifier
// =============================================================================

type chainVerifier struct {
	verifiers []Verifier
}

// NewChainVerifier creates a Verifier that tries each mechanism in order
// and accepts the first success. JWTs are cheap to check and should come
// first.
func NewChainVerifier(verifiers ...Verifier) Verifier {
	return &chainVerifier{verifiers: verifiers}
}

func (v *chainVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	for _, verifier := range v.verifiers {
		if principal, err := verifier.Verify(ctx, token); err == nil {
			return principal, nil
		}
	}
	return nil, ErrTokenInvalid
}

// =============================================================================
// Bearer Middleware
// =============================================================================

// principalContextKey is the context key for the verified Principal.
type principalContextKey struct{}

// PrincipalFromContext returns the verified principal for the request, or
// nil if the request carried no valid bearer credential.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalContextKey{}).(*Principal); ok {
		return p
	}
	return nil
}

// BearerAuth creates middleware that verifies the Authorization header.
// Requests without an Authorization header pass through unauthenticated;
// gateway-propagated headers or downstream authorization decide their fate.
// A presented credential that fails verification is rejected outright.
// collector may be nil.
func BearerAuth(verifier Verifier, collector *metrics.Collector, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "bearer_auth").Logger()

	recordFailure := func(reason string) {
		if collector != nil {
			collector.RecordTokenFailure(reason)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(AuthorizationHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(header, BearerPrefix)
			if token == header || token == "" {
				logger.Debug().Str("path", r.URL.Path).Msg("malformed authorization header")
				recordFailure("malformed_header")
				WriteError(w, ErrTokenInvalid)
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer verification failed")
				recordFailure("verification_failed")
				WriteError(w, ErrTokenInvalid)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
