// Package auth implements the authentication core for the Meridian users service.
package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Identity is the per-request user identity. It is an immutable value,
// constructed once per request by the identity middleware and passed down
// through the request context; it is never shared across requests.
type Identity struct {
	// UserID is the numeric user ID. Zero means anonymous.
	UserID int64

	// Email is the user's email address.
	Email string

	// Role is the user's role string.
	Role string

	// Name is the user's display name.
	Name string

	// Method is the mechanism that established this identity, if any.
	Method Method
}

// Anonymous returns the zero identity.
func Anonymous() Identity {
	return Identity{}
}

// IsAuthenticated reports whether the request carries an established identity.
func (id Identity) IsAuthenticated() bool {
	return id.UserID > 0
}

// IsAdmin reports whether the identity's role is admin, case-insensitively.
func (id Identity) IsAdmin() bool {
	return strings.EqualFold(id.Role, "admin")
}

// identityContextKey is the context key for the request Identity.
type identityContextKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the request identity. Requests that never
// passed the identity middleware resolve to the anonymous identity.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityContextKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}

// IdentityBuilder creates middleware populating the request identity.
//
// Two strategies, strict priority order:
//  1. Gateway-propagated headers: a parseable numeric X-User-Id populates
//     identity directly from the X-User-* headers. This path trusts the
//     gateway completely; no signature check happens here.
//  2. Locally verified bearer principal, attached upstream by BearerAuth.
//
// If neither applies the identity stays anonymous and the request proceeds.
// This middleware annotates, never rejects: failing open on extraction
// errors is a deliberate policy, with enforcement left to RequireAuth and
// RequireAdmin downstream.
func IdentityBuilder(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "identity").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := extractIdentity(r, logger)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// extractIdentity never fails: any panic or parse error during extraction
// is logged and collapses to the anonymous identity.
func extractIdentity(r *http.Request, logger zerolog.Logger) (identity Identity) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("identity extraction panicked; proceeding anonymous")
			identity = Anonymous()
		}
	}()

	if id, ok := identityFromHeaders(r); ok {
		return id
	}

	if principal := PrincipalFromContext(r.Context()); principal != nil {
		return Identity{
			UserID: principal.UserID,
			Email:  principal.Email,
			Role:   principal.Role,
			Name:   principal.Name,
			Method: principal.Method,
		}
	}

	return Anonymous()
}

// identityFromHeaders populates identity from the gateway headers.
// Population is gated on the user-id header parsing as a positive integer;
// the optional headers default to empty strings.
func identityFromHeaders(r *http.Request) (Identity, bool) {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		return Anonymous(), false
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || userID <= 0 {
		return Anonymous(), false
	}

	return Identity{
		UserID: userID,
		Email:  r.Header.Get(UserEmailHeader),
		Role:   r.Header.Get(UserRoleHeader),
		Name:   r.Header.Get(UserNameHeader),
		Method: MethodGateway,
	}, true
}

// RequireAuth creates middleware rejecting anonymous requests with 401.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IdentityFromContext(r.Context()).IsAuthenticated() {
				WriteError(w, ErrNoCredentials)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin creates middleware rejecting non-admin requests.
// Anonymous requests get 401, authenticated non-admins get 403.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if !identity.IsAuthenticated() {
				WriteError(w, ErrNoCredentials)
				return
			}
			if !identity.IsAdmin() {
				WriteError(w, ErrAccessDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
