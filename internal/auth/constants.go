// Package auth implements the authentication core for the Meridian users
// service: password hashing, opaque session tokens, JWT issuance and
// validation, the gateway trust gate, and per-request identity population.
package auth

import "time"

// =============================================================================
// Header Constants
// =============================================================================

const (
	// AuthorizationHeader is the HTTP header carrying bearer credentials.
	AuthorizationHeader = "Authorization"

	// BearerPrefix is the scheme prefix of the Authorization header.
	BearerPrefix = "Bearer "

	// GatewaySecretHeader carries the shared secret proving the request
	// passed through the trusted API gateway.
	GatewaySecretHeader = "X-Gateway-Secret"

	// UserIDHeader carries the gateway-propagated user ID.
	UserIDHeader = "X-User-Id"

	// UserEmailHeader carries the gateway-propagated user email.
	UserEmailHeader = "X-User-Email"

	// UserRoleHeader carries the gateway-propagated user role.
	UserRoleHeader = "X-User-Role"

	// UserNameHeader carries the gateway-propagated display name.
	UserNameHeader = "X-User-Name"
)

// =============================================================================
// Token Constants
// =============================================================================

const (
	// SessionTokenBytes is the entropy of a raw opaque session token.
	SessionTokenBytes = 32

	// MinSigningKeyBytes is the minimum length of the JWT signing key.
	// Construction fails fast on anything shorter.
	MinSigningKeyBytes = 32

	// ClockSkewLeeway is the allowance applied to JWT lifetime checks.
	ClockSkewLeeway = time.Minute
)

// DefaultBypassPaths are paths that skip the gateway trust gate.
var DefaultBypassPaths = []string{"/health", "/metrics"}
