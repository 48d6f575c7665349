// Package auth implements the authentication core for the Meridian users service.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"
)

// GatewayConfig contains configuration for the gateway trust gate.
type GatewayConfig struct {
	// Secret is the shared secret the gateway attaches to every request.
	// Empty disables the gate entirely (degraded trust, logged at startup).
	Secret string

	// BypassPaths are paths that skip the gate (health and metrics probes).
	BypassPaths []string

	// TestMode skips the gate entirely. Set only in test environments.
	TestMode bool
}

// DefaultGatewayConfig returns the default gateway trust configuration.
func DefaultGatewayConfig(secret string) GatewayConfig {
	return GatewayConfig{
		Secret:      secret,
		BypassPaths: DefaultBypassPaths,
	}
}

// GatewayTrust creates middleware verifying that inbound traffic originates
// from the trusted API gateway before any identity extraction runs.
//
// A request is rejected with the same 403 status whether the secret header
// is missing or wrong; the message differs for operator debugging but never
// reveals the configured secret. With no secret configured the gate is a
// passthrough, logged once at startup as a degraded-trust condition.
func GatewayTrust(config GatewayConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "gateway_trust").Logger()

	if config.Secret == "" && !config.TestMode {
		logger.Warn().Msg("gateway secret not configured; trust gate disabled, identity headers are unverified")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.BypassPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			if config.TestMode || config.Secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(GatewaySecretHeader)
			if presented == "" {
				logger.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("request without gateway secret header")
				WriteError(w, ErrMissingGatewayHeader)
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(config.Secret)) != 1 {
				logger.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("request with wrong gateway secret")
				WriteError(w, ErrWrongGatewaySecret)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
