// Package auth implements the authentication core for the Meridian users service.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Authentication and trust errors.
var (
	// ErrTokenInvalid is the single opaque outcome for any credential that
	// fails verification: bad signature, wrong issuer or audience, expired,
	// unknown session token, revoked session. Granular reasons are logged
	// server-side only.
	ErrTokenInvalid = errors.New("invalid or expired token")

	// ErrSigningKeyTooShort indicates the configured JWT signing key is
	// below the minimum length. Startup-fatal.
	ErrSigningKeyTooShort = errors.New("jwt signing key must be at least 32 bytes")

	// ErrMissingGatewayHeader indicates the gateway secret header is absent.
	ErrMissingGatewayHeader = errors.New("request did not come through the API gateway")

	// ErrWrongGatewaySecret indicates the gateway secret header does not match.
	ErrWrongGatewaySecret = errors.New("gateway secret mismatch")

	// ErrNoCredentials indicates no bearer credentials were presented.
	ErrNoCredentials = errors.New("no credentials presented")

	// ErrAccessDenied indicates the caller is authenticated but not allowed.
	ErrAccessDenied = errors.New("access denied")
)

// ErrorCode is a machine-readable error code carried in rejection bodies.
type ErrorCode string

const (
	// CodeGatewayRequired maps to HTTP 403: request bypassed the gateway.
	CodeGatewayRequired ErrorCode = "gateway_required"

	// CodeInvalidToken maps to HTTP 401: bearer credential failed verification.
	CodeInvalidToken ErrorCode = "invalid_token"

	// CodeUnauthorized maps to HTTP 401: authentication required.
	CodeUnauthorized ErrorCode = "unauthorized"

	// CodeForbidden maps to HTTP 403: authenticated but not allowed.
	CodeForbidden ErrorCode = "forbidden"
)

// AuthError represents a request-level rejection with a machine-readable code.
type AuthError struct {
	// Code is the machine-readable error code.
	Code ErrorCode `json:"code"`

	// Message is the operator-facing message. It must never contain the
	// configured gateway secret or granular token-failure reasons.
	Message string `json:"message"`

	// HTTPStatus is the HTTP status code. Not serialized.
	HTTPStatus int `json:"-"`
}

func (e *AuthError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewAuthError maps an auth error to its wire representation.
// Missing and mismatched gateway secrets deliberately share a status code
// so a caller cannot probe which one occurred.
func NewAuthError(err error) *AuthError {
	switch {
	case errors.Is(err, ErrMissingGatewayHeader):
		return &AuthError{
			Code:       CodeGatewayRequired,
			Message:    "forbidden: use the API gateway",
			HTTPStatus: http.StatusForbidden,
		}

	case errors.Is(err, ErrWrongGatewaySecret):
		return &AuthError{
			Code:       CodeGatewayRequired,
			Message:    "forbidden: gateway verification failed",
			HTTPStatus: http.StatusForbidden,
		}

	case errors.Is(err, ErrTokenInvalid):
		return &AuthError{
			Code:       CodeInvalidToken,
			Message:    "invalid or expired token",
			HTTPStatus: http.StatusUnauthorized,
		}

	case errors.Is(err, ErrNoCredentials):
		return &AuthError{
			Code:       CodeUnauthorized,
			Message:    "authentication required",
			HTTPStatus: http.StatusUnauthorized,
		}

	default:
		return &AuthError{
			Code:       CodeForbidden,
			Message:    "access denied",
			HTTPStatus: http.StatusForbidden,
		}
	}
}

// WriteError writes a structured JSON rejection body.
func WriteError(w http.ResponseWriter, err error) {
	authErr := NewAuthError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(authErr)
}
