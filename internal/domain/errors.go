// Package domain contains the core business entities for the Meridian users service.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same nickname/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserInactive indicates the user account is deactivated.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrUserBlocked indicates the user account is blocked.
	ErrUserBlocked = errors.New("user account is blocked")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// Session Errors
	// ===========================================

	// ErrSessionNotFound indicates no session matches the presented token.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired indicates the session exists but has expired.
	ErrSessionExpired = errors.New("session has expired")

	// ErrSessionTokenTaken indicates a token-hash collision on insert.
	ErrSessionTokenTaken = errors.New("session token hash already exists")

	// ===========================================
	// Preference Errors
	// ===========================================

	// ErrPreferenceNotFound indicates the user has no stored preferences.
	ErrPreferenceNotFound = errors.New("preference not found")

	// ===========================================
	// Shared Errors
	// ===========================================

	// ErrUnknownEnumValue indicates a string did not map to a closed enum.
	ErrUnknownEnumValue = errors.New("unknown enum value")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., email, nickname).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
