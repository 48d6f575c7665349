// Package service provides business logic for the Meridian users service.
package service

import "errors"

// Common service errors.
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserInactive       = errors.New("user is inactive")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("invalid password: must be at least 8 characters")
	ErrInvalidNickname    = errors.New("invalid nickname: must be 3-50 characters")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidStatus      = errors.New("invalid status")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")

	// Preference errors
	ErrInvalidTheme     = errors.New("invalid theme")
	ErrInvalidFontScale = errors.New("invalid font scale: must be between 0.5 and 3.0")
	ErrInvalidLanguage  = errors.New("invalid language: must be a BCP 47 tag of 2-35 characters")

	// General errors
	ErrInternalError = errors.New("internal server error")
)
