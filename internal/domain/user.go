// Package domain contains the core business entities for the Meridian users service.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of user identity and session management.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role represents a user's authorization role.
type Role string

const (
	// RoleAdmin grants administrative privileges (user management, purges).
	RoleAdmin Role = "admin"

	// RoleUser is the default role for registered users.
	RoleUser Role = "user"
)

// ParseRole maps a stored or user-supplied string to a Role.
// Unknown input is an error; callers decide whether to reject or fall back.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleUser):
		return RoleUser, nil
	default:
		return "", fmt.Errorf("%w: role %q", ErrUnknownEnumValue, s)
	}
}

// Status represents the lifecycle state of a user account.
type Status string

const (
	// StatusActive indicates a normal, usable account.
	StatusActive Status = "active"

	// StatusInactive indicates a deactivated account. Inactive users
	// cannot authenticate.
	StatusInactive Status = "inactive"

	// StatusBlocked indicates an account suspended by an administrator.
	StatusBlocked Status = "blocked"
)

// ParseStatus maps a stored or user-supplied string to a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusActive):
		return StatusActive, nil
	case string(StatusInactive):
		return StatusInactive, nil
	case string(StatusBlocked):
		return StatusBlocked, nil
	default:
		return "", fmt.Errorf("%w: status %q", ErrUnknownEnumValue, s)
	}
}

// User represents a registered user in the system.
// Users own sessions (cascade delete) and at most one preference row.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Nickname is the unique display handle for the user.
	// Constraints: 3-50 characters.
	Nickname string `json:"nickname"`

	// Email is the unique email address for the user.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This must never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Role determines the user's authorization level.
	Role Role `json:"role"`

	// Status is the account lifecycle state.
	Status Status `json:"status"`

	// EmailConfirmed indicates whether the email address has been verified.
	EmailConfirmed bool `json:"email_confirmed"`

	// LastLoginAt is the timestamp of the most recent successful login.
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// RegisteredAt is the timestamp of the original registration.
	RegisteredAt time.Time `json:"registered_at"`

	// CreatedAt is the timestamp when the row was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the row was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values.
func NewUser(nickname, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Nickname:     nickname,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		Status:       StatusActive,
		RegisteredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
// Only active accounts may log in; inactive and blocked ones may not.
func (u *User) CanAuthenticate() bool {
	return u.Status == StatusActive
}

// IsAdmin returns true if the user holds the admin role.
func (u *User) IsAdmin() bool {
	return strings.EqualFold(string(u.Role), string(RoleAdmin))
}
