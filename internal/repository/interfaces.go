// Package repository defines data access interfaces for the Meridian users
// service. These interfaces abstract database operations, allowing for
// different implementations (PostgreSQL, SQLite, in-memory for testing)
// while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/meridian-users/internal/domain"
)

// ListOptions contains pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// ListResult contains a page of items and the total count.
type ListResult[T any] struct {
	Items []*T
	Total int64
}

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
//
// Uniqueness of email and nickname is ultimately arbitrated by the store's
// unique indexes: Create and Update must map the driver's unique-violation
// error to domain.ErrUserAlreadyExists. The Exists* methods exist only as
// advisory fast-path checks.
type UserRepository interface {
	// Create creates a new user and populates its ID.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByNickname retrieves a user by nickname.
	GetByNickname(ctx context.Context, nickname string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user by ID. Sessions and preferences cascade.
	Delete(ctx context.Context, id int64) error

	// List returns all users with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// ExistsByNickname checks if a user with the given nickname exists.
	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
}

// =============================================================================
// Session Repository
// =============================================================================

// SessionRepository defines the interface for opaque-session data access.
// Only token hashes ever cross this interface; raw tokens never do.
type SessionRepository interface {
	// Create creates a new session and populates its ID.
	// A token-hash collision maps to domain.ErrSessionTokenTaken.
	Create(ctx context.Context, session *domain.Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)

	// ListByUserID returns all sessions for a user.
	ListByUserID(ctx context.Context, userID int64) ([]*domain.Session, error)

	// ExtendExpiry moves a session's expiry. The only permitted mutation.
	ExtendExpiry(ctx context.Context, id int64, expiresAt time.Time) error

	// DeleteByTokenHash deletes a session by token hash (logout).
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUserID deletes all sessions for a user (revoke-all).
	DeleteByUserID(ctx context.Context, userID int64) (int64, error)

	// DeleteExpired deletes all expired sessions (cleanup job).
	DeleteExpired(ctx context.Context) (int64, error)
}

// =============================================================================
// Preference Repository
// =============================================================================

// PreferenceRepository defines the interface for preference data access.
type PreferenceRepository interface {
	// GetByUserID retrieves the preference row for a user.
	GetByUserID(ctx context.Context, userID int64) (*domain.Preference, error)

	// Upsert creates or replaces the preference row for a user.
	Upsert(ctx context.Context, pref *domain.Preference) error

	// DeleteByUserID deletes the preference row for a user.
	DeleteByUserID(ctx context.Context, userID int64) error
}

// =============================================================================
// Database Health
// =============================================================================

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.DatabaseChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
