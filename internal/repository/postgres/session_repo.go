package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/repository"
)

// sessionRepository implements repository.SessionRepository for PostgreSQL.
type sessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(db *DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create creates a new session.
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		session.UserID,
		session.TokenHash,
		session.CreatedAt,
		session.ExpiresAt,
	).Scan(&session.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionTokenTaken
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := `
		SELECT id, user_id, token_hash, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1
	`

	session := &domain.Session{}
	err := r.db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.CreatedAt,
		&session.ExpiresAt,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// ListByUserID returns all sessions for a user.
func (r *sessionRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.Session, error) {
	query := `
		SELECT id, user_id, token_hash, created_at, expires_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session := &domain.Session{}
		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.TokenHash,
			&session.CreatedAt,
			&session.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// ExtendExpiry moves a session's expiry forward.
func (r *sessionRepository) ExtendExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE sessions SET expires_at = $1 WHERE id = $2`, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to extend session expiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByTokenHash deletes a session by token hash.
func (r *sessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByUserID deletes all sessions for a user.
func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired deletes all expired sessions.
func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
