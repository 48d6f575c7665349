package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/repository"
)

const sessionColumns = `id, user_id, token_hash, created_at, expires_at`

// sessionRepository implements repository.SessionRepository backed by SQLite.
type sessionRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewSessionRepository creates a SQLite-backed session repository.
func NewSessionRepository(db *DB, logger zerolog.Logger) repository.SessionRepository {
	return &sessionRepository{
		db:     db,
		logger: logger.With().Str("repository", "session").Logger(),
	}
}

var _ repository.SessionRepository = (*sessionRepository)(nil)

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (user_id, token_hash, created_at, expires_at)
		VALUES (?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		session.UserID,
		session.TokenHash,
		formatTime(session.CreatedAt),
		formatTimePtr(session.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionTokenTaken
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get session id: %w", err)
	}
	session.ID = id

	return nil
}

func (r *sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE token_hash = ?`, sessionColumns)
	session, err := r.scanSession(r.db.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

func (r *sessionRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE user_id = ? ORDER BY created_at DESC`, sessionColumns)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

func (r *sessionRepository) ExtendExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE id = ?`,
		formatTime(expiresAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to extend session expiry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *sessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected, nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < ?`,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected, nil
}

func (r *sessionRepository) scanSession(row rowScanner) (*domain.Session, error) {
	var (
		session   domain.Session
		createdAt string
		expiresAt sql.NullString
	)

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if expiresAt.Valid {
		t, err := parseTime(expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expires_at: %w", err)
		}
		session.ExpiresAt = &t
	}

	return &session, nil
}
