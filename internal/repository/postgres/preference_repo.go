package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/repository"
)

// preferenceRepository implements repository.PreferenceRepository for PostgreSQL.
type preferenceRepository struct {
	db *DB
}

// NewPreferenceRepository creates a new PostgreSQL preference repository.
func NewPreferenceRepository(db *DB) repository.PreferenceRepository {
	return &preferenceRepository{db: db}
}

// GetByUserID retrieves the preference row for a user.
func (r *preferenceRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Preference, error) {
	query := `
		SELECT id, user_id, theme, font_scale, reduced_motion, language, updated_at
		FROM preferences
		WHERE user_id = $1
	`

	pref := &domain.Preference{}
	var theme string

	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&pref.ID,
		&pref.UserID,
		&theme,
		&pref.FontScale,
		&pref.ReducedMotion,
		&pref.Language,
		&pref.UpdatedAt,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}

	parsed, err := domain.ParseTheme(theme)
	if err != nil {
		r.db.logger.Warn().Str("theme", theme).Int64("user_id", userID).Msg("unknown theme in store, treating as light")
		parsed = domain.ThemeLight
	}
	pref.Theme = parsed

	return pref, nil
}

// Upsert creates or replaces the preference row for a user.
// The unique index on user_id makes this atomic.
func (r *preferenceRepository) Upsert(ctx context.Context, pref *domain.Preference) error {
	pref.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO preferences (user_id, theme, font_scale, reduced_motion, language, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET theme = EXCLUDED.theme,
		    font_scale = EXCLUDED.font_scale,
		    reduced_motion = EXCLUDED.reduced_motion,
		    language = EXCLUDED.language,
		    updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		pref.UserID,
		string(pref.Theme),
		pref.FontScale,
		pref.ReducedMotion,
		pref.Language,
		pref.UpdatedAt,
	).Scan(&pref.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}

	return nil
}

// DeleteByUserID deletes the preference row for a user.
func (r *preferenceRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM preferences WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
