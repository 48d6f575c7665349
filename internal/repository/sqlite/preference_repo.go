package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/repository"
)

// preferenceRepository implements repository.PreferenceRepository backed by SQLite.
type preferenceRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewPreferenceRepository creates a SQLite-backed preference repository.
func NewPreferenceRepository(db *DB, logger zerolog.Logger) repository.PreferenceRepository {
	return &preferenceRepository{
		db:     db,
		logger: logger.With().Str("repository", "preference").Logger(),
	}
}

var _ repository.PreferenceRepository = (*preferenceRepository)(nil)

func (r *preferenceRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Preference, error) {
	query := `
		SELECT id, user_id, theme, font_scale, reduced_motion, language, updated_at
		FROM preferences
		WHERE user_id = ?`

	var (
		pref          domain.Preference
		theme         string
		reducedMotion int
		updatedAt     string
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&pref.ID,
		&pref.UserID,
		&theme,
		&pref.FontScale,
		&reducedMotion,
		&pref.Language,
		&updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	parsed, err := domain.ParseTheme(theme)
	if err != nil {
		r.logger.Warn().Str("theme", theme).Int64("user_id", userID).Msg("unknown theme in database, defaulting to light")
		parsed = domain.ThemeLight
	}
	pref.Theme = parsed
	pref.ReducedMotion = reducedMotion != 0

	if pref.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &pref, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, pref *domain.Preference) error {
	query := `
		INSERT INTO preferences (user_id, theme, font_scale, reduced_motion, language, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			theme = excluded.theme,
			font_scale = excluded.font_scale,
			reduced_motion = excluded.reduced_motion,
			language = excluded.language,
			updated_at = excluded.updated_at`

	pref.UpdatedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, query,
		pref.UserID,
		string(pref.Theme),
		pref.FontScale,
		boolToInt(pref.ReducedMotion),
		pref.Language,
		formatTime(pref.UpdatedAt),
	); err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM preferences WHERE user_id = ?`, pref.UserID).Scan(&id); err != nil {
		return fmt.Errorf("failed to read preference id: %w", err)
	}
	pref.ID = id

	return nil
}

func (r *preferenceRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
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
