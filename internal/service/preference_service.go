package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/repository"
)

// PreferenceService handles per-user accessibility preferences.
type PreferenceService struct {
	prefRepo repository.PreferenceRepository
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

// NewPreferenceService creates a new PreferenceService.
func NewPreferenceService(prefRepo repository.PreferenceRepository, userRepo repository.UserRepository, logger zerolog.Logger) *PreferenceService {
	return &PreferenceService{
		prefRepo: prefRepo,
		userRepo: userRepo,
		logger:   logger.With().Str("service", "preference").Logger(),
	}
}

// Get returns the preferences for a user. A user who has never saved
// preferences gets the defaults rather than a not-found error.
func (s *PreferenceService) Get(ctx context.Context, userID int64) (*domain.Preference, error) {
	pref, err := s.prefRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.DefaultPreference(userID), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return pref, nil
}

// UpdateInput contains the preference fields to save. Nil fields keep
// their current value.
type UpdateInput struct {
	Theme         *string
	FontScale     *float64
	ReducedMotion *bool
	Language      *string
}

// Update validates and persists preference changes for a user. The
// current preferences (or defaults) are loaded first so a partial update
// only touches the provided fields.
func (s *PreferenceService) Update(ctx context.Context, userID int64, input UpdateInput) (*domain.Preference, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	pref, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Theme != nil {
		theme, err := domain.ParseTheme(*input.Theme)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTheme, *input.Theme)
		}
		pref.Theme = theme
	}

	if input.FontScale != nil {
		if *input.FontScale < 0.5 || *input.FontScale > 3.0 {
			return nil, ErrInvalidFontScale
		}
		pref.FontScale = *input.FontScale
	}

	if input.ReducedMotion != nil {
		pref.ReducedMotion = *input.ReducedMotion
	}

	if input.Language != nil {
		if len(*input.Language) < 2 || len(*input.Language) > 35 {
			return nil, ErrInvalidLanguage
		}
		pref.Language = *input.Language
	}

	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to save preferences")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("theme", string(pref.Theme)).
		Msg("preferences updated")

	return pref, nil
}

// Reset restores a user's preferences to the defaults.
func (s *PreferenceService) Reset(ctx context.Context, userID int64) (*domain.Preference, error) {
	pref := domain.DefaultPreference(userID)
	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to reset preferences")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Msg("preferences reset")
	return pref, nil
}
