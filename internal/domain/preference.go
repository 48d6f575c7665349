// Package domain contains the core business entities for the Meridian users service.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Theme represents a display theme for accessibility preferences.
type Theme string

const (
	// ThemeLight is the default light theme.
	ThemeLight Theme = "light"

	// ThemeDark is the dark theme.
	ThemeDark Theme = "dark"

	// ThemeHighContrast is the high-contrast accessibility theme.
	ThemeHighContrast Theme = "high-contrast"
)

// ParseTheme maps a stored or user-supplied string to a Theme.
func ParseTheme(s string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ThemeLight):
		return ThemeLight, nil
	case string(ThemeDark):
		return ThemeDark, nil
	case string(ThemeHighContrast):
		return ThemeHighContrast, nil
	default:
		return "", fmt.Errorf("%w: theme %q", ErrUnknownEnumValue, s)
	}
}

// Preference holds per-user accessibility settings.
// Each user has at most one preference row (unique FK on UserID).
type Preference struct {
	// ID is the unique identifier for the preference record.
	ID int64 `json:"id"`

	// UserID is the owning user. One row per user.
	UserID int64 `json:"user_id"`

	// Theme is the selected display theme.
	Theme Theme `json:"theme"`

	// FontScale is a multiplier applied to base font size (0.5 - 3.0).
	FontScale float64 `json:"font_scale"`

	// ReducedMotion disables animations when true.
	ReducedMotion bool `json:"reduced_motion"`

	// Language is the preferred BCP 47 language tag (e.g. "en", "pt-BR").
	Language string `json:"language"`

	// UpdatedAt is the timestamp when the row was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreference returns the preference values for a user that has
// never saved any.
func DefaultPreference(userID int64) *Preference {
	return &Preference{
		UserID:        userID,
		Theme:         ThemeLight,
		FontScale:     1.0,
		ReducedMotion: false,
		Language:      "en",
		UpdatedAt:     time.Now().UTC(),
	}
}
