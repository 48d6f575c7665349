package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/domain"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }

func newPreferenceService(users *MockUserRepository, prefs *MockPreferenceRepository) *PreferenceService {
	return NewPreferenceService(prefs, users, zerolog.Nop())
}

func TestPreferenceService_GetDefaultsWhenUnset(t *testing.T) {
	users := NewMockUserRepository()
	prefs := NewMockPreferenceRepository()
	svc := newPreferenceService(users, prefs)

	pref, err := svc.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pref.UserID != 42 {
		t.Errorf("expected user ID 42, got %d", pref.UserID)
	}
	if pref.Theme != domain.ThemeLight || pref.FontScale != 1.0 || pref.ReducedMotion || pref.Language != "en" {
		t.Errorf("expected default preferences, got %+v", pref)
	}
}

func TestPreferenceService_Update(t *testing.T) {
	tests := []struct {
		name    string
		input   UpdateInput
		wantErr error
		check   func(t *testing.T, pref *domain.Preference)
	}{
		{
			name:  "full update",
			input: UpdateInput{Theme: strPtr("dark"), FontScale: floatPtr(1.5), ReducedMotion: boolPtr(true), Language: strPtr("pt-BR")},
			check: func(t *testing.T, pref *domain.Preference) {
				if pref.Theme != domain.ThemeDark {
					t.Errorf("expected dark theme, got %q", pref.Theme)
				}
				if pref.FontScale != 1.5 {
					t.Errorf("expected font scale 1.5, got %v", pref.FontScale)
				}
				if !pref.ReducedMotion {
					t.Error("expected reduced motion enabled")
				}
				if pref.Language != "pt-BR" {
					t.Errorf("expected language pt-BR, got %q", pref.Language)
				}
			},
		},
		{
			name:  "partial update keeps other fields",
			input: UpdateInput{FontScale: floatPtr(2.0)},
			check: func(t *testing.T, pref *domain.Preference) {
				if pref.FontScale != 2.0 {
					t.Errorf("expected font scale 2.0, got %v", pref.FontScale)
				}
				if pref.Theme != domain.ThemeLight {
					t.Errorf("expected the theme to stay at its default, got %q", pref.Theme)
				}
			},
		},
		{
			name:    "unknown theme",
			input:   UpdateInput{Theme: strPtr("sepia")},
			wantErr: ErrInvalidTheme,
		},
		{
			name:    "font scale too small",
			input:   UpdateInput{FontScale: floatPtr(0.4)},
			wantErr: ErrInvalidFontScale,
		},
		{
			name:    "font scale too large",
			input:   UpdateInput{FontScale: floatPtr(3.5)},
			wantErr: ErrInvalidFontScale,
		},
		{
			name:    "language too short",
			input:   UpdateInput{Language: strPtr("x")},
			wantErr: ErrInvalidLanguage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := NewMockUserRepository()
			prefs := NewMockPreferenceRepository()
			user := domain.NewUser("alice", "alice@example.com", "hash")
			if err := users.Create(context.Background(), user); err != nil {
				t.Fatalf("failed to seed user: %v", err)
			}
			svc := newPreferenceService(users, prefs)

			pref, err := svc.Update(context.Background(), user.ID, tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, pref)

			// The update must be visible on the next read.
			stored, err := svc.Get(context.Background(), user.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, stored)
		})
	}
}

func TestPreferenceService_UpdateUnknownUser(t *testing.T) {
	svc := newPreferenceService(NewMockUserRepository(), NewMockPreferenceRepository())

	_, err := svc.Update(context.Background(), 999, UpdateInput{Theme: strPtr("dark")})
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestPreferenceService_Reset(t *testing.T) {
	users := NewMockUserRepository()
	prefs := NewMockPreferenceRepository()
	user := domain.NewUser("alice", "alice@example.com", "hash")
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	svc := newPreferenceService(users, prefs)

	if _, err := svc.Update(context.Background(), user.ID, UpdateInput{Theme: strPtr("high-contrast"), FontScale: floatPtr(2.5)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pref, err := svc.Reset(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pref.Theme != domain.ThemeLight || pref.FontScale != 1.0 {
		t.Errorf("expected defaults after reset, got %+v", pref)
	}

	stored, err := svc.Get(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Theme != domain.ThemeLight || stored.FontScale != 1.0 {
		t.Errorf("expected the reset to persist, got %+v", stored)
	}
}
