package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/domain"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newAuthService(t *testing.T, users *MockUserRepository, sessions *MockSessionRepository, sessionExpiry time.Duration) *AuthService {
	t.Helper()

	tokens, err := auth.NewTokenManager([]byte(testSigningKey), "meridian-users", "meridian-api", time.Hour)
	if err != nil {
		t.Fatalf("failed to create token manager: %v", err)
	}

	return NewAuthService(
		users,
		sessions,
		auth.NewPasswordHasher(4),
		tokens,
		auth.NewSessionTokenIssuer(),
		sessionExpiry,
		nil,
		zerolog.Nop(),
	)
}

func seedUser(t *testing.T, repo *MockUserRepository, nickname, email, password string, status domain.Status) *domain.User {
	t.Helper()

	hash, err := auth.NewPasswordHasher(4).Hash(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           repo.nextID,
		Nickname:     nickname,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       status,
	}
	repo.users[user.ID] = user
	repo.nextID++
	return user
}

func TestAuthService_Login(t *testing.T) {
	tests := []struct {
		name     string
		login    string
		password string
		status   domain.Status
		wantErr  error
	}{
		{name: "success by email", login: "alice@example.com", password: "password123", status: domain.StatusActive},
		{name: "success by nickname", login: "alice", password: "password123", status: domain.StatusActive},
		{name: "wrong password", login: "alice@example.com", password: "wrong", status: domain.StatusActive, wantErr: ErrInvalidCredentials},
		{name: "unknown user", login: "nobody@example.com", password: "password123", status: domain.StatusActive, wantErr: ErrInvalidCredentials},
		{name: "inactive user", login: "alice@example.com", password: "password123", status: domain.StatusInactive, wantErr: ErrUserInactive},
		{name: "blocked user", login: "alice@example.com", password: "password123", status: domain.StatusBlocked, wantErr: ErrUserBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := NewMockUserRepository()
			seedUser(t, users, "alice", "alice@example.com", "password123", tt.status)

			svc := newAuthService(t, users, NewMockSessionRepository(), 0)

			out, err := svc.Login(context.Background(), LoginInput{Login: tt.login, Password: tt.password})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Token == "" {
				t.Error("expected a token")
			}
			if out.ExpiresAt.Before(time.Now()) {
				t.Error("token expiration must be in the future")
			}
			if out.User.LastLoginAt == nil {
				t.Error("expected last login time to be recorded")
			}
		})
	}
}

func TestAuthService_LoginSession(t *testing.T) {
	users := NewMockUserRepository()
	seedUser(t, users, "alice", "alice@example.com", "password123", domain.StatusActive)

	sessions := NewMockSessionRepository()
	svc := newAuthService(t, users, sessions, time.Hour)

	out, err := svc.LoginSession(context.Background(), LoginInput{Login: "alice@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Token == "" {
		t.Fatal("expected a session token")
	}
	if out.ExpiresAt == nil {
		t.Error("expected an expiry with non-zero session lifetime")
	}

	// Only the hash is stored, never the raw token.
	if _, exists := sessions.sessions[out.Token]; exists {
		t.Error("raw token must not be used as the storage key")
	}
	issuer := auth.NewSessionTokenIssuer()
	if _, exists := sessions.sessions[issuer.HashToken(out.Token)]; !exists {
		t.Error("expected session stored under the token hash")
	}
}

func TestAuthService_LoginSession_NoExpiry(t *testing.T) {
	users := NewMockUserRepository()
	seedUser(t, users, "alice", "alice@example.com", "password123", domain.StatusActive)

	svc := newAuthService(t, users, NewMockSessionRepository(), 0)

	out, err := svc.LoginSession(context.Background(), LoginInput{Login: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ExpiresAt != nil {
		t.Error("zero session lifetime must produce a non-expiring session")
	}
}

func TestAuthService_Logout(t *testing.T) {
	users := NewMockUserRepository()
	seedUser(t, users, "alice", "alice@example.com", "password123", domain.StatusActive)

	sessions := NewMockSessionRepository()
	svc := newAuthService(t, users, sessions, time.Hour)

	out, err := svc.LoginSession(context.Background(), LoginInput{Login: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Logout(context.Background(), out.Token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Error("expected session removed on logout")
	}

	// Logging out a token with no session behind it reports not found.
	if err := svc.Logout(context.Background(), out.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAuthService_Logout_JWTHasNoSession(t *testing.T) {
	// A JWT is stateless; presenting one to Logout finds no session row.
	users := NewMockUserRepository()
	seedUser(t, users, "alice", "alice@example.com", "password123", domain.StatusActive)

	svc := newAuthService(t, users, NewMockSessionRepository(), 0)

	jwtOut, err := svc.Login(context.Background(), LoginInput{Login: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Logout(context.Background(), jwtOut.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for a JWT, got %v", err)
	}
}

func TestAuthService_RefreshSession(t *testing.T) {
	users := NewMockUserRepository()
	seedUser(t, users, "alice", "alice@example.com", "password123", domain.StatusActive)

	issuer := auth.NewSessionTokenIssuer()
	raw, hash, err := issuer.GenerateToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	soon := time.Now().UTC().Add(time.Minute)
	sessions := NewMockSessionRepository()
	sessions.sessions[hash] = &domain.Session{ID: 1, UserID: 1, TokenHash: hash, ExpiresAt: &soon}

	svc := newAuthService(t, users, sessions, time.Hour)

	expiresAt, err := svc.RefreshSession(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresAt == nil || !expiresAt.After(soon) {
		t.Fatalf("expected expiry slid past %v, got %v", soon, expiresAt)
	}
	if stored := sessions.sessions[hash].ExpiresAt; stored == nil || !stored.Equal(*expiresAt) {
		t.Errorf("expected stored expiry %v, got %v", expiresAt, stored)
	}
}

func TestAuthService_RefreshSession_Expired(t *testing.T) {
	users := NewMockUserRepository()
	issuer := auth.NewSessionTokenIssuer()
	raw, hash, err := issuer.GenerateToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	sessions := NewMockSessionRepository()
	sessions.sessions[hash] = &domain.Session{ID: 1, UserID: 1, TokenHash: hash, ExpiresAt: &past}

	svc := newAuthService(t, users, sessions, time.Hour)

	if _, err := svc.RefreshSession(context.Background(), raw); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestAuthService_RefreshSession_UnknownToken(t *testing.T) {
	svc := newAuthService(t, NewMockUserRepository(), NewMockSessionRepository(), time.Hour)

	if _, err := svc.RefreshSession(context.Background(), "never-issued"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAuthService_RefreshSession_NonExpiring(t *testing.T) {
	users := NewMockUserRepository()
	issuer := auth.NewSessionTokenIssuer()
	raw, hash, err := issuer.GenerateToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	sessions := NewMockSessionRepository()
	sessions.sessions[hash] = &domain.Session{ID: 1, UserID: 1, TokenHash: hash}

	svc := newAuthService(t, users, sessions, time.Hour)

	expiresAt, err := svc.RefreshSession(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresAt != nil {
		t.Errorf("a non-expiring session must stay non-expiring, got %v", expiresAt)
	}
	if sessions.sessions[hash].ExpiresAt != nil {
		t.Error("refresh must not add an expiry to a non-expiring session")
	}
}

func TestAuthService_RevokeAll(t *testing.T) {
	users := NewMockUserRepository()
	seedUser(t, users, "alice", "alice@example.com", "password123", domain.StatusActive)

	sessions := NewMockSessionRepository()
	sessions.sessions["h1"] = &domain.Session{ID: 1, UserID: 1, TokenHash: "h1"}
	sessions.sessions["h2"] = &domain.Session{ID: 2, UserID: 1, TokenHash: "h2"}
	sessions.sessions["h3"] = &domain.Session{ID: 3, UserID: 2, TokenHash: "h3"}

	svc := newAuthService(t, users, sessions, 0)

	revoked, err := svc.RevokeAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revoked != 2 {
		t.Errorf("expected 2 revoked, got %d", revoked)
	}
	if _, exists := sessions.sessions["h3"]; !exists {
		t.Error("other users' sessions must survive")
	}
}

func TestAuthService_PurgeExpired(t *testing.T) {
	users := NewMockUserRepository()
	sessions := NewMockSessionRepository()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	sessions.sessions["old"] = &domain.Session{ID: 1, UserID: 1, TokenHash: "old", ExpiresAt: &past}
	sessions.sessions["live"] = &domain.Session{ID: 2, UserID: 1, TokenHash: "live", ExpiresAt: &future}
	sessions.sessions["forever"] = &domain.Session{ID: 3, UserID: 1, TokenHash: "forever"}

	svc := newAuthService(t, users, sessions, 0)

	purged, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged, got %d", purged)
	}
	if _, exists := sessions.sessions["forever"]; !exists {
		t.Error("non-expiring sessions must never be purged")
	}
}
