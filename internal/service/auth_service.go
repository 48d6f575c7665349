package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/metrics"
	"github.com/prn-tf/meridian-users/internal/repository"
)

// sessionTokenRetries bounds retries when a generated session token
// collides with an existing one. With 256-bit tokens a collision means
// something is wrong with the entropy source, so we give up quickly.
const sessionTokenRetries = 3

// AuthService handles credential verification and token issuance.
type AuthService struct {
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	hasher        *auth.PasswordHasher
	tokens        *auth.TokenManager
	issuer        *auth.SessionTokenIssuer
	sessionExpiry time.Duration
	metrics       *metrics.Collector
	logger        zerolog.Logger
}

// NewAuthService creates a new AuthService. sessionExpiry of zero means
// opaque session tokens never expire. metrics may be nil.
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenManager,
	issuer *auth.SessionTokenIssuer,
	sessionExpiry time.Duration,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		hasher:        hasher,
		tokens:        tokens,
		issuer:        issuer,
		sessionExpiry: sessionExpiry,
		metrics:       collector,
		logger:        logger.With().Str("service", "auth").Logger(),
	}
}

// LoginInput contains credentials for authentication. Login accepts
// either an email address or a nickname.
type LoginInput struct {
	Login    string
	Password string
}

// LoginOutput contains an issued JWT and its expiration.
type LoginOutput struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login verifies credentials and issues a JWT.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	user, err := s.authenticate(ctx, input.Login, input.Password)
	if err != nil {
		s.recordLogin("jwt", "failure")
		return nil, err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role), user.Nickname)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to generate token")
		s.recordLogin("jwt", "failure")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.touchLastLogin(ctx, user)
	s.recordLogin("jwt", "success")

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("nickname", user.Nickname).
		Msg("user logged in")

	return &LoginOutput{
		Token:     token,
		ExpiresAt: s.tokens.GetTokenExpiration(),
		User:      user,
	}, nil
}

// SessionOutput contains an issued opaque session token.
type SessionOutput struct {
	Token     string
	ExpiresAt *time.Time
	User      *domain.User
}

// LoginSession verifies credentials and issues an opaque session token.
// Only the token's hash is persisted; the raw token is returned once and
// never stored.
func (s *AuthService) LoginSession(ctx context.Context, input LoginInput) (*SessionOutput, error) {
	user, err := s.authenticate(ctx, input.Login, input.Password)
	if err != nil {
		s.recordLogin("session", "failure")
		return nil, err
	}

	var expiresAt *time.Time
	if s.sessionExpiry > 0 {
		t := time.Now().UTC().Add(s.sessionExpiry)
		expiresAt = &t
	}

	var rawToken string
	for attempt := 0; attempt < sessionTokenRetries; attempt++ {
		var tokenHash string
		rawToken, tokenHash, err = s.issuer.GenerateToken()
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to generate session token")
			s.recordLogin("session", "failure")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		session := domain.NewSession(user.ID, tokenHash, expiresAt)
		err = s.sessionRepo.Create(ctx, session)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrSessionTokenTaken) {
			s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to create session")
			s.recordLogin("session", "failure")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		s.logger.Warn().Int("attempt", attempt+1).Msg("session token collision, retrying")
	}
	if err != nil {
		s.recordLogin("session", "failure")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.touchLastLogin(ctx, user)
	s.recordLogin("session", "success")

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("nickname", user.Nickname).
		Msg("session created")

	return &SessionOutput{
		Token:     rawToken,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// Logout revokes the opaque session identified by the raw token.
//
// JWTs cannot be revoked here: they stay valid until expiry. Only
// session tokens have server-side state to tear down.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	tokenHash := s.issuer.HashToken(rawToken)

	if err := s.sessionRepo.DeleteByTokenHash(ctx, tokenHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Msg("session revoked")
	return nil
}

// RefreshSession slides the expiry of the opaque session identified by
// the raw token and returns the new expiry. Sessions issued without an
// expiry, or a zero configured session lifetime, leave the session
// untouched.
func (s *AuthService) RefreshSession(ctx context.Context, rawToken string) (*time.Time, error) {
	session, err := s.sessionRepo.GetByTokenHash(ctx, s.issuer.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	if session.ExpiresAt == nil || s.sessionExpiry <= 0 {
		return session.ExpiresAt, nil
	}

	expiresAt := time.Now().UTC().Add(s.sessionExpiry)
	if err := s.sessionRepo.ExtendExpiry(ctx, session.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", session.UserID).
		Time("expires_at", expiresAt).
		Msg("session expiry extended")

	return &expiresAt, nil
}

// RevokeAll removes every session belonging to a user and returns the
// number revoked.
func (s *AuthService) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	revoked, err := s.sessionRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int64("sessions_revoked", revoked).
		Msg("all sessions revoked")

	return revoked, nil
}

// ListSessions returns the sessions belonging to a user.
func (s *AuthService) ListSessions(ctx context.Context, userID int64) ([]*domain.Session, error) {
	sessions, err := s.sessionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return sessions, nil
}

// PurgeExpired removes sessions whose expiry has passed and returns the
// number removed.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if purged > 0 {
		s.logger.Info().Int64("sessions_purged", purged).Msg("expired sessions purged")
	}

	return purged, nil
}

// authenticate looks up the user by email or nickname and verifies the
// password. Lookup failures and bad passwords both map to
// ErrInvalidCredentials so callers cannot probe for account existence.
func (s *AuthService) authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.userRepo.GetByEmail(ctx, login)
	} else {
		user, err = s.userRepo.GetByNickname(ctx, login)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug().Str("login", login).Msg("user not found during authentication")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Debug().Int64("user_id", user.ID).Msg("invalid password during authentication")
		return nil, ErrInvalidCredentials
	}

	switch user.Status {
	case domain.StatusActive:
	case domain.StatusBlocked:
		s.logger.Debug().Int64("user_id", user.ID).Msg("blocked user attempted authentication")
		return nil, ErrUserBlocked
	default:
		s.logger.Debug().Int64("user_id", user.ID).Msg("inactive user attempted authentication")
		return nil, ErrUserInactive
	}

	return user, nil
}

// touchLastLogin records a successful login time. Failures are logged
// but do not fail the login.
func (s *AuthService) touchLastLogin(ctx context.Context, user *domain.User) {
	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to update last login time")
	}
}

func (s *AuthService) recordLogin(method, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(method, outcome)
	}
}
