package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/repository"
)

// UserService handles user account management.
type UserService struct {
	userRepo    repository.UserRepository
	prefRepo    repository.PreferenceRepository
	sessionRepo repository.SessionRepository
	hasher      *auth.PasswordHasher
	logger      zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	prefRepo repository.PreferenceRepository,
	sessionRepo repository.SessionRepository,
	hasher *auth.PasswordHasher,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		prefRepo:    prefRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		logger:      logger.With().Str("service", "user").Logger(),
	}
}

// RegisterInput contains the data needed to register a new user.
type RegisterInput struct {
	Nickname string
	Email    string
	Password string
	Role     domain.Role
}

// RegisterOutput contains the result of registering a user.
type RegisterOutput struct {
	User *domain.User
}

// Register creates a new user account.
//
// The existence pre-checks give callers a friendly error early, but the
// store's unique indexes remain the authority: a concurrent registration
// that slips past the pre-check still surfaces as ErrUserAlreadyExists
// from the insert.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	if err := s.validateRegisterInput(input); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByNickname(ctx, input.Nickname)
	if err != nil {
		s.logger.Error().Err(err).Str("nickname", input.Nickname).Msg("failed to check nickname existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: nickname '%s'", ErrUserAlreadyExists, input.Nickname)
	}

	exists, err = s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: email '%s'", ErrUserAlreadyExists, input.Email)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(input.Nickname, input.Email, passwordHash)
	if input.Role != "" {
		user.Role = input.Role
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, fmt.Errorf("%w: %v", ErrUserAlreadyExists, err)
		}
		s.logger.Error().Err(err).Str("nickname", input.Nickname).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("nickname", user.Nickname).
		Str("role", string(user.Role)).
		Msg("user registered")

	return &RegisterOutput{User: user}, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// GetByNickname retrieves a user by nickname.
func (s *UserService) GetByNickname(ctx context.Context, nickname string) (*domain.User, error) {
	user, err := s.userRepo.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// ListInput contains pagination parameters for listing users.
type ListInput struct {
	Limit  int
	Offset int
}

// ListOutput contains a page of users and the total count.
type ListOutput struct {
	Users []*domain.User
	Total int64
}

// List returns a page of users.
func (s *UserService) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 50
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	result, err := s.userRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListOutput{Users: result.Items, Total: result.Total}, nil
}

// UpdatePassword changes a user's password after verifying the current one.
// All existing sessions for the user are revoked.
func (s *UserService) UpdatePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrInvalidPassword
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		s.logger.Debug().Int64("user_id", userID).Msg("invalid current password during password change")
		return ErrInvalidCredentials
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user.PasswordHash = newHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	revoked, err := s.sessionRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to revoke sessions after password change")
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int64("sessions_revoked", revoked).
		Msg("password updated")

	return nil
}

// SetStatus changes a user's status. Moving a user out of active status
// revokes all of their sessions.
func (s *UserService) SetStatus(ctx context.Context, userID int64, status domain.Status) error {
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	user.Status = status
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if status != domain.StatusActive {
		revoked, err := s.sessionRepo.DeleteByUserID(ctx, userID)
		if err != nil {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to revoke sessions after status change")
		} else if revoked > 0 {
			s.logger.Info().Int64("user_id", userID).Int64("sessions_revoked", revoked).Msg("sessions revoked")
		}
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("status", string(status)).
		Msg("user status updated")

	return nil
}

// SetRole changes a user's role.
func (s *UserService) SetRole(ctx context.Context, userID int64, role domain.Role) error {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	user.Role = role
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("role", string(role)).
		Msg("user role updated")

	return nil
}

// ConfirmEmail marks a user's email address as confirmed.
func (s *UserService) ConfirmEmail(ctx context.Context, userID int64) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.EmailConfirmed {
		return nil
	}

	user.EmailConfirmed = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Msg("email confirmed")
	return nil
}

// Delete removes a user account. Sessions and preferences are removed by
// foreign key cascade.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Msg("user deleted")
	return nil
}

// validateRegisterInput checks registration input.
func (s *UserService) validateRegisterInput(input RegisterInput) error {
	if len(input.Nickname) < 3 || len(input.Nickname) > 50 {
		return ErrInvalidNickname
	}

	if _, err := mail.ParseAddress(input.Email); err != nil {
		return ErrInvalidEmail
	}

	if len(input.Password) < 8 {
		return ErrInvalidPassword
	}

	if input.Role != "" {
		if _, err := domain.ParseRole(string(input.Role)); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidRole, input.Role)
		}
	}

	return nil
}
