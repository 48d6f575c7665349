package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/meridian-users/internal/domain"
	"github.com/prn-tf/meridian-users/internal/repository"
)

// userRepository implements repository.UserRepository for PostgreSQL.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, nickname, email, password_hash, role, status, email_confirmed,
	last_login_at, registered_at, created_at, updated_at`

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (nickname, email, password_hash, role, status, email_confirmed, registered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.Nickname,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		user.EmailConfirmed,
		user.RegisteredAt,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: nickname or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, query, email)
}

// GetByNickname retrieves a user by nickname.
func (r *userRepository) GetByNickname(ctx context.Context, nickname string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE nickname = $1`
	return r.scanUser(ctx, query, nickname)
}

func (r *userRepository) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	user := &domain.User{}
	var role, status string

	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Nickname,
		&user.Email,
		&user.PasswordHash,
		&role,
		&status,
		&user.EmailConfirmed,
		&user.LastLoginAt,
		&user.RegisteredAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Role = parseRoleOrDefault(r.db.logger, role)
	user.Status = parseStatusOrDefault(r.db.logger, status)

	return user, nil
}

// Update updates an existing user.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET nickname = $1, email = $2, password_hash = $3, role = $4, status = $5,
		    email_confirmed = $6, last_login_at = $7, updated_at = $8
		WHERE id = $9
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		user.Nickname,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		user.EmailConfirmed,
		user.LastLoginAt,
		user.UpdatedAt,
		user.ID,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: nickname or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete deletes a user by ID. Sessions and preferences cascade at the
// schema level (ON DELETE CASCADE).
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns all users with pagination.
func (r *userRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.db.Pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	result := &repository.ListResult[domain.User]{Total: total}
	for rows.Next() {
		user := &domain.User{}
		var role, status string

		if err := rows.Scan(
			&user.ID,
			&user.Nickname,
			&user.Email,
			&user.PasswordHash,
			&role,
			&status,
			&user.EmailConfirmed,
			&user.LastLoginAt,
			&user.RegisteredAt,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		user.Role = parseRoleOrDefault(r.db.logger, role)
		user.Status = parseStatusOrDefault(r.db.logger, status)
		result.Items = append(result.Items, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return result, nil
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// ExistsByNickname checks if a user with the given nickname exists.
func (r *userRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE nickname = $1)`, nickname).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check nickname existence: %w", err)
	}
	return exists, nil
}
