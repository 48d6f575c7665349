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

const userColumns = `id, nickname, email, password_hash, role, status, email_confirmed, last_login_at, registered_at, created_at, updated_at`

// userRepository implements repository.UserRepository backed by SQLite.
type userRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewUserRepository creates a SQLite-backed user repository.
func NewUserRepository(db *DB, logger zerolog.Logger) repository.UserRepository {
	return &userRepository{
		db:     db,
		logger: logger.With().Str("repository", "user").Logger(),
	}
}

var _ repository.UserRepository = (*userRepository)(nil)

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (nickname, email, password_hash, role, status, email_confirmed, last_login_at, registered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		user.Nickname,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		boolToInt(user.EmailConfirmed),
		formatTimePtr(user.LastLoginAt),
		formatTime(user.RegisteredAt),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: nickname or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}
	user.ID = id

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = ?`, userColumns)
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = ?`, userColumns)
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *userRepository) GetByNickname(ctx context.Context, nickname string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE nickname = ?`, userColumns)
	return r.scanUser(r.db.QueryRowContext(ctx, query, nickname))
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET nickname = ?, email = ?, password_hash = ?, role = ?, status = ?,
		    email_confirmed = ?, last_login_at = ?, updated_at = ?
		WHERE id = ?`

	user.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		user.Nickname,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		boolToInt(user.EmailConfirmed),
		formatTimePtr(user.LastLoginAt),
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: nickname or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
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

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
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

func (r *userRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY id LIMIT ? OFFSET ?`, userColumns)
	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, opts.Limit)
	for rows.Next() {
		user, err := r.scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return &repository.ListResult[domain.User]{
		Items: users,
		Total: total,
	}, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

func (r *userRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE nickname = ?)`, nickname).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check nickname existence: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *userRepository) scanUser(row *sql.Row) (*domain.User, error) {
	user, err := r.scanUserRow(row)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) scanUserRow(row rowScanner) (*domain.User, error) {
	var (
		user           domain.User
		role, status   string
		emailConfirmed int
		lastLoginAt    sql.NullString
		registeredAt   string
		createdAt      string
		updatedAt      string
	)

	err := row.Scan(
		&user.ID,
		&user.Nickname,
		&user.Email,
		&user.PasswordHash,
		&role,
		&status,
		&emailConfirmed,
		&lastLoginAt,
		&registeredAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.Role = parseRoleOrDefault(role, r.logger)
	user.Status = parseStatusOrDefault(status, r.logger)
	user.EmailConfirmed = emailConfirmed != 0

	if lastLoginAt.Valid {
		t, err := parseTime(lastLoginAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_login_at: %w", err)
		}
		user.LastLoginAt = &t
	}

	if user.RegisteredAt, err = parseTime(registeredAt); err != nil {
		return nil, fmt.Errorf("failed to parse registered_at: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &user, nil
}
