// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/portfolio-backend/internal/authz"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateName(ctx context.Context, id, name string) (*User, error)
	UpdateRole(ctx context.Context, id string, role authz.Role) (*User, error)
	SetActive(ctx context.Context, id string, active bool) (*User, error)
	SetVerified(ctx context.Context, id string, verified bool) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	ChangePassword(ctx context.Context, id, passwordHash string) error
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
	RecordFailedLogin(
		ctx context.Context,
		id string,
		maxAttempts int,
		lockFor time.Duration,
	) (*time.Time, error)
	RecordSuccessfulLogin(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
}

const userColumns = `id, email, password_hash, name, role, is_active, is_verified,
	refresh_token_hash, password_changed_at, failed_login_count, lock_until,
	last_login_at, created_at, updated_at`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING ` + userColumns

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) updateReturning(
	ctx context.Context,
	op, set string,
	args ...any,
) (*User, error) {
	query := `UPDATE users SET ` + set + `, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	var user User
	err := r.db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) UpdateName(
	ctx context.Context,
	id, name string,
) (*User, error) {
	return r.updateReturning(ctx, "update name", "name = $2", id, name)
}

func (r *repository) UpdateRole(
	ctx context.Context,
	id string,
	role authz.Role,
) (*User, error) {
	return r.updateReturning(ctx, "update role", "role = $2", id, role)
}

// SetActive also drops the refresh reference when deactivating so the
// account cannot mint new access tokens.
func (r *repository) SetActive(
	ctx context.Context,
	id string,
	active bool,
) (*User, error) {
	return r.updateReturning(ctx, "set active",
		`is_active = $2,
		 refresh_token_hash = CASE WHEN $2 THEN refresh_token_hash ELSE NULL END`,
		id, active)
}

func (r *repository) SetVerified(
	ctx context.Context,
	id string,
	verified bool,
) (*User, error) {
	return r.updateReturning(ctx, "set verified", "is_verified = $2", id, verified)
}

func (r *repository) UpdatePasswordHash(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	return core.ExpectRows(result, "update password hash")
}

func (r *repository) ChangePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    password_changed_at = NOW(),
		    refresh_token_hash = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return core.ExpectRows(result, "change password")
}

func (r *repository) SetRefreshTokenHash(
	ctx context.Context,
	id string,
	hash *string,
) error {
	query := `
		UPDATE users
		SET refresh_token_hash = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}

	return core.ExpectRows(result, "set refresh token")
}

// RecordFailedLogin bumps the counter in one statement and sets lock_until
// once the counter reaches maxAttempts.
func (r *repository) RecordFailedLogin(
	ctx context.Context,
	id string,
	maxAttempts int,
	lockFor time.Duration,
) (*time.Time, error) {
	query := `
		UPDATE users
		SET failed_login_count = failed_login_count + 1,
		    lock_until = CASE
		        WHEN failed_login_count + 1 >= $2
		        THEN NOW() + ($3 * INTERVAL '1 second')
		        ELSE lock_until
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING lock_until`

	var lockUntil *time.Time
	err := r.db.GetContext(ctx, &lockUntil, query, id, maxAttempts, lockFor.Seconds())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record failed login: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("record failed login: %w", err)
	}

	return lockUntil, nil
}

func (r *repository) RecordSuccessfulLogin(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET failed_login_count = 0,
		    lock_until = NULL,
		    last_login_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}

	return core.ExpectRows(result, "record login")
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "TRUE")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *params.Active)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.Limit, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
