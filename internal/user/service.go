// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/portfolio-backend/internal/auth"
	"github.com/carterperez-dev/portfolio-backend/internal/authz"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/middleware"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name, role string,
) (*auth.UserInfo, error) {
	parsed, ok := authz.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf(
			"create user: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	user := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: &passwordHash,
		Name:         strings.TrimSpace(name),
		Role:         parsed,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePasswordHash(ctx, userID, passwordHash)
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.ChangePassword(ctx, userID, passwordHash)
}

// SetRefreshTokenHash replaces the single stored refresh reference; an
// empty hash clears it.
func (s *Service) SetRefreshTokenHash(
	ctx context.Context,
	userID, hash string,
) error {
	if hash == "" {
		return s.repo.SetRefreshTokenHash(ctx, userID, nil)
	}
	return s.repo.SetRefreshTokenHash(ctx, userID, &hash)
}

func (s *Service) RecordFailedLogin(
	ctx context.Context,
	userID string,
	maxAttempts int,
	lockFor time.Duration,
) (*time.Time, error) {
	return s.repo.RecordFailedLogin(ctx, userID, maxAttempts, lockFor)
}

func (s *Service) RecordSuccessfulLogin(ctx context.Context, userID string) error {
	return s.repo.RecordSuccessfulLogin(ctx, userID)
}

// LoadCurrentUser is the read path used by the authentication gate.
func (s *Service) LoadCurrentUser(
	ctx context.Context,
	id string,
) (*middleware.CurrentUser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("load user: %w", core.ErrNotFound)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &middleware.CurrentUser{
		ID:                user.ID,
		Email:             user.Email,
		Name:              user.Name,
		Role:              user.Role,
		Active:            user.IsActive,
		RefreshTokenHash:  derefString(user.RefreshTokenHash),
		PasswordChangedAt: user.PasswordChangedAt,
	}, nil
}

// ContactEmail resolves a notification address for a user.
func (s *Service) ContactEmail(ctx context.Context, userID string) (string, string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return user.Email, user.Name, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	if req.Name == nil {
		return s.GetUser(ctx, id)
	}

	name := strings.TrimSpace(*req.Name)
	if name == "" {
		return nil, core.ValidationError("name must not be blank",
			core.FieldError{Field: "name", Message: "name must not be blank"})
	}

	return s.repo.UpdateName(ctx, id, name)
}

// UpdateUserRole is admin-only; an admin cannot demote themself, which
// keeps at least the acting admin in place.
func (s *Service) UpdateUserRole(
	ctx context.Context,
	actorID, id, role string,
) (*User, error) {
	parsed, ok := authz.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	if actorID == id && parsed != authz.RoleAdmin {
		return nil, core.ForbiddenError("admins cannot demote themselves")
	}

	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	return s.repo.UpdateRole(ctx, id, parsed)
}

func (s *Service) SetUserActive(
	ctx context.Context,
	actorID, id string,
	active bool,
) (*User, error) {
	if actorID == id && !active {
		return nil, core.ForbiddenError("admins cannot deactivate themselves")
	}

	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	return s.repo.SetActive(ctx, id, active)
}

// SetUserVerified records that an admin confirmed the account's identity.
func (s *Service) SetUserVerified(
	ctx context.Context,
	id string,
	verified bool,
) (*User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	return s.repo.SetVerified(ctx, id, verified)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	if params.Role != "" {
		if _, ok := authz.ParseRole(params.Role); !ok {
			return nil, 0, core.ValidationError("invalid role filter",
				core.FieldError{Field: "role", Message: "role must be one of student, faculty, admin"})
		}
	}
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.GetUser(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, userID, req)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		PasswordHash:      derefString(u.PasswordHash),
		Role:              string(u.Role),
		Active:            u.IsActive,
		RefreshTokenHash:  derefString(u.RefreshTokenHash),
		LockUntil:         u.LockUntil,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
	}
}

var (
	_ auth.UserProvider     = (*Service)(nil)
	_ middleware.UserLoader = (*Service)(nil)
)
