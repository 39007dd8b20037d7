// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/portfolio-backend/internal/config"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
)

const blacklistPrefix = "blacklist:"

type UserInfo struct {
	ID                string
	Email             string
	Name              string
	PasswordHash      string
	Role              string
	Active            bool
	RefreshTokenHash  string
	LockUntil         *time.Time
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
}

func (u *UserInfo) subject() middleware.TokenSubject {
	return middleware.TokenSubject{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// UserProvider is the Credential Store as seen by authentication flows.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, name, role string,
	) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	ChangePassword(ctx context.Context, userID, passwordHash string) error
	SetRefreshTokenHash(ctx context.Context, userID, hash string) error
	RecordFailedLogin(
		ctx context.Context,
		userID string,
		maxAttempts int,
		lockFor time.Duration,
	) (*time.Time, error)
	RecordSuccessfulLogin(ctx context.Context, userID string) error
}

type Service struct {
	jwt          *JWTManager
	userProvider UserProvider
	redis        redis.Cmdable
	security     config.SecurityConfig
	now          func() time.Time
}

func NewService(
	jwt *JWTManager,
	userProvider UserProvider,
	redisClient redis.Cmdable,
	security config.SecurityConfig,
) *Service {
	return &Service{
		jwt:          jwt,
		userProvider: userProvider,
		redis:        redisClient,
		security:     security,
		now:          time.Now,
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.LockUntil != nil && user.LockUntil.After(s.now()) {
		return nil, core.AccountLockedError()
	}

	var stored *string
	if user.PasswordHash != "" {
		stored = &user.PasswordHash
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(req.Password, stored)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		if stored != nil {
			s.recordFailure(ctx, user.ID)
		}
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, core.AccountDeactivatedError()
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.userProvider.UpdatePassword(ctx, user.ID, newHash)
	}

	if err := s.userProvider.RecordSuccessfulLogin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	return s.startSession(ctx, user)
}

func (s *Service) recordFailure(ctx context.Context, userID string) {
	lockUntil, err := s.userProvider.RecordFailedLogin(
		ctx,
		userID,
		s.security.MaxFailedLogins,
		s.security.LockDuration,
	)
	if err != nil {
		slog.WarnContext(ctx, "failed to record failed login",
			"user_id", userID,
			"error", err,
		)
		return
	}
	if lockUntil != nil && lockUntil.After(s.now()) {
		slog.WarnContext(ctx, "account locked after repeated failures",
			"user_id", userID,
			"lock_until", lockUntil,
		)
	}
}

// Register creates student or faculty accounts. Admins are provisioned by
// promoting an existing account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	role := req.Role
	if role == "" {
		role = "student"
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, req.Email, passwordHash, req.Name, role)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.startSession(ctx, user)
}

// Refresh exchanges a refresh token for a new pair. Only the most recently
// issued refresh token is accepted.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.jwt.Verify(ctx, refreshToken, middleware.RefreshToken)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
	}

	user, err := s.userProvider.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.Active {
		return nil, core.AccountDeactivatedError()
	}

	if user.RefreshTokenHash == "" ||
		!core.CompareTokenHash(refreshToken, user.RefreshTokenHash) {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	}

	return s.startSession(ctx, user)
}

// Logout drops the stored refresh reference and blacklists the presented
// access token until it would have expired anyway.
func (s *Service) Logout(
	ctx context.Context,
	userID string,
	claims *middleware.TokenClaims,
) error {
	if err := s.userProvider.SetRefreshTokenHash(ctx, userID, ""); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	if claims != nil && claims.Kind == middleware.AccessToken && claims.JTI != "" {
		if err := s.RevokeAccessToken(ctx, claims.JTI, claims.ExpiresAt); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	if s.redis == nil {
		return nil
	}

	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, blacklistPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

// IsAccessTokenRevoked satisfies middleware.RevocationChecker.
func (s *Service) IsAccessTokenRevoked(
	ctx context.Context,
	jti string,
) (bool, error) {
	if s.redis == nil {
		return false, nil
	}

	exists, err := s.redis.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

// ChangePassword stamps the change time, which invalidates every token
// issued earlier, then starts a fresh session for the caller.
func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) (*Session, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	valid, err := core.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if currentPassword == newPassword {
		return nil, core.ValidationError(
			"new password must differ from the current password",
			core.FieldError{Field: "newPassword", Message: "must differ from the current password"},
		)
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.ChangePassword(ctx, userID, newHash); err != nil {
		return nil, fmt.Errorf("change password: %w", err)
	}

	return s.startSession(ctx, user)
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// startSession issues a pair and stores the refresh reference, replacing
// whatever was stored before.
func (s *Service) startSession(ctx context.Context, user *UserInfo) (*Session, error) {
	pair, err := s.jwt.IssuePair(user.subject())
	if err != nil {
		return nil, err
	}

	if err := s.userProvider.SetRefreshTokenHash(
		ctx,
		user.ID,
		core.HashToken(pair.RefreshToken),
	); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		Pair: pair,
		Response: AuthResponse{
			User: toUserResponse(user),
			Tokens: TokenResponse{
				AccessToken:  pair.AccessToken,
				RefreshToken: pair.RefreshToken,
				TokenType:    "Bearer",
				ExpiresIn:    int(pair.AccessExpiresAt.Sub(s.now()).Seconds()),
				ExpiresAt:    pair.AccessExpiresAt,
			},
		},
	}, nil
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

var _ middleware.RevocationChecker = (*Service)(nil)
