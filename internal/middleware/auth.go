// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/portfolio-backend/internal/authz"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

const (
	UserIDKey      contextKey = "user_id"
	ClaimsKey      contextKey = "jwt_claims"
	CurrentUserKey contextKey = "current_user"
)

const (
	LegacyTokenHeader  = "X-Access-Token"
	RefreshTokenHeader = "X-Refresh-Token"
	NewTokenHeader     = "X-New-Token"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// TokenSubject is what gets embedded into a token.
type TokenSubject struct {
	UserID string
	Email  string
	Role   string
}

type TokenClaims struct {
	UserID    string
	Email     string
	Role      string
	Kind      TokenKind
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string, kind TokenKind) (*TokenClaims, error)
	Issue(subject TokenSubject, kind TokenKind) (string, time.Time, error)
}

// CurrentUser is the read-only view of the credential store the gate needs.
type CurrentUser struct {
	ID                string
	Email             string
	Name              string
	Role              authz.Role
	Active            bool
	RefreshTokenHash  string
	PasswordChangedAt *time.Time
}

func (u *CurrentUser) Principal() *authz.Principal {
	return &authz.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

type UserLoader interface {
	LoadCurrentUser(ctx context.Context, id string) (*CurrentUser, error)
}

// RevocationChecker reports access tokens revoked before expiry (logout).
type RevocationChecker interface {
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type GateConfig struct {
	AccessCookie  string
	RefreshCookie string
	Revocations   RevocationChecker
}

// Authenticator resolves the caller before any protected handler runs. It
// only reads: user state is never written from here.
func Authenticator(
	verifier TokenVerifier,
	users UserLoader,
	cfg GateConfig,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r, cfg.AccessCookie)
			if token == "" {
				core.HandleError(w, r, core.UnauthorizedError("authentication required"))
				return
			}

			claims, refreshed, err := verifyWithRefresh(r, verifier, token, cfg)
			if err != nil {
				core.HandleError(w, r, err)
				return
			}

			if !refreshed && cfg.Revocations != nil && claims.JTI != "" {
				revoked, revErr := cfg.Revocations.IsAccessTokenRevoked(r.Context(), claims.JTI)
				if revErr != nil {
					core.HandleError(w, r, fmt.Errorf("check revocation: %w", revErr))
					return
				}
				if revoked {
					core.HandleError(w, r, core.TokenRevokedError())
					return
				}
			}

			user, err := users.LoadCurrentUser(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, core.ErrNotFound) {
					core.HandleError(w, r, core.NewAppError(
						core.ErrUnauthorized,
						"user no longer exists",
						http.StatusUnauthorized,
						"USER_NOT_FOUND",
					))
					return
				}
				core.HandleError(w, r, err)
				return
			}

			if !user.Active {
				core.HandleError(w, r, core.AccountDeactivatedError())
				return
			}

			if issuedBeforePasswordChange(claims, user) {
				core.HandleError(w, r, core.TokenRevokedError())
				return
			}

			if refreshed {
				refreshToken := extractRefreshToken(r, cfg.RefreshCookie)
				if user.RefreshTokenHash == "" ||
					!core.CompareTokenHash(refreshToken, user.RefreshTokenHash) {
					core.HandleError(w, r, core.AuthFailedError("refresh token has been revoked"))
					return
				}

				newToken, _, issueErr := verifier.Issue(TokenSubject{
					UserID: user.ID,
					Email:  user.Email,
					Role:   string(user.Role),
				}, AccessToken)
				if issueErr != nil {
					core.HandleError(w, r, fmt.Errorf("issue access token: %w", issueErr))
					return
				}
				w.Header().Set(NewTokenHeader, newToken)
			}

			next.ServeHTTP(w, r.WithContext(WithCurrentUser(r.Context(), user, claims)))
		})
	}
}

func verifyWithRefresh(
	r *http.Request,
	verifier TokenVerifier,
	token string,
	cfg GateConfig,
) (*TokenClaims, bool, error) {
	claims, err := verifier.Verify(r.Context(), token, AccessToken)
	if err == nil {
		return claims, false, nil
	}

	if !errors.Is(err, core.ErrTokenExpired) {
		return nil, false, core.AuthFailedError("invalid access token")
	}

	refreshToken := extractRefreshToken(r, cfg.RefreshCookie)
	if refreshToken == "" {
		return nil, false, core.NewAppError(
			core.ErrTokenExpired,
			"access token has expired",
			http.StatusUnauthorized,
			"AUTH_FAILED",
		)
	}

	refreshClaims, err := verifier.Verify(r.Context(), refreshToken, RefreshToken)
	if err != nil {
		return nil, false, core.AuthFailedError("session has expired")
	}

	return refreshClaims, true, nil
}

func issuedBeforePasswordChange(claims *TokenClaims, user *CurrentUser) bool {
	if user.PasswordChangedAt == nil || claims.IssuedAt.IsZero() {
		return false
	}
	// iat has second precision
	return claims.IssuedAt.Before(user.PasswordChangedAt.Truncate(time.Second))
}

// WithCurrentUser attaches the resolved caller to ctx.
func WithCurrentUser(
	ctx context.Context,
	user *CurrentUser,
	claims *TokenClaims,
) context.Context {
	ctx = context.WithValue(ctx, CurrentUserKey, user)
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	if claims != nil {
		ctx = context.WithValue(ctx, ClaimsKey, claims)
	}
	return ctx
}

// RequireRole gates a route on the shared capability check.
func RequireRole(roles ...authz.Role) func(http.Handler) http.Handler {
	allowed := authz.NewRoleSet(roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authz.RequireRole(GetPrincipal(r.Context()), allowed); err != nil {
				core.HandleError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(authz.RoleAdmin)(next)
}

func RequireReviewer(next http.Handler) http.Handler {
	return RequireRole(authz.RoleFaculty, authz.RoleAdmin)(next)
}

// ExtractToken returns the first non-empty of: bearer header, access
// cookie, legacy header.
func ExtractToken(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}

	return strings.TrimSpace(r.Header.Get(LegacyTokenHeader))
}

func extractRefreshToken(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return strings.TrimSpace(r.Header.Get(RefreshTokenHeader))
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

func GetClaims(ctx context.Context) *TokenClaims {
	if claims, ok := ctx.Value(ClaimsKey).(*TokenClaims); ok {
		return claims
	}
	return nil
}

func GetCurrentUser(ctx context.Context) *CurrentUser {
	if user, ok := ctx.Value(CurrentUserKey).(*CurrentUser); ok {
		return user
	}
	return nil
}

func GetPrincipal(ctx context.Context) *authz.Principal {
	if user := GetCurrentUser(ctx); user != nil {
		return user.Principal()
	}
	return nil
}
