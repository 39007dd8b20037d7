// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/portfolio-backend/internal/authz"
)

type User struct {
	ID                string     `db:"id"`
	Email             string     `db:"email"`
	PasswordHash      *string    `db:"password_hash"`
	Name              string     `db:"name"`
	Role              authz.Role `db:"role"`
	IsActive          bool       `db:"is_active"`
	IsVerified        bool       `db:"is_verified"`
	RefreshTokenHash  *string    `db:"refresh_token_hash"`
	PasswordChangedAt *time.Time `db:"password_changed_at"`
	FailedLoginCount  int        `db:"failed_login_count"`
	LockUntil         *time.Time `db:"lock_until"`
	LastLoginAt       *time.Time `db:"last_login_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
