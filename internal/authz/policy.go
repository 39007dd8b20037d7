// AngelaMos | 2026
// policy.go

// Package authz is the role capability check shared by every route. It has
// no I/O: callers pass an already resolved principal. Resource ownership is
// not a role question and is decided by the owning domain package.
package authz

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

var AllRoles = []Role{RoleStudent, RoleFaculty, RoleAdmin}

// Reviewers may approve or reject achievements.
var Reviewers = NewRoleSet(RoleFaculty, RoleAdmin)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsReviewer() bool {
	return Reviewers.Contains(r)
}

// Principal is the resolved caller.
type Principal struct {
	ID    string
	Email string
	Role  Role
}

type RoleSet struct {
	roles map[Role]struct{}
	names []string
}

func NewRoleSet(roles ...Role) RoleSet {
	set := RoleSet{roles: make(map[Role]struct{}, len(roles))}
	for _, r := range roles {
		if _, dup := set.roles[r]; dup {
			continue
		}
		set.roles[r] = struct{}{}
		set.names = append(set.names, string(r))
	}
	return set
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s.roles[r]
	return ok
}

func (s RoleSet) String() string {
	return strings.Join(s.names, ", ")
}

// RequireRole fails with a Forbidden AppError unless p holds one of allowed.
func RequireRole(p *Principal, allowed RoleSet) error {
	if p == nil || p.ID == "" {
		return core.UnauthorizedError("")
	}

	if !allowed.Contains(p.Role) {
		return core.NewAppError(
			fmt.Errorf("role %q not in [%s]: %w", p.Role, allowed, core.ErrForbidden),
			"insufficient permissions",
			http.StatusForbidden,
			"FORBIDDEN",
		)
	}

	return nil
}
