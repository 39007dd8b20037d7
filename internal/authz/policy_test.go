// AngelaMos | 2026
// policy_test.go

package authz

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
		ok    bool
	}{
		{"student", RoleStudent, true},
		{"faculty", RoleFaculty, true},
		{"admin", RoleAdmin, true},
		{"Admin", "", false},
		{" student", "", false},
		{"", "", false},
		{"moderator", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRole(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		allowed   RoleSet
		wantErr   error
		status    int
	}{
		{
			name:      "faculty is a reviewer",
			principal: &Principal{ID: "f1", Role: RoleFaculty},
			allowed:   Reviewers,
		},
		{
			name:      "admin is a reviewer",
			principal: &Principal{ID: "a1", Role: RoleAdmin},
			allowed:   Reviewers,
		},
		{
			name:      "student is not a reviewer",
			principal: &Principal{ID: "s1", Role: RoleStudent},
			allowed:   Reviewers,
			wantErr:   core.ErrForbidden,
			status:    http.StatusForbidden,
		},
		{
			name:      "unknown role denied",
			principal: &Principal{ID: "x", Role: Role("root")},
			allowed:   NewRoleSet(AllRoles...),
			wantErr:   core.ErrForbidden,
			status:    http.StatusForbidden,
		},
		{
			name:    "missing principal is unauthenticated",
			allowed: Reviewers,
			wantErr: core.ErrUnauthorized,
			status:  http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireRole(tt.principal, tt.allowed)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Equal(t, tt.status, core.ToAppError(err).StatusCode)
		})
	}
}

func TestRoleSetString(t *testing.T) {
	set := NewRoleSet(RoleFaculty, RoleAdmin, RoleFaculty)
	assert.Equal(t, "faculty, admin", set.String())
	assert.True(t, RoleAdmin.IsReviewer())
	assert.False(t, RoleStudent.IsReviewer())
}
