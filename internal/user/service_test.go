// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/portfolio-backend/internal/authz"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

type memRepo struct {
	users map[string]*User
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*User)}
}

func (r *memRepo) Create(_ context.Context, u *User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return core.ErrDuplicateKey
		}
	}
	u.IsActive = true
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	r.users[u.ID] = &stored
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *memRepo) mutate(id string, fn func(u *User)) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	fn(u)
	copied := *u
	return &copied, nil
}

func (r *memRepo) UpdateName(_ context.Context, id, name string) (*User, error) {
	return r.mutate(id, func(u *User) { u.Name = name })
}

func (r *memRepo) UpdateRole(_ context.Context, id string, role authz.Role) (*User, error) {
	return r.mutate(id, func(u *User) { u.Role = role })
}

func (r *memRepo) SetActive(_ context.Context, id string, active bool) (*User, error) {
	return r.mutate(id, func(u *User) { u.IsActive = active })
}

func (r *memRepo) SetVerified(_ context.Context, id string, verified bool) (*User, error) {
	return r.mutate(id, func(u *User) { u.IsVerified = verified })
}

func (r *memRepo) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	_, err := r.mutate(id, func(u *User) { u.PasswordHash = &passwordHash })
	return err
}

func (r *memRepo) ChangePassword(_ context.Context, id, passwordHash string) error {
	now := time.Now()
	_, err := r.mutate(id, func(u *User) {
		u.PasswordHash = &passwordHash
		u.PasswordChangedAt = &now
	})
	return err
}

func (r *memRepo) SetRefreshTokenHash(_ context.Context, id string, hash *string) error {
	_, err := r.mutate(id, func(u *User) { u.RefreshTokenHash = hash })
	return err
}

func (r *memRepo) RecordFailedLogin(
	_ context.Context,
	id string,
	maxAttempts int,
	lockFor time.Duration,
) (*time.Time, error) {
	u, err := r.mutate(id, func(u *User) {
		u.FailedLoginCount++
		if u.FailedLoginCount >= maxAttempts {
			until := time.Now().Add(lockFor)
			u.LockUntil = &until
		}
	})
	if err != nil {
		return nil, err
	}
	return u.LockUntil, nil
}

func (r *memRepo) RecordSuccessfulLogin(_ context.Context, id string) error {
	_, err := r.mutate(id, func(u *User) {
		now := time.Now()
		u.FailedLoginCount = 0
		u.LockUntil = nil
		u.LastLoginAt = &now
	})
	return err
}

func (r *memRepo) List(_ context.Context, params ListUsersParams) ([]User, int, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		if params.Role != "" && string(u.Role) != params.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func seedUser(t *testing.T, svc *Service, email, role string) string {
	t.Helper()
	info, err := svc.Create(context.Background(), email, "hash", "  Grace Hopper ", role)
	require.NoError(t, err)
	return info.ID
}

func TestCreateNormalizes(t *testing.T) {
	svc := NewService(newMemRepo())

	info, err := svc.Create(context.Background(), " Grace@Example.EDU ", "hash", "  Grace Hopper ", "faculty")
	require.NoError(t, err)

	assert.Equal(t, "grace@example.edu", info.Email)
	assert.Equal(t, "Grace Hopper", info.Name)
	assert.Equal(t, "faculty", info.Role)
	assert.True(t, info.Active)

	found, err := svc.GetByEmail(context.Background(), "GRACE@example.edu")
	require.NoError(t, err)
	assert.Equal(t, info.ID, found.ID)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Create(context.Background(), "x@example.edu", "hash", "X", "superuser")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.LoadCurrentUser(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.GetUser(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLoadCurrentUser(t *testing.T) {
	svc := NewService(newMemRepo())
	id := seedUser(t, svc, "ada@example.edu", "student")
	require.NoError(t, svc.SetRefreshTokenHash(context.Background(), id, "abc"))

	current, err := svc.LoadCurrentUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleStudent, current.Role)
	assert.True(t, current.Active)
	assert.Equal(t, "abc", current.RefreshTokenHash)

	require.NoError(t, svc.SetRefreshTokenHash(context.Background(), id, ""))
	current, err = svc.LoadCurrentUser(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, current.RefreshTokenHash)
}

func TestContactEmail(t *testing.T) {
	svc := NewService(newMemRepo())
	id := seedUser(t, svc, "ada@example.edu", "student")

	email, name, err := svc.ContactEmail(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.edu", email)
	assert.Equal(t, "Grace Hopper", name)
}

func TestAdminCannotDemoteOrDeactivateThemself(t *testing.T) {
	svc := NewService(newMemRepo())
	adminID := seedUser(t, svc, "admin@example.edu", "admin")
	studentID := seedUser(t, svc, "ada@example.edu", "student")

	_, err := svc.UpdateUserRole(context.Background(), adminID, adminID, "faculty")
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = svc.SetUserActive(context.Background(), adminID, adminID, false)
	assert.ErrorIs(t, err, core.ErrForbidden)

	promoted, err := svc.UpdateUserRole(context.Background(), adminID, studentID, "faculty")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleFaculty, promoted.Role)

	deactivated, err := svc.SetUserActive(context.Background(), adminID, studentID, false)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)
}

func TestUpdateMe(t *testing.T) {
	svc := NewService(newMemRepo())
	id := seedUser(t, svc, "ada@example.edu", "student")

	blank := "   "
	_, err := svc.UpdateMe(context.Background(), id, UpdateUserRequest{Name: &blank})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	name := " Ada King "
	updated, err := svc.UpdateMe(context.Background(), id, UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada King", updated.Name)

	_, err = svc.UpdateMe(context.Background(), "", UpdateUserRequest{})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestListUsersRejectsUnknownRole(t *testing.T) {
	svc := NewService(newMemRepo())
	seedUser(t, svc, "ada@example.edu", "student")

	_, _, err := svc.ListUsers(context.Background(), ListUsersParams{Role: "janitor"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	users, total, err := svc.ListUsers(context.Background(), ListUsersParams{Role: "student"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, users, 1)
}

func TestListUsersParamsNormalize(t *testing.T) {
	p := ListUsersParams{Page: 0, Limit: 500}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.Limit)

	p = ListUsersParams{Page: 3, Limit: 0}
	p.Normalize()
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 40, p.Offset())
}
