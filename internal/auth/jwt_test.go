// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/portfolio-backend/internal/config"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
	"github.com/carterperez-dev/portfolio-backend/internal/middleware"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
		Issuer:             "achievement-portfolio",
		Audience:           []string{"student", "faculty", "admin"},
	}
}

func newTestManager(t *testing.T, cfg config.JWTConfig) *JWTManager {
	t.Helper()

	access, err := GenerateKey()
	require.NoError(t, err)
	refresh, err := GenerateKey()
	require.NoError(t, err)

	m, err := NewJWTManagerFromKeys(cfg, access, refresh)
	require.NoError(t, err)
	return m
}

var testSubject = middleware.TokenSubject{
	UserID: "6f1c2a4e-0b7d-4c55-9a43-1d2f3e4a5b6c",
	Email:  "ada@example.edu",
	Role:   "student",
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t, testJWTConfig())

	token, expiresAt, err := m.Issue(testSubject, middleware.AccessToken)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := m.Verify(context.Background(), token, middleware.AccessToken)
	require.NoError(t, err)

	assert.Equal(t, testSubject.UserID, claims.UserID)
	assert.Equal(t, testSubject.Email, claims.Email)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, middleware.AccessToken, claims.Kind)
	assert.NotEmpty(t, claims.JTI)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func TestIssuePairUsesDistinctKeys(t *testing.T) {
	m := newTestManager(t, testJWTConfig())

	pair, err := m.IssuePair(testSubject)
	require.NoError(t, err)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	_, err = m.Verify(context.Background(), pair.RefreshToken, middleware.RefreshToken)
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), pair.AccessToken, middleware.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = m.Verify(context.Background(), pair.RefreshToken, middleware.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := newTestManager(t, testJWTConfig())

	token, _, err := m.Issue(testSubject, middleware.AccessToken)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err = m.Verify(context.Background(), token, middleware.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	cfg := testJWTConfig()
	m := newTestManager(t, cfg)

	other := *m
	other.issuer = "someone-else"

	token, _, err := other.Issue(testSubject, middleware.AccessToken)
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), token, middleware.AccessToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTokenIssuer)
}

func TestVerifyRequiresRoleInAudience(t *testing.T) {
	m := newTestManager(t, testJWTConfig())

	subject := testSubject
	subject.Role = "guest"
	token, _, err := m.Issue(subject, middleware.AccessToken)
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), token, middleware.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenAudience)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := newTestManager(t, testJWTConfig())

	_, err := m.Verify(context.Background(), "not.a.token", middleware.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)

	_, err = m.Verify(context.Background(), "", middleware.TokenKind("session"))
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestGenerateKeyPairRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := testJWTConfig()
	cfg.AccessPrivateKeyPath = filepath.Join(dir, "access_private.pem")
	cfg.AccessPublicKeyPath = filepath.Join(dir, "access_public.pem")
	cfg.RefreshPrivateKeyPath = filepath.Join(dir, "refresh_private.pem")
	cfg.RefreshPublicKeyPath = filepath.Join(dir, "refresh_public.pem")

	require.NoError(t, GenerateKeyPair(cfg.AccessPrivateKeyPath, cfg.AccessPublicKeyPath))
	require.NoError(t, GenerateKeyPair(cfg.RefreshPrivateKeyPath, cfg.RefreshPublicKeyPath))

	m, err := NewJWTManager(cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, m.GetKeyID())
	assert.Equal(t, 15*time.Minute, m.AccessTokenTTL())
	assert.Equal(t, 7*24*time.Hour, m.RefreshTokenTTL())

	token, _, err := m.Issue(testSubject, middleware.AccessToken)
	require.NoError(t, err)
	_, err = m.Verify(context.Background(), token, middleware.AccessToken)
	assert.NoError(t, err)
}

func TestJWKSHandlerPublishesAccessKey(t *testing.T) {
	m := newTestManager(t, testJWTConfig())

	rec := httptest.NewRecorder()
	m.GetJWKSHandler()(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Keys, 1)
	assert.Equal(t, m.GetKeyID(), body.Keys[0]["kid"])
	assert.Equal(t, "EC", body.Keys[0]["kty"])
	assert.NotContains(t, body.Keys[0], "d")
}
