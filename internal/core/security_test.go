// AngelaMos | 2026
// security_test.go

package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("anything", "not-a-hash")
	assert.Error(t, err)
}

func TestVerifyPasswordTimingSafe(t *testing.T) {
	hash, err := HashPassword("secret-password")
	require.NoError(t, err)

	ok, rehash, err := VerifyPasswordTimingSafe("secret-password", &hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, rehash)

	ok, _, err = VerifyPasswordTimingSafe("secret-password", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	empty := ""
	ok, _, err = VerifyPasswordTimingSafe("secret-password", &empty)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenHash(t *testing.T) {
	hash := HashToken("refresh-token")

	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashToken("refresh-token"))
	assert.True(t, CompareTokenHash("refresh-token", hash))
	assert.False(t, CompareTokenHash("other-token", hash))
	assert.False(t, CompareTokenHash("refresh-token", ""))
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 25, Pages: 3}, NewPagination(1, 10, 25))
	assert.Equal(t, 0, NewPagination(1, 10, 0).Pages)
	assert.Equal(t, 0, NewPagination(1, 0, 5).Pages)
}

func TestJSONErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()

	JSONError(rec, ConflictError("achievement has already been reviewed"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t,
		`{"success":false,"message":"achievement has already been reviewed","code":"CONFLICT"}`,
		rec.Body.String(),
	)
}
