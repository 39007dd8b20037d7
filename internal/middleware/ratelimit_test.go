// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/portfolio-backend/internal/authz"
)

func limited(cfg RateLimitConfig) http.Handler {
	return NewRateLimiter(nil, cfg).Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func fromAddr(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/achievements", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiterLocalFallback(t *testing.T) {
	h := limited(RateLimitConfig{Name: "test", Limit: PerHour(1, 2)})

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, fromAddr("10.0.0.1:5000"))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, fromAddr("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, fromAddr("10.0.0.2:5000"))
	assert.Equal(t, http.StatusNoContent, rec.Code, "other clients keep their own bucket")
}

func TestRateLimiterUnconfiguredFailsOpen(t *testing.T) {
	open := limited(RateLimitConfig{FailOpen: true})
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, fromAddr("10.0.0.1:5000"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	closed := limited(RateLimitConfig{})
	rec = httptest.NewRecorder()
	closed.ServeHTTP(rec, fromAddr("10.0.0.1:5000"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestKeyByUser(t *testing.T) {
	req := fromAddr("192.0.2.7:443")
	assert.Equal(t, "ip:192.0.2.7", KeyByUser(req))

	ctx := WithCurrentUser(req.Context(), &CurrentUser{ID: "u1", Role: authz.RoleStudent, Active: true}, nil)
	assert.Equal(t, "user:u1", KeyByUser(req.WithContext(ctx)))
}

func TestLocalBucketsSweepIdleEntries(t *testing.T) {
	l := newLocalBuckets(PerMinute(60, 1))
	start := time.Now()

	_, err := l.allow("a", start)
	require.NoError(t, err)
	require.Len(t, l.buckets, 1)

	later := start.Add(2 * localIdleTTL)
	_, err = l.allow("b", later)
	require.NoError(t, err)

	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "b")
}
