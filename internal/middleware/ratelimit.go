// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

const keyPrefix = "ratelimit:"

// KeyFunc derives the bucket a request is counted against.
type KeyFunc func(*http.Request) string

type RateLimitConfig struct {
	// Name separates buckets of limiters sharing a key space.
	Name     string
	Limit    redis_rate.Limit
	KeyFunc  KeyFunc
	FailOpen bool
}

// RateLimiter counts in Redis and degrades to in-process token buckets
// when Redis is missing or failing.
type RateLimiter struct {
	remote *redis_rate.Limiter
	local  *localBuckets
	cfg    RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Name == "" {
		cfg.Name = "global"
	}

	rl := &RateLimiter{
		local: newLocalBuckets(cfg.Limit),
		cfg:   cfg,
	}
	if rdb != nil {
		rl.remote = redis_rate.NewLimiter(rdb)
	}
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyPrefix + rl.cfg.Name + ":" + rl.cfg.KeyFunc(r)

		res, err := rl.allow(r.Context(), key)
		if err != nil {
			if rl.cfg.FailOpen {
				slog.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					"limiter", rl.cfg.Name,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSON(w, http.StatusServiceUnavailable, core.ErrorResponse{
				Message: "rate limiter unavailable",
				Code:    "SERVICE_UNAVAILABLE",
			})
			return
		}

		writeLimitHeaders(w.Header(), rl.cfg.Limit, res)

		if res.Allowed == 0 {
			retry := max(int(res.RetryAfter.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			core.JSON(w, http.StatusTooManyRequests, core.ErrorResponse{
				Message: fmt.Sprintf("too many requests, retry in %d seconds", retry),
				Code:    "RATE_LIMITED",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (*redis_rate.Result, error) {
	if rl.remote != nil {
		res, err := rl.remote.Allow(ctx, key, rl.cfg.Limit)
		if err == nil {
			return res, nil
		}
		slog.DebugContext(ctx, "redis rate limit failed, using local bucket", "error", err)
	}
	return rl.local.allow(key, time.Now())
}

// KeyByIP expects chi's RealIP middleware to have rewritten RemoteAddr.
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// KeyByUser falls back to the client address before the gate has run.
func KeyByUser(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return "user:" + id
	}
	return KeyByIP(r)
}

func writeLimitHeaders(h http.Header, limit redis_rate.Limit, res *redis_rate.Result) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
}

// localBuckets sweeps idle entries inline instead of running a janitor
// goroutine per limiter.
type localBuckets struct {
	mu        sync.Mutex
	limit     redis_rate.Limit
	buckets   map[string]*localBucket
	lastSweep time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const localIdleTTL = 10 * time.Minute

func newLocalBuckets(limit redis_rate.Limit) *localBuckets {
	return &localBuckets{
		limit:     limit,
		buckets:   make(map[string]*localBucket),
		lastSweep: time.Now(),
	}
}

func (l *localBuckets) allow(key string, now time.Time) (*redis_rate.Result, error) {
	if l.limit.Period <= 0 || l.limit.Rate <= 0 {
		return nil, fmt.Errorf("rate limit %q is not configured", key)
	}
	perSecond := float64(l.limit.Rate) / l.limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSecond)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > localIdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > localIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), max(l.limit.Burst, 1))}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := &redis_rate.Result{Limit: l.limit, ResetAfter: interval, RetryAfter: -1}
	if b.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = int(b.limiter.TokensAt(now))
	return res, nil
}

// PerUserLimiter builds a named limiter keyed on the authenticated caller.
func PerUserLimiter(
	rdb *redis.Client,
	name string,
	limit redis_rate.Limit,
) func(http.Handler) http.Handler {
	return NewRateLimiter(rdb, RateLimitConfig{
		Name:     name,
		Limit:    limit,
		KeyFunc:  KeyByUser,
		FailOpen: true,
	}).Handler
}

func PerWindow(n, burst int, window time.Duration) redis_rate.Limit {
	return redis_rate.Limit{Rate: n, Burst: burst, Period: window}
}

func PerMinute(n, burst int) redis_rate.Limit {
	return PerWindow(n, burst, time.Minute)
}

func PerHour(n, burst int) redis_rate.Limit {
	return PerWindow(n, burst, time.Hour)
}
