// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/portfolio-backend/internal/achievement"
	"github.com/carterperez-dev/portfolio-backend/internal/core"
)

// AchievementCounter reports how many achievements sit in each review state.
type AchievementCounter interface {
	StatusCounts(ctx context.Context) (map[achievement.Status]int64, error)
}

type Handler struct {
	dbStats      func() sql.DBStats
	redisStats   func() *redis.PoolStats
	dbPing       func(ctx context.Context) error
	redisPing    func(ctx context.Context) error
	mongoPing    func(ctx context.Context) error
	achievements AchievementCounter
}

type HandlerConfig struct {
	DBStats      func() sql.DBStats
	RedisStats   func() *redis.PoolStats
	DBPing       func(ctx context.Context) error
	RedisPing    func(ctx context.Context) error
	MongoPing    func(ctx context.Context) error
	Achievements AchievementCounter
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:      cfg.DBStats,
		redisStats:   cfg.RedisStats,
		dbPing:       cfg.DBPing,
		redisPing:    cfg.RedisPing,
		mongoPing:    cfg.MongoPing,
		achievements: cfg.Achievements,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/achievements", h.GetAchievementStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: pingOK(ctx, h.dbPing),
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: pingOK(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		},
		Mongo: MongoStatus{
			Healthy: pingOK(ctx, h.mongoPing),
		},
		Runtime: readRuntimeStats(),
	}

	if counts, err := h.countAchievements(ctx); err != nil {
		slog.WarnContext(ctx, "achievement counts unavailable", "error", err)
	} else {
		response.Achievements = counts
	}

	core.OK(w, response)
}

func (h *Handler) GetAchievementStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.countAchievements(r.Context())
	if err != nil {
		core.HandleError(w, r, err)
		return
	}

	core.OK(w, counts)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, readRuntimeStats())
}

func pingOK(ctx context.Context, ping func(context.Context) error) bool {
	if ping == nil {
		return false
	}
	return ping(ctx) == nil
}

func (h *Handler) countAchievements(ctx context.Context) (*AchievementCounts, error) {
	if h.achievements == nil {
		return nil, core.NotFoundError("achievement statistics")
	}

	byStatus, err := h.achievements.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	counts := &AchievementCounts{
		Pending:  byStatus[achievement.StatusPending],
		Approved: byStatus[achievement.StatusApproved],
		Rejected: byStatus[achievement.StatusRejected],
	}
	counts.Total = counts.Pending + counts.Approved + counts.Rejected
	return counts, nil
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

type SystemStatsResponse struct {
	Database     DatabaseStatus     `json:"database"`
	Redis        RedisStatus        `json:"redis"`
	Mongo        MongoStatus        `json:"mongo"`
	Achievements *AchievementCounts `json:"achievements,omitempty"`
	Runtime      RuntimeStats       `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type MongoStatus struct {
	Healthy bool `json:"healthy"`
}

type AchievementCounts struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"maxOpenConnections"`
	OpenConnections    int    `json:"openConnections"`
	InUse              int    `json:"inUse"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"waitCount"`
	WaitDuration       string `json:"waitDuration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"totalConns"`
	IdleConns  uint32 `json:"idleConns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
	NumCPU       int    `json:"numCpu"`
	MemAlloc     uint64 `json:"memAllocBytes"`
	MemSys       uint64 `json:"memSysBytes"`
	NumGC        uint32 `json:"numGc"`
}
