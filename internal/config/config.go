// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Mongo     MongoConfig     `koanf:"mongo"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Cookie    CookieConfig    `koanf:"cookie"`
	Security  SecurityConfig  `koanf:"security"`
	Storage   StorageConfig   `koanf:"storage"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Stats     StatsConfig     `koanf:"stats"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type MongoConfig struct {
	URI            string        `koanf:"uri"`
	Database       string        `koanf:"database"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MaxPoolSize    uint64        `koanf:"max_pool_size"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

// JWTConfig holds one key pair per token kind so a leaked refresh key
// cannot mint access tokens and vice versa.
type JWTConfig struct {
	AccessPrivateKeyPath  string        `koanf:"access_private_key_path"`
	AccessPublicKeyPath   string        `koanf:"access_public_key_path"`
	RefreshPrivateKeyPath string        `koanf:"refresh_private_key_path"`
	RefreshPublicKeyPath  string        `koanf:"refresh_public_key_path"`
	AccessTokenExpire     time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire    time.Duration `koanf:"refresh_token_expire"`
	Issuer                string        `koanf:"issuer"`
	Audience              []string      `koanf:"audience"`
}

type CookieConfig struct {
	AccessName  string `koanf:"access_name"`
	RefreshName string `koanf:"refresh_name"`
	Domain      string `koanf:"domain"`
	Secure      bool   `koanf:"secure"`
}

type SecurityConfig struct {
	MaxFailedLogins int           `koanf:"max_failed_logins"`
	LockDuration    time.Duration `koanf:"lock_duration"`
}

type StorageConfig struct {
	UploadDir     string `koanf:"upload_dir"`
	PublicBaseURL string `koanf:"public_base_url"`
	MaxFileSize   int64  `koanf:"max_file_size"`
	MaxFiles      int    `koanf:"max_files"`
}

type SMTPConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

type StatsConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	ExposedHeaders   []string `koanf:"exposed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Achievement Portfolio",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"mongo.database":        "portfolio",
		"mongo.connect_timeout": "10s",
		"mongo.max_pool_size":   50,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":      "15m",
		"jwt.refresh_token_expire":     "168h",
		"jwt.issuer":                   "achievement-portfolio",
		"jwt.audience":                 []string{"student", "faculty", "admin"},
		"jwt.access_private_key_path":  "keys/access_private.pem",
		"jwt.access_public_key_path":   "keys/access_public.pem",
		"jwt.refresh_private_key_path": "keys/refresh_private.pem",
		"jwt.refresh_public_key_path":  "keys/refresh_public.pem",

		"cookie.access_name":  "access_token",
		"cookie.refresh_name": "refresh_token",
		"cookie.secure":       false,

		"security.max_failed_logins": 5,
		"security.lock_duration":     "15m",

		"storage.upload_dir":      "uploads",
		"storage.public_base_url": "/uploads",
		"storage.max_file_size":   10 << 20,
		"storage.max_files":       5,

		"smtp.enabled": false,
		"smtp.port":    587,
		"smtp.from":    "Achievement Portfolio <noreply@localhost>",

		"stats.cache_ttl": "5m",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Access-Token",
			"X-Refresh-Token",
		},
		"cors.exposed_headers":   []string{"X-New-Token", "X-Request-ID"},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "achievement-portfolio",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                 "database.url",
	"DATABASE_AUTO_MIGRATE":        "database.auto_migrate",
	"MONGO_URI":                    "mongo.uri",
	"MONGO_DATABASE":               "mongo.database",
	"REDIS_URL":                    "redis.url",
	"ENVIRONMENT":                  "app.environment",
	"HOST":                         "server.host",
	"PORT":                         "server.port",
	"LOG_LEVEL":                    "log.level",
	"LOG_FORMAT":                   "log.format",
	"JWT_ACCESS_PRIVATE_KEY_PATH":  "jwt.access_private_key_path",
	"JWT_ACCESS_PUBLIC_KEY_PATH":   "jwt.access_public_key_path",
	"JWT_REFRESH_PRIVATE_KEY_PATH": "jwt.refresh_private_key_path",
	"JWT_REFRESH_PUBLIC_KEY_PATH":  "jwt.refresh_public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":      "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":     "jwt.refresh_token_expire",
	"JWT_ISSUER":                   "jwt.issuer",
	"COOKIE_DOMAIN":                "cookie.domain",
	"COOKIE_SECURE":                "cookie.secure",
	"SECURITY_MAX_FAILED_LOGINS":   "security.max_failed_logins",
	"SECURITY_LOCK_DURATION":       "security.lock_duration",
	"STORAGE_UPLOAD_DIR":           "storage.upload_dir",
	"STORAGE_PUBLIC_BASE_URL":      "storage.public_base_url",
	"STORAGE_MAX_FILE_SIZE":        "storage.max_file_size",
	"SMTP_ENABLED":                 "smtp.enabled",
	"SMTP_HOST":                    "smtp.host",
	"SMTP_PORT":                    "smtp.port",
	"SMTP_USERNAME":                "smtp.username",
	"SMTP_PASSWORD":                "smtp.password",
	"SMTP_FROM":                    "smtp.from",
	"STATS_CACHE_TTL":              "stats.cache_ttl",
	"RATE_LIMIT_REQUESTS":          "rate_limit.requests",
	"RATE_LIMIT_WINDOW":            "rate_limit.window",
	"RATE_LIMIT_BURST":             "rate_limit.burst",
	"OTEL_ENDPOINT":                "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT":  "otel.endpoint",
	"OTEL_SERVICE_NAME":            "otel.service_name",
	"OTEL_ENABLED":                 "otel.enabled",
	"OTEL_INSECURE":                "otel.insecure",
	"OTEL_SAMPLE_RATE":             "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.AccessPrivateKeyPath == "" || c.JWT.RefreshPrivateKeyPath == "" {
		return fmt.Errorf("JWT access and refresh private key paths are required")
	}

	if c.JWT.AccessPrivateKeyPath == c.JWT.RefreshPrivateKeyPath {
		return fmt.Errorf("JWT access and refresh tokens must use different keys")
	}

	if len(c.JWT.Audience) == 0 {
		return fmt.Errorf("jwt.audience must list at least one role")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if !c.Cookie.Secure {
			return fmt.Errorf("COOKIE_SECURE must be true in production")
		}
	}

	if c.SMTP.Enabled && strings.TrimSpace(c.SMTP.Host) == "" {
		return fmt.Errorf("SMTP_HOST is required when smtp is enabled")
	}

	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("storage.max_file_size must be positive")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
