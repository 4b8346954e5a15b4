package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the gateway, api and worker processes.
type Config struct {
	App          AppConfig
	Gateway      GatewayConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Lifecycle    LifecycleConfig
	Notification NotificationConfig
	Jobs         JobsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// GatewayConfig describes the edge process.
type GatewayConfig struct {
	Host string
	Port string
	// Upstreams maps a path prefix to the base URL of the service that owns it.
	Upstreams           map[string]string
	OpenPrefixes        []string
	OpenPatterns        []string
	ConditionalHead     bool
	RateLimitPerMinute  int
	SecureHeaders       bool
	ProxyTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	IdentitySecret        string
	IdentityTTLSeconds    int
}

// LifecycleConfig tunes the application lifecycle engine.
type LifecycleConfig struct {
	TerminalStatuses []string
	DispatchBuffer   int
	DispatchWorkers  int
}

// NotificationConfig holds notification delivery settings.
type NotificationConfig struct {
	Enabled     bool
	EmailFrom   string
	Queue       string
	WebhookURL  string
	Concurrency int
	StatusAddr  string
}

// JobsConfig points at the job-lookup collaborator.
type JobsConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	upstreams, err := parseUpstreams(getEnv("GATEWAY_UPSTREAMS",
		"/api/auth=http://127.0.0.1:8080,/api/applications=http://127.0.0.1:8080,/api/jobs=http://127.0.0.1:8082,/api/messages=http://127.0.0.1:8083"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "job-portal-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Gateway: GatewayConfig{
			Host:      getEnv("GATEWAY_HOST", "0.0.0.0"),
			Port:      getEnv("GATEWAY_PORT", "8000"),
			Upstreams: upstreams,
			OpenPrefixes: getEnvAsList("GATEWAY_OPEN_PREFIXES", []string{
				"/api/auth/register",
				"/api/auth/login",
				"/api/jobs/search",
				"/api/jobs/public",
			}),
			OpenPatterns:        getEnvAsList("GATEWAY_OPEN_PATTERNS", []string{"/api/jobs/{id}"}),
			ConditionalHead:     getEnvAsBool("GATEWAY_CONDITIONAL_HEAD", false),
			RateLimitPerMinute:  getEnvAsInt("GATEWAY_RATE_LIMIT_PER_MINUTE", 600),
			SecureHeaders:       getEnvAsBool("GATEWAY_SECURE_HEADERS", true),
			ProxyTimeoutSeconds: getEnvAsInt("GATEWAY_PROXY_TIMEOUT_SECONDS", 15),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 1440),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			IdentitySecret:        getEnv("AUTH_IDENTITY_SECRET", "dev-identity-secret"),
			IdentityTTLSeconds:    getEnvAsInt("AUTH_IDENTITY_TTL_SECONDS", 60),
		},
		Lifecycle: LifecycleConfig{
			TerminalStatuses: getEnvAsList("LIFECYCLE_TERMINAL_STATUSES", []string{"WITHDRAWN"}),
			DispatchBuffer:   getEnvAsInt("LIFECYCLE_DISPATCH_BUFFER", 256),
			DispatchWorkers:  getEnvAsInt("LIFECYCLE_DISPATCH_WORKERS", 2),
		},
		Notification: NotificationConfig{
			Enabled:     getEnvAsBool("NOTIFY_ENABLED", false),
			EmailFrom:   getEnv("NOTIFY_EMAIL_FROM", "noreply@jobportal.com"),
			Queue:       getEnv("NOTIFY_QUEUE", "notifications"),
			WebhookURL:  getEnv("NOTIFY_WEBHOOK_URL", ""),
			Concurrency: getEnvAsInt("NOTIFY_WORKER_CONCURRENCY", 5),
			StatusAddr:  getEnv("NOTIFY_WORKER_STATUS_ADDR", "0.0.0.0:9091"),
		},
		Jobs: JobsConfig{
			BaseURL:        getEnv("JOBS_BASE_URL", "http://127.0.0.1:8082"),
			TimeoutSeconds: getEnvAsInt("JOBS_TIMEOUT_SECONDS", 5),
		},
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must not be empty")
	}
	if strings.TrimSpace(cfg.Auth.IdentitySecret) == "" {
		return nil, fmt.Errorf("AUTH_IDENTITY_SECRET must not be empty")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Addr returns the gateway bind address.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%s", g.Host, g.Port)
}

// ProxyTimeout returns how long the gateway waits on an upstream.
func (g GatewayConfig) ProxyTimeout() time.Duration {
	if g.ProxyTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(g.ProxyTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// IdentityTTL returns the lifetime of gateway identity assertions.
func (a AuthConfig) IdentityTTL() time.Duration {
	return time.Duration(a.IdentityTTLSeconds) * time.Second
}

// Timeout returns the job collaborator request timeout.
func (j JobsConfig) Timeout() time.Duration {
	if j.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(j.TimeoutSeconds) * time.Second
}

func parseUpstreams(raw string) (map[string]string, error) {
	result := make(map[string]string)
	for _, entry := range splitList(raw) {
		prefix, target, ok := strings.Cut(entry, "=")
		prefix, target = strings.TrimSpace(prefix), strings.TrimSpace(target)
		if !ok || prefix == "" || target == "" {
			return nil, fmt.Errorf("invalid GATEWAY_UPSTREAMS entry %q", entry)
		}
		result[prefix] = strings.TrimRight(target, "/")
	}
	return result, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return splitList(val)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
