// Package config loads the checkout BFF and CLI configuration from the
// environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/032-extremist/redcart-checkout/pkg/config"
	"github.com/032-extremist/redcart-checkout/pkg/database"
	"github.com/032-extremist/redcart-checkout/pkg/httpclient"
)

// State store kinds.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all configuration for the checkout BFF.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"BFF_HTTP_PORT" envDefault:"8088"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// Commerce API
	CommerceAPIURL          string `env:"COMMERCE_API_URL" envDefault:"http://localhost:4000/api/v1"`
	CommerceTimeoutSecs     int    `env:"COMMERCE_TIMEOUT_SECONDS" envDefault:"15"`
	CommerceMaxRetries      int    `env:"COMMERCE_MAX_RETRIES" envDefault:"2"`
	CommerceMaxConnsPerHost int    `env:"COMMERCE_MAX_CONNS_PER_HOST" envDefault:"50"`

	// Circuit breaker settings for commerce API calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Orchestration state
	StateStore        string `env:"STATE_STORE" envDefault:"memory"`
	StateTTLHours     int    `env:"STATE_TTL_HOURS" envDefault:"24"`
	ActionLockTTLSecs int    `env:"ACTION_LOCK_TTL_SECONDS" envDefault:"75"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"redcart"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"redcart"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"redcart_checkout"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"15"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Credentials used by the CLI. The BFF forwards the caller's own.
	Token     string `env:"REDCART_TOKEN"`
	CSRFToken string `env:"REDCART_CSRF_TOKEN"`
}

// commerceCallsPerAction is the most commerce calls one action makes: the
// cart read, order placement, payment push and cart refresh of a submit.
const commerceCallsPerAction = 4

// Load reads configuration from environment variables. opts may layer
// command line values over the environment.
func Load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.CommerceAPIURL == "" {
		return fmt.Errorf("COMMERCE_API_URL is required")
	}
	if _, err := url.ParseRequestURI(c.CommerceAPIURL); err != nil {
		return fmt.Errorf("invalid COMMERCE_API_URL %q: %w", c.CommerceAPIURL, err)
	}
	if c.CommerceTimeoutSecs <= 0 {
		return fmt.Errorf("COMMERCE_TIMEOUT_SECONDS must be positive, got %d", c.CommerceTimeoutSecs)
	}
	if c.CommerceMaxRetries < 0 {
		return fmt.Errorf("COMMERCE_MAX_RETRIES must not be negative, got %d", c.CommerceMaxRetries)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.CBFailureRatio)
	}
	switch c.StateStore {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("STATE_STORE must be one of memory, redis, postgres, got %q", c.StateStore)
	}
	if c.StateTTLHours <= 0 {
		return fmt.Errorf("STATE_TTL_HOURS must be positive, got %d", c.StateTTLHours)
	}
	if c.ActionLockTTLSecs <= 0 {
		return fmt.Errorf("ACTION_LOCK_TTL_SECONDS must be positive, got %d", c.ActionLockTTLSecs)
	}
	// Actions run for at most four fifths of the lock; the rest is for saving.
	if c.ActionLockTTL()*4/5 < c.ActionBudget() {
		return fmt.Errorf("ACTION_LOCK_TTL_SECONDS=%d is too short for %d commerce calls of COMMERCE_TIMEOUT_SECONDS=%d",
			c.ActionLockTTLSecs, commerceCallsPerAction, c.CommerceTimeoutSecs)
	}
	if c.StateStore == StorePostgres && c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.StateStore == StoreRedis && c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// CommerceTimeout is the per-call deadline for commerce API requests.
func (c *Config) CommerceTimeout() time.Duration {
	return time.Duration(c.CommerceTimeoutSecs) * time.Second
}

// StateTTL is how long an idle checkout state is kept.
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.StateTTLHours) * time.Hour
}

// ActionLockTTL bounds how long one action may hold a caller's lock.
func (c *Config) ActionLockTTL() time.Duration {
	return time.Duration(c.ActionLockTTLSecs) * time.Second
}

// ActionBudget is the longest one action can spend on commerce calls. Each
// call, retries included, is bounded by CommerceTimeout.
func (c *Config) ActionBudget() time.Duration {
	return commerceCallsPerAction * c.CommerceTimeout()
}

// HTTPClient returns the transport settings for the commerce API. POSTs are
// never retried regardless of MaxRetries.
func (c *Config) HTTPClient() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = c.CommerceTimeout()
	cfg.MaxRetries = c.CommerceMaxRetries
	cfg.MaxConnsPerHost = c.CommerceMaxConnsPerHost
	return cfg
}

// CircuitBreaker returns the commerce breaker settings.
func (c *Config) CircuitBreaker() httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         "commerce",
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}

// Postgres returns the pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the client settings.
func (c *Config) Redis() database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.Host = c.RedisHost
	cfg.Port = c.RedisPort
	cfg.Password = c.RedisPassword
	cfg.DB = c.RedisDB
	return cfg
}
