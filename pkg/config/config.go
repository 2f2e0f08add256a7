package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/observability"
	"github.com/platinummonkey/hookrelay/pkg/storage"
	"github.com/platinummonkey/hookrelay/pkg/webhooks"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "HOOKRELAY_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig              `yaml:"server"`
	Database      storage.Config            `yaml:"database"`
	Cache         cache.Config              `yaml:"cache"`
	Dispatch      webhooks.DispatcherConfig `yaml:"dispatch"`
	RateLimit     RateLimitConfig           `yaml:"rate_limit"`
	Retention     webhooks.RetentionConfig  `yaml:"retention"`
	Auth          AuthConfig                `yaml:"auth"`
	Observability ObservabilityConfig       `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// RateLimitConfig throttles authenticated users
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second"`
	Burst             int  `yaml:"burst"`
}

// AuthConfig holds credential settings
type AuthConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Database:  storage.DefaultConfig(),
		Cache:     cache.DefaultConfig(),
		Dispatch:  webhooks.DefaultDispatcherConfig(),
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerSecond: 5},
		Retention: webhooks.RetentionConfig{
			Schedule: "0 3 * * *",
			MaxAge:   30 * 24 * time.Hour,
		},
		Auth: AuthConfig{BcryptCost: 12},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// HOOKRELAY_CONFIG_FILE if any, and then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv(EnvPrefix+"CONFIG_FILE", ""); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv(EnvPrefix+"HOST", s.Host)
	s.Port = getEnv(EnvPrefix+"PORT", s.Port)
	s.ReadTimeout = getEnvDuration(EnvPrefix+"READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration(EnvPrefix+"WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration(EnvPrefix+"IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64(EnvPrefix+"MAX_BODY_BYTES", s.MaxBodyBytes)

	db := &c.Database
	db.Driver = getEnv(EnvPrefix+"DB_DRIVER", db.Driver)
	db.URL = getEnv(EnvPrefix+"DATABASE_URL", db.URL)
	db.MaxConns = getEnvInt(EnvPrefix+"DB_MAX_CONNS", db.MaxConns)
	db.MinConns = getEnvInt(EnvPrefix+"DB_MIN_CONNS", db.MinConns)
	db.Timeout = getEnvDuration(EnvPrefix+"DB_TIMEOUT", db.Timeout)

	ch := &c.Cache
	ch.Backend = getEnv(EnvPrefix+"CACHE_BACKEND", ch.Backend)
	ch.RedisURL = getEnv(EnvPrefix+"REDIS_URL", ch.RedisURL)
	ch.RedisPassword = getEnv(EnvPrefix+"REDIS_PASSWORD", ch.RedisPassword)
	ch.RedisDB = getEnvInt(EnvPrefix+"REDIS_DB", ch.RedisDB)
	ch.RedisPoolSize = getEnvInt(EnvPrefix+"REDIS_POOL_SIZE", ch.RedisPoolSize)
	ch.ListTTL = getEnvDuration(EnvPrefix+"CACHE_LIST_TTL", ch.ListTTL)
	ch.DedupTTL = getEnvDuration(EnvPrefix+"CACHE_DEDUP_TTL", ch.DedupTTL)
	ch.MaxEntries = getEnvInt(EnvPrefix+"CACHE_MAX_ENTRIES", ch.MaxEntries)

	d := &c.Dispatch
	d.Workers = getEnvInt(EnvPrefix+"DISPATCH_WORKERS", d.Workers)
	d.QueueSize = getEnvInt(EnvPrefix+"DISPATCH_QUEUE_SIZE", d.QueueSize)
	d.Concurrency = getEnvInt(EnvPrefix+"DISPATCH_CONCURRENCY", d.Concurrency)
	d.HTTPTimeout = getEnvDuration(EnvPrefix+"DISPATCH_HTTP_TIMEOUT", d.HTTPTimeout)
	d.TaskTimeout = getEnvDuration(EnvPrefix+"DISPATCH_TASK_TIMEOUT", d.TaskTimeout)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool(EnvPrefix+"RATE_LIMIT_ENABLED", rl.Enabled)
	rl.RequestsPerSecond = getEnvInt(EnvPrefix+"RATE_LIMIT_RPS", rl.RequestsPerSecond)
	rl.Burst = getEnvInt(EnvPrefix+"RATE_LIMIT_BURST", rl.Burst)

	c.Retention.Schedule = getEnv(EnvPrefix+"RETENTION_SCHEDULE", c.Retention.Schedule)
	c.Retention.MaxAge = getEnvDuration(EnvPrefix+"RETENTION_MAX_AGE", c.Retention.MaxAge)

	c.Auth.BcryptCost = getEnvInt(EnvPrefix+"BCRYPT_COST", c.Auth.BcryptCost)

	o := &c.Observability
	o.LogLevel = getEnv(EnvPrefix+"LOG_LEVEL", o.LogLevel)
	o.LogFormat = getEnv(EnvPrefix+"LOG_FORMAT", o.LogFormat)
	o.MetricsEnabled = getEnvBool(EnvPrefix+"METRICS_ENABLED", o.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be %s or %s)", c.Database.Driver, storage.DriverPostgres, storage.DriverSQLite)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	switch c.Cache.Backend {
	case cache.BackendMemory:
	case cache.BackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be %s or %s)", c.Cache.Backend, cache.BackendRedis, cache.BackendMemory)
	}
	if c.Cache.ListTTL <= 0 || c.Cache.DedupTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("dispatch workers must be positive")
	}
	if c.Dispatch.QueueSize <= 0 {
		return fmt.Errorf("dispatch queue size must be positive")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit requests per second must be positive")
	}

	if c.Retention.Schedule != "" && c.Retention.MaxAge <= 0 {
		return fmt.Errorf("retention max age must be positive when a schedule is set")
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	switch strings.ToLower(c.Observability.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
