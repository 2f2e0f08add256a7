package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, storage.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, cache.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOOKRELAY_PORT", "9090")
	t.Setenv("HOOKRELAY_DB_DRIVER", "postgres")
	t.Setenv("HOOKRELAY_DATABASE_URL", "postgres://localhost/hookrelay")
	t.Setenv("HOOKRELAY_CACHE_BACKEND", "redis")
	t.Setenv("HOOKRELAY_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("HOOKRELAY_CACHE_LIST_TTL", "90s")
	t.Setenv("HOOKRELAY_DISPATCH_WORKERS", "3")
	t.Setenv("HOOKRELAY_RATE_LIMIT_ENABLED", "false")
	t.Setenv("HOOKRELAY_LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, storage.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/hookrelay", cfg.Database.URL)
	assert.Equal(t, cache.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.ListTTL)
	assert.Equal(t, 3, cfg.Dispatch.Workers)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "text", cfg.Observability.LogFormat)
}

func TestLoad_MalformedNumbersKeepDefaults(t *testing.T) {
	t.Setenv("HOOKRELAY_DISPATCH_WORKERS", "many")
	t.Setenv("HOOKRELAY_CACHE_DEDUP_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Dispatch.Workers, cfg.Dispatch.Workers)
	assert.Equal(t, Default().Cache.DedupTTL, cfg.Cache.DedupTTL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hookrelay.yaml")
	content := `
server:
  port: "7000"
database:
  driver: postgres
  url: postgres://file/hookrelay
dispatch:
  workers: 2
  queue_size: 16
retention:
  schedule: "@hourly"
  max_age: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HOOKRELAY_CONFIG_FILE", path)
	t.Setenv("HOOKRELAY_DATABASE_URL", "postgres://env/hookrelay")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, storage.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://env/hookrelay", cfg.Database.URL)
	assert.Equal(t, 2, cfg.Dispatch.Workers)
	assert.Equal(t, 16, cfg.Dispatch.QueueSize)
	assert.Equal(t, "@hourly", cfg.Retention.Schedule)
	assert.Equal(t, 48*time.Hour, cfg.Retention.MaxAge)
	// untouched sections keep their defaults
	assert.Equal(t, Default().Cache, cfg.Cache)
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("HOOKRELAY_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
		t.Setenv("HOOKRELAY_CONFIG_FILE", path)
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestLoad_InvalidFails(t *testing.T) {
	t.Setenv("HOOKRELAY_DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "invalid database driver")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "invalid database driver",
		},
		{
			name:    "empty database url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "database URL is required",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: "invalid cache backend",
		},
		{
			name: "redis without url",
			mutate: func(c *Config) {
				c.Cache.Backend = cache.BackendRedis
				c.Cache.RedisURL = ""
			},
			wantErr: "redis URL is required",
		},
		{
			name:    "zero list ttl",
			mutate:  func(c *Config) { c.Cache.ListTTL = 0 },
			wantErr: "cache TTLs must be positive",
		},
		{
			name:    "negative dedup ttl",
			mutate:  func(c *Config) { c.Cache.DedupTTL = -time.Second },
			wantErr: "cache TTLs must be positive",
		},
		{
			name:    "no workers",
			mutate:  func(c *Config) { c.Dispatch.Workers = 0 },
			wantErr: "dispatch workers must be positive",
		},
		{
			name:    "no queue",
			mutate:  func(c *Config) { c.Dispatch.QueueSize = 0 },
			wantErr: "dispatch queue size must be positive",
		},
		{
			name:    "enabled rate limit without rate",
			mutate:  func(c *Config) { c.RateLimit.RequestsPerSecond = 0 },
			wantErr: "rate limit requests per second must be positive",
		},
		{
			name: "disabled rate limit without rate",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.RequestsPerSecond = 0
			},
		},
		{
			name:    "retention schedule without max age",
			mutate:  func(c *Config) { c.Retention.MaxAge = 0 },
			wantErr: "retention max age must be positive",
		},
		{
			name: "retention disabled without max age",
			mutate: func(c *Config) {
				c.Retention.Schedule = ""
				c.Retention.MaxAge = 0
			},
		},
		{
			name:    "bcrypt cost too low",
			mutate:  func(c *Config) { c.Auth.BcryptCost = 2 },
			wantErr: "bcrypt cost",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Observability.LogFormat = "xml" },
			wantErr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("HOOKRELAY_TEST_BOOL", "1")
	t.Setenv("HOOKRELAY_TEST_INT64", "1048576")
	t.Setenv("HOOKRELAY_TEST_DURATION", "250ms")

	assert.True(t, getEnvBool("HOOKRELAY_TEST_BOOL", false))
	assert.False(t, getEnvBool("HOOKRELAY_TEST_UNSET", false))
	assert.Equal(t, int64(1048576), getEnvInt64("HOOKRELAY_TEST_INT64", 0))
	assert.Equal(t, 250*time.Millisecond, getEnvDuration("HOOKRELAY_TEST_DURATION", time.Second))
	assert.Equal(t, "fallback", getEnv("HOOKRELAY_TEST_UNSET", "fallback"))
}
