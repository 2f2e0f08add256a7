package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by Backend.Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Backend is a key-value store with TTLs and named key indexes
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// AddToIndex records key as a member of the index set
	AddToIndex(ctx context.Context, index, key string, ttl time.Duration) error
	IndexMembers(ctx context.Context, index string) ([]string, error)
	// Counter reads a counter that never expires; absent counters read 0
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config configures the cache backend and TTLs
type Config struct {
	Backend         string        `yaml:"backend"`
	RedisURL        string        `yaml:"redis_url"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
	RedisPoolSize   int           `yaml:"redis_pool_size"`
	RedisMaxRetries int           `yaml:"redis_max_retries"`
	ListTTL         time.Duration `yaml:"list_ttl"`
	DedupTTL        time.Duration `yaml:"dedup_ttl"`
	MaxEntries      int           `yaml:"max_entries"`
}

// DefaultConfig returns an in-memory cache with the standard TTLs
func DefaultConfig() Config {
	return Config{
		Backend:         BackendMemory,
		RedisURL:        "redis://localhost:6379/0",
		RedisDB:         -1,
		RedisPoolSize:   10,
		RedisMaxRetries: 3,
		ListTTL:         300 * time.Second,
		DedupTTL:        60 * time.Second,
		MaxEntries:      10000,
	}
}

// NewBackend creates the backend named by cfg.Backend
func NewBackend(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendRedis:
		return NewRedisBackend(cfg)
	case BackendMemory, "":
		return NewMemoryBackend(cfg.MaxEntries, maxDuration(cfg.ListTTL, cfg.DedupTTL)), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
