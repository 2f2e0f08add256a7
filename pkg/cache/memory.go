package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is a process local backend on an expiring LRU. The LRU's
// own TTL bounds every entry; shorter per-entry TTLs are checked on read.
// Keys leave their indexes when the LRU evicts them, so indexes never
// outgrow the LRU.
type MemoryBackend struct {
	entries *lru.LRU[string, memoryEntry]
	// mu serializes SetNX. The LRU evict callback takes indexMu while the
	// LRU lock is held, so indexMu must never be held across an LRU call.
	mu       sync.Mutex
	indexMu  sync.Mutex
	indexes  map[string]map[string]struct{}
	counters map[string]int64
}

// NewMemoryBackend creates a memory backend holding at most maxEntries keys
func NewMemoryBackend(maxEntries int, maxTTL time.Duration) *MemoryBackend {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	b := &MemoryBackend{
		indexes:  make(map[string]map[string]struct{}),
		counters: make(map[string]int64),
	}
	b.entries = lru.NewLRU[string, memoryEntry](maxEntries, b.onEvict, maxTTL)
	return b
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	entry, ok := b.entries.Get(key)
	if !ok || b.expired(entry) {
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.entries.Add(key, b.newEntry(value, ttl))
	return nil
}

func (b *MemoryBackend) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.entries.Get(key); ok && !b.expired(entry) {
		return false, nil
	}
	b.entries.Add(key, b.newEntry(value, ttl))
	return true, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		b.entries.Remove(key)
	}

	b.indexMu.Lock()
	defer b.indexMu.Unlock()
	for _, key := range keys {
		delete(b.indexes, key)
		delete(b.counters, key)
	}
	return nil
}

func (b *MemoryBackend) AddToIndex(ctx context.Context, index, key string, ttl time.Duration) error {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()

	members, ok := b.indexes[index]
	if !ok {
		members = make(map[string]struct{})
		b.indexes[index] = members
	}
	members[key] = struct{}{}
	return nil
}

func (b *MemoryBackend) IndexMembers(ctx context.Context, index string) ([]string, error) {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()

	members := make([]string, 0, len(b.indexes[index]))
	for key := range b.indexes[index] {
		members = append(members, key)
	}
	return members, nil
}

func (b *MemoryBackend) Counter(ctx context.Context, key string) (int64, error) {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()
	return b.counters[key], nil
}

func (b *MemoryBackend) Incr(ctx context.Context, key string) (int64, error) {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()
	b.counters[key]++
	return b.counters[key], nil
}

// Ping always succeeds
func (b *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

// Close releases resources
func (b *MemoryBackend) Close() error {
	b.entries.Purge()

	b.indexMu.Lock()
	defer b.indexMu.Unlock()
	b.indexes = make(map[string]map[string]struct{})
	b.counters = make(map[string]int64)
	return nil
}

// onEvict runs under the LRU lock for removals, expiries and capacity evictions
func (b *MemoryBackend) onEvict(key string, _ memoryEntry) {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()

	for _, members := range b.indexes {
		delete(members, key)
	}
}

func (b *MemoryBackend) newEntry(value []byte, ttl time.Duration) memoryEntry {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	return entry
}

func (b *MemoryBackend) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)
}
