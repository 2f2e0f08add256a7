package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/observability"
)

// Namespace names one family of cached listings
type Namespace string

const (
	NamespaceAccounts       Namespace = "accounts"
	NamespaceAccountMembers Namespace = "account_members"
	NamespaceDestinations   Namespace = "destinations"
	NamespaceLogs           Namespace = "logs"
)

// QueryCache memoizes authorization filtered query results for one
// namespace. Every key it issues is recorded in the namespace's index so
// Invalidate can evict all of them at once. Keys also carry the namespace
// generation, which Invalidate bumps, so a result loaded before a write and
// stored after its invalidation is never read back.
type QueryCache struct {
	backend   Backend
	namespace Namespace
	ttl       time.Duration
	metrics   *observability.Metrics
	logger    logrus.FieldLogger
}

// NewQueryCache creates a query cache for namespace. metrics may be nil.
func NewQueryCache(backend Backend, namespace Namespace, ttl time.Duration, metrics *observability.Metrics, logger logrus.FieldLogger) *QueryCache {
	return &QueryCache{
		backend:   backend,
		namespace: namespace,
		ttl:       ttl,
		metrics:   metrics,
		logger:    logger.WithField("cache_namespace", string(namespace)),
	}
}

// Namespace returns the cache's namespace
func (q *QueryCache) Namespace() Namespace {
	return q.namespace
}

// Key builds the cache key for a principal and its query parameters under
// the current generation. Call it before loading the result. It returns ""
// when the generation cannot be read; Get and Set treat that as a miss.
// url.Values.Encode sorts keys, so parameter order does not matter.
func (q *QueryCache) Key(ctx context.Context, userID int64, params url.Values) string {
	gen, err := q.backend.Counter(ctx, q.generationKey())
	if err != nil {
		q.logger.WithError(err).Warn("cache generation read failed")
		q.recordError("generation")
		return ""
	}
	return fmt.Sprintf("%s:%d:%d:%s", q.namespace, gen, userID, params.Encode())
}

func (q *QueryCache) generationKey() string {
	return string(q.namespace) + ":generation"
}

func (q *QueryCache) indexKey() string {
	return string(q.namespace) + ":keys"
}

// Get loads a cached value into dest and reports whether it was found.
// Backend failures and undecodable entries count as misses.
func (q *QueryCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if key == "" {
		q.recordMiss()
		return false
	}
	data, err := q.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			q.logger.WithError(err).Warn("cache read failed")
			q.recordError("get")
		}
		q.recordMiss()
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		q.logger.WithError(err).Warn("discarding undecodable cache entry")
		q.backend.Delete(ctx, key)
		q.recordMiss()
		return false
	}

	q.recordHit()
	return true
}

// Set stores value under key and records the key in the namespace index
func (q *QueryCache) Set(ctx context.Context, key string, value interface{}) {
	if key == "" {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		q.logger.WithError(err).Warn("failed to encode cache entry")
		return
	}

	if err := q.backend.Set(ctx, key, data, q.ttl); err != nil {
		q.logger.WithError(err).Warn("cache write failed")
		q.recordError("set")
		return
	}

	if err := q.backend.AddToIndex(ctx, q.indexKey(), key, q.ttl); err != nil {
		// An unindexed key could outlive an invalidation sweep, so drop it
		q.logger.WithError(err).Warn("cache index write failed")
		q.recordError("index")
		q.backend.Delete(ctx, key)
	}
}

// Invalidate retires the current generation, then evicts every key issued
// by this namespace and clears the index
func (q *QueryCache) Invalidate(ctx context.Context) error {
	_, genErr := q.backend.Incr(ctx, q.generationKey())
	if genErr != nil {
		q.recordError("invalidate")
		genErr = fmt.Errorf("failed to bump %s cache generation: %w", q.namespace, genErr)
	}

	members, err := q.backend.IndexMembers(ctx, q.indexKey())
	if err != nil {
		q.recordError("invalidate")
		return errors.Join(genErr, fmt.Errorf("failed to read %s cache index: %w", q.namespace, err))
	}

	keys := append(members, q.indexKey())
	if err := q.backend.Delete(ctx, keys...); err != nil {
		q.recordError("invalidate")
		return errors.Join(genErr, fmt.Errorf("failed to invalidate %s cache: %w", q.namespace, err))
	}
	if genErr != nil {
		return genErr
	}

	if q.metrics != nil {
		q.metrics.CacheInvalidationsTotal.WithLabelValues(string(q.namespace)).Inc()
	}
	q.logger.WithField("keys", len(members)).Debug("cache namespace invalidated")
	return nil
}

func (q *QueryCache) recordHit() {
	if q.metrics != nil {
		q.metrics.CacheHitsTotal.WithLabelValues(string(q.namespace)).Inc()
	}
}

func (q *QueryCache) recordMiss() {
	if q.metrics != nil {
		q.metrics.CacheMissesTotal.WithLabelValues(string(q.namespace)).Inc()
	}
}

func (q *QueryCache) recordError(op string) {
	if q.metrics != nil {
		q.metrics.CacheErrorsTotal.WithLabelValues(op).Inc()
	}
}
