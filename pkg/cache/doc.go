// Package cache provides the query cache for authorization filtered
// listings and the key-value backend used for ingestion dedup markers.
//
// Two backends are available: RedisBackend for deployments with several
// API processes and MemoryBackend, an expiring LRU, for single-process and
// test setups.
//
// Each QueryCache namespace tracks the keys it has issued in an index set
// and embeds a generation counter in every key. Invalidate bumps the
// generation and evicts all indexed keys, so a result loaded before a write
// cannot be stored under a key readers will use after it. Build the key
// before loading:
//
//	group := cache.NewGroup(backend, 300*time.Second, metrics, logger)
//	key := group.Accounts.Key(ctx, principal.UserID, r.URL.Query())
//	if !group.Accounts.Get(ctx, key, &page) {
//		page = load()
//		group.Accounts.Set(ctx, key, page)
//	}
//	// after any account write
//	group.InvalidateAll(ctx)
//
// Cache failures never fail a request; reads degrade to misses.
package cache
