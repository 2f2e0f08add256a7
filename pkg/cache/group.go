package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/observability"
)

// Group owns the query caches of every governed resource and knows which
// namespaces a write to each resource must sweep.
type Group struct {
	Accounts       *QueryCache
	AccountMembers *QueryCache
	Destinations   *QueryCache
	Logs           *QueryCache

	logger logrus.FieldLogger
}

// NewGroup creates the four namespace caches on one backend
func NewGroup(backend Backend, listTTL time.Duration, metrics *observability.Metrics, logger logrus.FieldLogger) *Group {
	return &Group{
		Accounts:       NewQueryCache(backend, NamespaceAccounts, listTTL, metrics, logger),
		AccountMembers: NewQueryCache(backend, NamespaceAccountMembers, listTTL, metrics, logger),
		Destinations:   NewQueryCache(backend, NamespaceDestinations, listTTL, metrics, logger),
		Logs:           NewQueryCache(backend, NamespaceLogs, listTTL, metrics, logger),
		logger:         logger,
	}
}

// InvalidateAll sweeps every namespace. Writes to accounts or memberships
// change who can see what, so every cached listing is suspect.
func (g *Group) InvalidateAll(ctx context.Context) {
	g.sweep(ctx, g.Accounts, g.AccountMembers, g.Destinations, g.Logs)
}

// InvalidateDestinations sweeps destination and delivery log listings
func (g *Group) InvalidateDestinations(ctx context.Context) {
	g.sweep(ctx, g.Destinations, g.Logs)
}

// InvalidateLogs sweeps delivery log listings
func (g *Group) InvalidateLogs(ctx context.Context) {
	g.sweep(ctx, g.Logs)
}

func (g *Group) sweep(ctx context.Context, caches ...*QueryCache) {
	for _, c := range caches {
		if err := c.Invalidate(ctx); err != nil {
			g.logger.WithError(err).Warn("cache invalidation failed")
		}
	}
}
