package webhooks

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

// LogService applies the access policy and query cache to delivery log reads
type LogService struct {
	store  *LogStore
	caches *cache.Group
	logger logrus.FieldLogger
}

// NewLogService creates a new LogService
func NewLogService(store *LogStore, caches *cache.Group, logger logrus.FieldLogger) *LogService {
	return &LogService{
		store:  store,
		caches: caches,
		logger: logger.WithField("component", "delivery_logs"),
	}
}

// List returns the delivery logs p may see, filtered by params. An empty
// result is not an error.
func (s *LogService) List(ctx context.Context, p *rbac.Principal, params url.Values) ([]*DeliveryLog, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceLog, Action: rbac.ActionList}, rbac.Target{}); err != nil {
		return nil, err
	}

	key := s.caches.Logs.Key(ctx, p.UserID, params)
	var cached []*DeliveryLog
	if s.caches.Logs.Get(ctx, key, &cached) {
		return cached, nil
	}

	filter, err := storage.ParseListParams(params, LogListOptions)
	if err != nil {
		return nil, err
	}
	scope := rbac.VisibleScope(p, rbac.ResourceLog)
	filter.All = scope.All
	filter.AccountIDs = scope.AccountIDs

	logs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.caches.Logs.Set(ctx, key, logs)
	return logs, nil
}

// Get retrieves a delivery log visible to p
func (s *LogService) Get(ctx context.Context, p *rbac.Principal, id int64) (*DeliveryLog, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceLog, Action: rbac.ActionRetrieve}, rbac.Target{}); err != nil {
		return nil, err
	}
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.VisibleScope(p, rbac.ResourceLog).ContainsAccount(l.AccountID) {
		return nil, apierrors.NotFound("Not found.")
	}
	return l, nil
}
