package destinations

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

// Service applies the access policy and query cache to destination operations
type Service struct {
	store  *Store
	caches *cache.Group
	logger logrus.FieldLogger
}

// NewService creates a new Service
func NewService(store *Store, caches *cache.Group, logger logrus.FieldLogger) *Service {
	return &Service{
		store:  store,
		caches: caches,
		logger: logger.WithField("component", "destinations"),
	}
}

// List returns the destinations p may see, filtered by params
func (s *Service) List(ctx context.Context, p *rbac.Principal, params url.Values) ([]*Destination, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceDestination, Action: rbac.ActionList}, rbac.Target{}); err != nil {
		return nil, err
	}

	key := s.caches.Destinations.Key(ctx, p.UserID, params)
	var cached []*Destination
	if s.caches.Destinations.Get(ctx, key, &cached) {
		return cached, nil
	}

	filter, err := storage.ParseListParams(params, ListOptions)
	if err != nil {
		return nil, err
	}
	scope := rbac.VisibleScope(p, rbac.ResourceDestination)
	filter.All = scope.All
	filter.AccountIDs = scope.AccountIDs

	destinations, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.caches.Destinations.Set(ctx, key, destinations)
	return destinations, nil
}

// Get retrieves a destination visible to p
func (s *Service) Get(ctx context.Context, p *rbac.Principal, id int64) (*Destination, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceDestination, Action: rbac.ActionRetrieve}, rbac.Target{}); err != nil {
		return nil, err
	}
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.VisibleScope(p, rbac.ResourceDestination).ContainsAccount(d.AccountID) {
		return nil, apierrors.NotFound("Not found.")
	}
	return d, nil
}

// Create registers a destination. HTTPMethod defaults to POST.
func (s *Service) Create(ctx context.Context, p *rbac.Principal, in Input) (*Destination, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceDestination, Action: rbac.ActionCreate}, rbac.Target{}); err != nil {
		return nil, err
	}
	in.normalize()
	if fields := in.validate(false); len(fields) > 0 {
		return nil, apierrors.ValidationFields(fields)
	}

	method := MethodPost
	if in.HTTPMethod != nil {
		method = *in.HTTPMethod
	}
	d := &Destination{
		AccountID:  *in.AccountID,
		URL:        *in.URL,
		HTTPMethod: method,
		Headers:    in.Headers,
		CreatedBy:  p.UserID,
		UpdatedBy:  p.UserID,
	}
	if d.Headers == nil {
		d.Headers = map[string]string{}
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}

	s.caches.InvalidateDestinations(ctx)
	s.logger.WithFields(logrus.Fields{
		"destination_id": d.ID,
		"account":        d.AccountID,
		"user_id":        p.UserID,
	}).Info("destination created")
	return d, nil
}

// Update changes a destination. The destination is looked up without
// scoping, then the caller must hold the Normal User role in its account
// (superusers excepted).
func (s *Service) Update(ctx context.Context, p *rbac.Principal, id int64, in Input, partial bool) (*Destination, error) {
	perm := rbac.Permission{Resource: rbac.ResourceDestination, Action: rbac.ActionUpdate}
	if !p.IsAuthenticated() {
		return nil, rbac.Authorize(p, perm, rbac.Target{})
	}
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.Authorize(p, perm, rbac.Target{AccountID: d.AccountID}); err != nil {
		return nil, err
	}

	in.normalize()
	if fields := in.validate(partial); len(fields) > 0 {
		return nil, apierrors.ValidationFields(fields)
	}

	// The target account is not checked against the caller's roles, so a
	// Normal User may move a destination into an account they cannot see.
	// Kept as observed behavior.
	if in.AccountID != nil {
		d.AccountID = *in.AccountID
	}
	if in.URL != nil {
		d.URL = *in.URL
	}
	if in.HTTPMethod != nil {
		d.HTTPMethod = *in.HTTPMethod
	} else if !partial {
		d.HTTPMethod = MethodPost
	}
	if in.Headers != nil {
		d.Headers = in.Headers
	} else if !partial {
		d.Headers = map[string]string{}
	}
	d.UpdatedBy = p.UserID

	if err := s.store.Update(ctx, d); err != nil {
		return nil, err
	}

	s.caches.InvalidateDestinations(ctx)
	return d, nil
}

// Delete removes a destination
func (s *Service) Delete(ctx context.Context, p *rbac.Principal, id int64) error {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceDestination, Action: rbac.ActionDelete}, rbac.Target{}); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.caches.InvalidateDestinations(ctx)
	s.logger.WithFields(logrus.Fields{"destination_id": id, "user_id": p.UserID}).Info("destination deleted")
	return nil
}

// ForAccount returns every destination of an account. It is not
// authorization gated and serves the dispatcher.
func (s *Service) ForAccount(ctx context.Context, accountID int64) ([]*Destination, error) {
	return s.store.ListForAccount(ctx, accountID)
}
