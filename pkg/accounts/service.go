package accounts

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

const noAccountsFound = "No accounts Found!"

// Service applies the access policy and query cache to account, membership
// and role operations
type Service struct {
	store   *Store
	caches  *cache.Group
	secrets *auth.TokenGenerator
	logger  logrus.FieldLogger
}

// NewService creates a new Service
func NewService(store *Store, caches *cache.Group, logger logrus.FieldLogger) *Service {
	return &Service{
		store:   store,
		caches:  caches,
		secrets: auth.NewTokenGenerator(),
		logger:  logger.WithField("component", "accounts"),
	}
}

// Store returns the underlying store
func (s *Service) Store() *Store {
	return s.store
}

// ListAccounts returns the accounts p may see, filtered by params. An empty
// result is Forbidden rather than an empty list.
func (s *Service) ListAccounts(ctx context.Context, p *rbac.Principal, params url.Values) ([]*Account, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccount, Action: rbac.ActionList}, rbac.Target{}); err != nil {
		return nil, err
	}

	key := s.caches.Accounts.Key(ctx, p.UserID, params)
	var cached []*Account
	if s.caches.Accounts.Get(ctx, key, &cached) {
		return cached, nil
	}

	filter, err := scopedFilter(p, rbac.ResourceAccount, params, AccountListOptions)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccounts(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, apierrors.Forbidden(noAccountsFound)
	}

	s.caches.Accounts.Set(ctx, key, accounts)
	return accounts, nil
}

// GetAccount retrieves an account visible to p by its public id
func (s *Service) GetAccount(ctx context.Context, p *rbac.Principal, accountID string) (*Account, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccount, Action: rbac.ActionRetrieve}, rbac.Target{}); err != nil {
		return nil, err
	}
	return s.visibleAccount(ctx, p, accountID)
}

// CreateAccount creates an account owned by p with a fresh public id and
// ingestion secret
func (s *Service) CreateAccount(ctx context.Context, p *rbac.Principal, in AccountInput) (*Account, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccount, Action: rbac.ActionCreate}, rbac.Target{}); err != nil {
		return nil, err
	}
	if fields := in.validate(false); len(fields) > 0 {
		return nil, apierrors.ValidationFields(fields)
	}

	secret, err := s.secrets.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account secret: %w", err)
	}

	account := &Account{
		AccountID:   uuid.NewString(),
		AccountName: strings.TrimSpace(*in.AccountName),
		SecretToken: secret,
		Website:     normalizeWebsite(in.Website),
		CreatedBy:   p.UserID,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.caches.InvalidateAll(ctx)
	s.logger.WithFields(logrus.Fields{"account_id": account.AccountID, "user_id": p.UserID}).Info("account created")
	return account, nil
}

// UpdateAccount changes an account's name or website. The account must be
// visible to p before the update permission is checked.
func (s *Service) UpdateAccount(ctx context.Context, p *rbac.Principal, accountID string, in AccountInput, partial bool) (*Account, error) {
	if !p.IsAuthenticated() {
		return nil, rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccount, Action: rbac.ActionUpdate}, rbac.Target{})
	}
	account, err := s.visibleAccount(ctx, p, accountID)
	if err != nil {
		return nil, err
	}
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccount, Action: rbac.ActionUpdate}, rbac.Target{AccountID: account.ID}); err != nil {
		return nil, err
	}
	if fields := in.validate(partial); len(fields) > 0 {
		return nil, apierrors.ValidationFields(fields)
	}

	if in.AccountName != nil {
		account.AccountName = strings.TrimSpace(*in.AccountName)
	}
	if in.Website != nil || !partial {
		account.Website = normalizeWebsite(in.Website)
	}
	updatedBy := p.UserID
	account.UpdatedBy = &updatedBy

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.caches.InvalidateAll(ctx)
	return account, nil
}

// DeleteAccount removes an account and everything that belongs to it
func (s *Service) DeleteAccount(ctx context.Context, p *rbac.Principal, accountID string) error {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccount, Action: rbac.ActionDelete}, rbac.Target{}); err != nil {
		return err
	}
	account, err := s.visibleAccount(ctx, p, accountID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, account.ID); err != nil {
		return err
	}

	s.caches.InvalidateAll(ctx)
	s.logger.WithFields(logrus.Fields{"account_id": account.AccountID, "user_id": p.UserID}).Info("account deleted")
	return nil
}

// visibleAccount looks an account up within p's scope. An empty scope is
// Forbidden; an account outside it is NotFound.
func (s *Service) visibleAccount(ctx context.Context, p *rbac.Principal, accountID string) (*Account, error) {
	scope := rbac.VisibleScope(p, rbac.ResourceAccount)
	if scope.Empty() {
		return nil, apierrors.Forbidden(noAccountsFound)
	}
	if _, err := uuid.Parse(accountID); err != nil {
		return nil, apierrors.NotFound("Not found.")
	}
	account, err := s.store.GetAccountByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !scope.ContainsAccount(account.ID) {
		return nil, apierrors.NotFound("Not found.")
	}
	return account, nil
}

// ListMembers returns the memberships p may see, filtered by params. An
// empty result is Forbidden rather than an empty list.
func (s *Service) ListMembers(ctx context.Context, p *rbac.Principal, params url.Values) ([]*Member, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccountMember, Action: rbac.ActionList}, rbac.Target{}); err != nil {
		return nil, err
	}

	key := s.caches.AccountMembers.Key(ctx, p.UserID, params)
	var cached []*Member
	if s.caches.AccountMembers.Get(ctx, key, &cached) {
		return cached, nil
	}

	filter, err := scopedFilter(p, rbac.ResourceAccountMember, params, MemberListOptions)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apierrors.Forbidden(noAccountsFound)
	}

	s.caches.AccountMembers.Set(ctx, key, members)
	return members, nil
}

// GetMember retrieves a membership visible to p
func (s *Service) GetMember(ctx context.Context, p *rbac.Principal, id int64) (*Member, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccountMember, Action: rbac.ActionRetrieve}, rbac.Target{}); err != nil {
		return nil, err
	}
	return s.visibleMember(ctx, p, id)
}

// CreateMember binds a user to an account
func (s *Service) CreateMember(ctx context.Context, p *rbac.Principal, in MemberInput) (*Member, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccountMember, Action: rbac.ActionCreate}, rbac.Target{}); err != nil {
		return nil, err
	}
	if fields := in.validate(false); len(fields) > 0 {
		return nil, apierrors.ValidationFields(fields)
	}

	member := &Member{
		AccountID: *in.AccountID,
		UserID:    *in.UserID,
		RoleID:    *in.RoleID,
		CreatedBy: p.UserID,
	}
	if err := s.store.CreateMember(ctx, member); err != nil {
		return nil, err
	}

	s.caches.InvalidateAll(ctx)
	s.logger.WithFields(logrus.Fields{
		"account": member.AccountID,
		"member":  member.UserID,
		"role":    member.RoleID.String(),
		"user_id": p.UserID,
	}).Info("account member created")
	return member, nil
}

// UpdateMember changes a membership. Permission is checked before the
// membership is looked up.
func (s *Service) UpdateMember(ctx context.Context, p *rbac.Principal, id int64, in MemberInput, partial bool) (*Member, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccountMember, Action: rbac.ActionUpdate}, rbac.Target{}); err != nil {
		return nil, err
	}
	member, err := s.visibleMember(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if fields := in.validate(partial); len(fields) > 0 {
		return nil, apierrors.ValidationFields(fields)
	}

	if in.AccountID != nil {
		member.AccountID = *in.AccountID
	}
	if in.UserID != nil {
		member.UserID = *in.UserID
	}
	if in.RoleID != nil {
		member.RoleID = *in.RoleID
	}
	updatedBy := p.UserID
	member.UpdatedBy = &updatedBy

	if err := s.store.UpdateMember(ctx, member); err != nil {
		return nil, err
	}

	s.caches.InvalidateAll(ctx)
	return member, nil
}

// DeleteMember removes a membership. Permission is checked before the
// membership is looked up.
func (s *Service) DeleteMember(ctx context.Context, p *rbac.Principal, id int64) error {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccountMember, Action: rbac.ActionDelete}, rbac.Target{}); err != nil {
		return err
	}
	member, err := s.visibleMember(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMember(ctx, member.ID); err != nil {
		return err
	}

	s.caches.InvalidateAll(ctx)
	return nil
}

func (s *Service) visibleMember(ctx context.Context, p *rbac.Principal, id int64) (*Member, error) {
	scope := rbac.VisibleScope(p, rbac.ResourceAccountMember)
	if scope.Empty() {
		return nil, apierrors.Forbidden(noAccountsFound)
	}
	member, err := s.store.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.ContainsAccount(member.AccountID) {
		return nil, apierrors.NotFound("Not found.")
	}
	return member, nil
}

// ListRoles returns the built-in roles to any authenticated caller
func (s *Service) ListRoles(ctx context.Context, p *rbac.Principal) ([]*rbac.Role, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceRole, Action: rbac.ActionList}, rbac.Target{}); err != nil {
		return nil, err
	}
	return s.store.ListRoles(ctx)
}

// GetRole retrieves one role
func (s *Service) GetRole(ctx context.Context, p *rbac.Principal, id int64) (*rbac.Role, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceRole, Action: rbac.ActionRetrieve}, rbac.Target{}); err != nil {
		return nil, err
	}
	return s.store.GetRole(ctx, id)
}

// scopedFilter combines p's visible scope for resource with the listing
// parameters
func scopedFilter(p *rbac.Principal, resource rbac.Resource, params url.Values, opts storage.ListOptions) (storage.ListFilter, error) {
	scope := rbac.VisibleScope(p, resource)
	if scope.Empty() && rbac.EmptyListForbidden(resource) {
		return storage.ListFilter{}, apierrors.Forbidden(noAccountsFound)
	}

	filter, err := storage.ParseListParams(params, opts)
	if err != nil {
		return storage.ListFilter{}, err
	}
	filter.All = scope.All
	filter.AccountIDs = scope.AccountIDs
	return filter, nil
}

func normalizeWebsite(website *string) *string {
	if website == nil || strings.TrimSpace(*website) == "" {
		return nil
	}
	w := strings.TrimSpace(*website)
	return &w
}
