package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
)

// MaxEmailLength bounds user emails
const MaxEmailLength = 254

// Input carries client supplied user fields. The password is write-only.
type Input struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Service manages users and their login tokens
type Service struct {
	store  *Store
	tokens *TokenStore
	hasher *auth.PasswordHasher
	caches *cache.Group
	logger logrus.FieldLogger
}

// NewService creates a new Service. caches may be nil for tools that never
// serve listings.
func NewService(store *Store, tokens *TokenStore, hasher *auth.PasswordHasher, caches *cache.Group, logger logrus.FieldLogger) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		hasher: hasher,
		caches: caches,
		logger: logger.WithField("component", "users"),
	}
}

// Tokens returns the token store
func (s *Service) Tokens() *TokenStore {
	return s.tokens
}

// Create registers a user. The first user of an empty system may be
// created anonymously and becomes a superuser with no creator; every
// later user must be created by a superuser and is never promoted.
func (s *Service) Create(ctx context.Context, p *rbac.Principal, in Input) (*auth.User, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	bootstrap := count == 0
	if !bootstrap {
		if err := s.authorizeCreate(p); err != nil {
			return nil, err
		}
	}

	email, fields := validateInput(in, false)
	if in.Password == nil {
		fields["password"] = "This Field is required."
	}
	if len(fields) > 0 {
		return nil, apierrors.ValidationFields(fields)
	}

	hash, err := s.hasher.Hash(*in.Password)
	if err != nil {
		return nil, apierrors.ValidationFields(map[string]string{"password": "This field may not be blank."})
	}

	user := &auth.User{
		Email:        email,
		PasswordHash: hash,
		IsSuperuser:  bootstrap,
		IsActive:     true,
	}
	if bootstrap {
		claimed, err := s.store.CreateFirst(ctx, user)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// another request created the first user in the meantime
			if err := s.authorizeCreate(p); err != nil {
				return nil, err
			}
			bootstrap = false
			user.ID = 0
			user.IsSuperuser = false
		}
	}
	if !bootstrap {
		createdBy := p.UserID
		user.CreatedBy = &createdBy
		if err := s.store.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"new_user_id": user.ID,
		"superuser":   user.IsSuperuser,
		"user_id":     p.UserID,
	}).Info("user created")
	return user, nil
}

func (s *Service) authorizeCreate(p *rbac.Principal) error {
	return rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceUser, Action: rbac.ActionCreate}, rbac.Target{})
}

// CreateSuperuser creates a superuser without a principal, for operators
func (s *Service) CreateSuperuser(ctx context.Context, email, password string) (*auth.User, error) {
	normalized, fields := validateInput(Input{Email: &email, Password: &password}, false)
	if password == "" {
		fields["password"] = "This field may not be blank."
	}
	if len(fields) > 0 {
		return nil, apierrors.ValidationFields(fields)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &auth.User{Email: normalized, PasswordHash: hash, IsSuperuser: true, IsActive: true}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// List returns every user to superusers and only themselves to others
func (s *Service) List(ctx context.Context, p *rbac.Principal) ([]*auth.User, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceUser, Action: rbac.ActionList}, rbac.Target{}); err != nil {
		return nil, err
	}
	scope := rbac.VisibleScope(p, rbac.ResourceUser)
	if scope.All {
		return s.store.List(ctx, 0)
	}
	return s.store.List(ctx, scope.UserID)
}

// Get retrieves a user. Other users are NotFound to non-superusers.
func (s *Service) Get(ctx context.Context, p *rbac.Principal, id int64) (*auth.User, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceUser, Action: rbac.ActionRetrieve}, rbac.Target{UserID: id}); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Update changes a user's email or password. Other users are NotFound to
// non-superusers.
func (s *Service) Update(ctx context.Context, p *rbac.Principal, id int64, in Input, partial bool) (*auth.User, error) {
	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceUser, Action: rbac.ActionUpdate}, rbac.Target{UserID: id}); err != nil {
		return nil, err
	}
	user, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	email, fields := validateInput(in, partial)
	if len(fields) > 0 {
		return nil, apierrors.ValidationFields(fields)
	}
	if in.Email != nil {
		user.Email = email
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, apierrors.ValidationFields(map[string]string{"password": "This field may not be blank."})
		}
		user.PasswordHash = hash
	}
	updatedBy := p.UserID
	user.UpdatedBy = &updatedBy

	if err := s.store.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user and revokes its tokens. The last superuser can
// never be deleted.
func (s *Service) Delete(ctx context.Context, p *rbac.Principal, id int64) error {
	if !p.IsAuthenticated() {
		return rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceUser, Action: rbac.ActionDelete}, rbac.Target{UserID: id})
	}
	if !rbac.VisibleScope(p, rbac.ResourceUser).ContainsUser(id) {
		return apierrors.NotFound("Not found.")
	}
	user, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if user.IsSuperuser {
		superusers, err := s.store.CountSuperusers(ctx)
		if err != nil {
			return err
		}
		if superusers <= 1 {
			return apierrors.Policy("Cannot delete the only admin account.")
		}
	}

	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceUser, Action: rbac.ActionDelete}, rbac.Target{UserID: id}); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	// accounts the user created and its memberships went with it
	if s.caches != nil {
		s.caches.InvalidateAll(ctx)
	}

	s.logger.WithFields(logrus.Fields{"deleted_user_id": id, "user_id": p.UserID}).Info("user deleted")
	return nil
}

// Login checks an email and password and issues a new token
func (s *Service) Login(ctx context.Context, email, password string) (string, *auth.User, error) {
	if email == "" || password == "" {
		return "", nil, apierrors.Validation("Please provide both username and password.")
	}

	user, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apierrors.ErrNotFound) {
		return "", nil, apierrors.Wrap(apierrors.KindUnauthenticated, "Invalid credentials", auth.ErrInvalidCredentials)
	}
	if err != nil {
		return "", nil, err
	}
	if !user.IsActive {
		return "", nil, apierrors.Wrap(apierrors.KindUnauthenticated, "Invalid credentials", auth.ErrInvalidCredentials)
	}
	if err := s.hasher.Check(user.PasswordHash, password); err != nil {
		return "", nil, apierrors.Wrap(apierrors.KindUnauthenticated, "Invalid credentials", err)
	}

	token, _, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, user, nil
}

// Logout revokes the token the request was authenticated with
func (s *Service) Logout(ctx context.Context, authCtx *auth.AuthContext) error {
	if authCtx == nil || authCtx.Token == nil {
		return apierrors.Unauthenticated("Authentication credentials were not provided.")
	}
	if err := s.tokens.Revoke(ctx, authCtx.Token.ID); err != nil && !errors.Is(err, ErrInvalidToken) {
		return err
	}
	return nil
}

// validateInput checks email and password and returns the normalized email
func validateInput(in Input, partial bool) (string, map[string]string) {
	fields := make(map[string]string)
	var email string

	if in.Email == nil {
		if !partial {
			fields["email"] = "This field is required."
		}
	} else {
		email = normalizeEmail(*in.Email)
		switch {
		case email == "":
			fields["email"] = "This field may not be blank."
		case len(email) > MaxEmailLength:
			fields["email"] = "Ensure this field has no more than 254 characters."
		case !validEmail(email):
			fields["email"] = "Enter a valid email address."
		}
	}

	if in.Password != nil && *in.Password == "" {
		fields["password"] = "This field may not be blank."
	}

	return email, fields
}

// normalizeEmail trims the address and lower-cases its domain part
func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}
