package rbac

import (
	"context"
	"fmt"

	"github.com/platinummonkey/hookrelay/pkg/auth"
)

// MembershipSource loads the account memberships of a user
type MembershipSource interface {
	MembershipsForUser(ctx context.Context, userID int64) ([]Membership, error)
}

// Resolver builds principals from authenticated users
type Resolver struct {
	source MembershipSource
}

// NewResolver creates a resolver backed by source
func NewResolver(source MembershipSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the principal for user, or the anonymous principal for nil
func (r *Resolver) Resolve(ctx context.Context, user *auth.User) (*Principal, error) {
	if user == nil {
		return Anonymous(), nil
	}

	memberships, err := r.source.MembershipsForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships for user %d: %w", user.ID, err)
	}

	return &Principal{
		UserID:      user.ID,
		IsSuperuser: user.IsSuperuser,
		Memberships: memberships,
	}, nil
}
