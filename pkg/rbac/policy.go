package rbac

import (
	"github.com/platinummonkey/hookrelay/pkg/apierrors"
)

// Scope is the set of rows a principal may see for one resource type
type Scope struct {
	// All grants visibility of every row
	All bool
	// AccountIDs restricts account owned resources to these accounts
	AccountIDs []int64
	// UserID restricts the user resource to a single user
	UserID int64
}

// Empty reports whether the scope can never match a row
func (s Scope) Empty() bool {
	return !s.All && len(s.AccountIDs) == 0 && s.UserID == 0
}

// ContainsAccount reports whether rows of accountID are visible
func (s Scope) ContainsAccount(accountID int64) bool {
	if s.All {
		return true
	}
	for _, id := range s.AccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}

// ContainsUser reports whether userID is visible
func (s Scope) ContainsUser(userID int64) bool {
	return s.All || (s.UserID != 0 && s.UserID == userID)
}

// VisibleScope computes which rows of resource p may list or retrieve
func VisibleScope(p *Principal, resource Resource) Scope {
	kind := p.Kind()
	switch resource {
	case ResourceUser:
		switch kind {
		case KindAnonymous:
			return Scope{}
		case KindSuperuser:
			return Scope{All: true}
		default:
			return Scope{UserID: p.UserID}
		}
	case ResourceRole:
		return Scope{All: kind != KindAnonymous}
	default:
		switch kind {
		case KindAnonymous:
			return Scope{}
		case KindSuperuser, KindAccountAdmin:
			return Scope{All: true}
		default:
			return Scope{AccountIDs: p.AccountIDs()}
		}
	}
}

// EmptyListForbidden reports whether a listing of resource with zero visible
// rows is reported as Forbidden rather than an empty page
func EmptyListForbidden(resource Resource) bool {
	return resource == ResourceAccount || resource == ResourceAccountMember
}

// Authorize decides whether p may perform perm on target. It returns nil,
// or an Unauthenticated, Forbidden or NotFound apierrors.Error.
//
// List and retrieve only establish that the caller may use the endpoint;
// row visibility comes from VisibleScope.
func Authorize(p *Principal, perm Permission, target Target) error {
	kind := p.Kind()
	if kind == KindAnonymous {
		return apierrors.Unauthenticated("Authentication credentials were not provided.")
	}
	superOrAdmin := kind == KindSuperuser || kind == KindAccountAdmin

	switch perm.Resource {
	case ResourceAccount:
		switch perm.Action {
		case ActionList, ActionRetrieve:
			return nil
		case ActionCreate:
			if !superOrAdmin {
				return apierrors.Forbidden("You don't have access to create an account!")
			}
		case ActionUpdate:
			if !superOrAdmin && !p.MemberOf(target.AccountID) {
				return apierrors.Forbidden("You don't have access to update this account!")
			}
		case ActionDelete:
			if !superOrAdmin {
				return apierrors.Forbidden("You don't have access to delete an account!")
			}
		}
		return nil

	case ResourceAccountMember:
		switch perm.Action {
		case ActionList, ActionRetrieve:
			return nil
		}
		// Admin in any account is sufficient, regardless of which account the
		// membership belongs to.
		if !superOrAdmin {
			return apierrors.Forbidden("You don't have access to " + string(perm.Action) + " an account member!")
		}
		return nil

	case ResourceDestination:
		switch perm.Action {
		case ActionList, ActionRetrieve:
			return nil
		case ActionUpdate:
			// Requires the Normal User role in the destination's account; holding
			// Admin there does not satisfy it. Only the current account is
			// checked; a new account in the update is not. Kept as observed behavior.
			if kind != KindSuperuser && !p.HasRoleIn(target.AccountID, RoleNormalUser) {
				return apierrors.Forbidden("You can only update destinations linked to your account!")
			}
			return nil
		}
		if !superOrAdmin {
			return apierrors.Forbidden("You don't have permission to " + string(perm.Action) + " a destination!")
		}
		return nil

	case ResourceLog:
		switch perm.Action {
		case ActionList, ActionRetrieve:
			return nil
		}
		return apierrors.Forbidden("Delivery logs are read-only.")

	case ResourceRole:
		switch perm.Action {
		case ActionList, ActionRetrieve:
			return nil
		}
		return apierrors.Forbidden("Roles are read-only.")

	case ResourceUser:
		switch perm.Action {
		case ActionList:
			return nil
		case ActionCreate:
			if kind != KindSuperuser {
				return apierrors.Forbidden("You don't have access to create a account.")
			}
			return nil
		case ActionRetrieve, ActionUpdate:
			if kind != KindSuperuser && target.UserID != p.UserID {
				return apierrors.NotFound("Not found.")
			}
			return nil
		case ActionDelete:
			if kind != KindSuperuser && target.UserID != p.UserID {
				return apierrors.Forbidden("You don't have access to delete this account")
			}
			return nil
		}
	}

	return apierrors.Forbidden("You do not have permission to perform this action.")
}
