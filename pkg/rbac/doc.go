// Package rbac decides who may see and change accounts, memberships,
// destinations, delivery logs and users.
//
// # Principals
//
// Every request is evaluated for a Principal: the acting user id, its
// superuser flag and its account memberships. A principal has exactly one
// Kind:
//
//	KindAnonymous     - no credentials
//	KindSuperuser     - implicitly admin of every account
//	KindAccountAdmin  - holds the Admin role in at least one account
//	KindMember        - authenticated, no Admin role anywhere
//
// Resolver loads memberships through a MembershipSource and
// PrincipalMiddleware stores the result in the request context.
//
// # Policy
//
// Authorize answers whether an action is allowed, and VisibleScope answers
// which rows a listing may return:
//
//	if err := rbac.Authorize(p, rbac.Permission{Resource: rbac.ResourceAccount, Action: rbac.ActionDelete}, rbac.Target{}); err != nil {
//		return err
//	}
//	scope := rbac.VisibleScope(p, rbac.ResourceAccount)
//
// Admin checks for membership and destination writes look at the Admin role
// in any account, not only the target account. Destination updates require
// the Normal User role in the destination's account.
package rbac
