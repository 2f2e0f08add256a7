// Package accounts manages tenant accounts, their memberships and the
// built-in roles.
//
// Every Service operation takes the calling *rbac.Principal and is gated
// by rbac.Authorize; listings and lookups are narrowed to
// rbac.VisibleScope. Listings are memoized in the query cache per
// principal and parameters, and any account or membership write sweeps
// every cache namespace because it can change what other principals see.
//
//	svc := accounts.NewService(accounts.NewStore(db), caches, logger)
//	acct, err := svc.CreateAccount(ctx, principal, accounts.AccountInput{AccountName: &name})
//
// The Store implements rbac.MembershipSource.
package accounts
