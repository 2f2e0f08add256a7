package accounts

import (
	"context"
	"database/sql"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/storage/storagetest"
	"github.com/platinummonkey/hookrelay/pkg/users"
)

type fixture struct {
	db       *sql.DB
	store    *Store
	svc      *Service
	caches   *cache.Group
	resolver *rbac.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	db := storagetest.NewSQLite(t)
	store := NewStore(db)
	caches := cache.NewGroup(cache.NewMemoryBackend(100, time.Minute), time.Minute, nil, logger)
	return &fixture{
		db:       db,
		store:    store,
		svc:      NewService(store, caches, logger),
		caches:   caches,
		resolver: rbac.NewResolver(store),
	}
}

// principal resolves the principal of a user as the auth middleware would
func (f *fixture) principal(t *testing.T, userID int64, superuser bool) *rbac.Principal {
	t.Helper()
	p, err := f.resolver.Resolve(context.Background(), &auth.User{ID: userID, IsSuperuser: superuser})
	require.NoError(t, err)
	return p
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func rolePtr(r rbac.RoleID) *rbac.RoleID { return &r }

func TestService_CreateAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	userID := storagetest.InsertUser(t, f.db, "user@example.com", false)
	root := f.principal(t, rootID, true)

	t.Run("superuser creates account", func(t *testing.T) {
		account, err := f.svc.CreateAccount(ctx, root, AccountInput{
			AccountName: strPtr("Test Account"),
			Website:     strPtr("https://example.com"),
		})
		require.NoError(t, err)
		assert.NotZero(t, account.ID)
		_, err = uuid.Parse(account.AccountID)
		assert.NoError(t, err)
		assert.Len(t, account.SecretToken, 64)
		assert.Equal(t, rootID, account.CreatedBy)
		assert.Nil(t, account.UpdatedBy)
		require.NotNil(t, account.Website)
		assert.Equal(t, "https://example.com", *account.Website)
	})

	t.Run("duplicate name is a field error", func(t *testing.T) {
		_, err := f.svc.CreateAccount(ctx, root, AccountInput{AccountName: strPtr("Test Account")})
		require.ErrorIs(t, err, apierrors.ErrValidation)
		apiErr, _ := apierrors.AsError(err)
		assert.Contains(t, apiErr.Fields, "account_name")
	})

	t.Run("validation", func(t *testing.T) {
		_, err := f.svc.CreateAccount(ctx, root, AccountInput{Website: strPtr("ftp://example.com")})
		require.ErrorIs(t, err, apierrors.ErrValidation)
		apiErr, _ := apierrors.AsError(err)
		assert.Equal(t, "This field is required.", apiErr.Fields["account_name"])
		assert.Equal(t, "Enter a valid URL.", apiErr.Fields["website"])
	})

	t.Run("plain user is forbidden", func(t *testing.T) {
		_, err := f.svc.CreateAccount(ctx, f.principal(t, userID, false), AccountInput{AccountName: strPtr("Test Account 2")})
		assert.ErrorIs(t, err, apierrors.ErrForbidden)
	})

	t.Run("anonymous is unauthenticated", func(t *testing.T) {
		_, err := f.svc.CreateAccount(ctx, rbac.Anonymous(), AccountInput{AccountName: strPtr("Test Account 2")})
		assert.ErrorIs(t, err, apierrors.ErrUnauthenticated)
	})
}

func TestService_BankingScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	xID := storagetest.InsertUser(t, f.db, "x@example.com", false)
	yID := storagetest.InsertUser(t, f.db, "y@example.com", false)
	root := f.principal(t, rootID, true)

	banking, err := f.svc.CreateAccount(ctx, root, AccountInput{AccountName: strPtr("Banking")})
	require.NoError(t, err)
	_, err = f.svc.CreateMember(ctx, root, MemberInput{
		AccountID: int64Ptr(banking.ID),
		UserID:    int64Ptr(yID),
		RoleID:    rolePtr(rbac.RoleAdmin),
	})
	require.NoError(t, err)

	_, err = f.svc.ListAccounts(ctx, f.principal(t, xID, false), url.Values{})
	assert.ErrorIs(t, err, apierrors.ErrForbidden)

	accounts, err := f.svc.ListAccounts(ctx, f.principal(t, yID, false), url.Values{})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Banking", accounts[0].AccountName)
}

func TestService_ListAccounts_NonMemberAlwaysForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	outsiderID := storagetest.InsertUser(t, f.db, "outsider@example.com", false)
	for _, name := range []string{"A", "B", "C"} {
		storagetest.InsertAccount(t, f.db, name, uuid.NewString(), name+"-secret", rootID)
	}

	outsider := f.principal(t, outsiderID, false)
	for _, params := range []url.Values{
		{},
		{"search": {"A"}},
		{"ordering": {"-created_at"}},
		{"account_name": {"B"}},
	} {
		_, err := f.svc.ListAccounts(ctx, outsider, params)
		assert.ErrorIs(t, err, apierrors.ErrForbidden, "params %v", params)
	}
}

func TestService_ListAccounts_Scoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	memberID := storagetest.InsertUser(t, f.db, "member@example.com", false)

	bank := storagetest.InsertAccount(t, f.db, "Bank of Tests", uuid.NewString(), "s1", rootID)
	storagetest.InsertAccount(t, f.db, "Shop", uuid.NewString(), "s2", rootID)
	savings := storagetest.InsertAccount(t, f.db, "Savings Bank", uuid.NewString(), "s3", rootID)
	storagetest.InsertMember(t, f.db, bank, memberID, int64(rbac.RoleNormalUser), rootID)
	storagetest.InsertMember(t, f.db, savings, memberID, int64(rbac.RoleNormalUser), rootID)

	member := f.principal(t, memberID, false)

	accounts, err := f.svc.ListAccounts(ctx, member, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bank of Tests", "Savings Bank"}, accountNames(accounts))

	accounts, err = f.svc.ListAccounts(ctx, member, url.Values{"ordering": {"-created_at"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Savings Bank", "Bank of Tests"}, accountNames(accounts))

	accounts, err = f.svc.ListAccounts(ctx, member, url.Values{"search": {"SAVINGS"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Savings Bank"}, accountNames(accounts))

	_, err = f.svc.ListAccounts(ctx, member, url.Values{"account_name": {"Shop"}})
	assert.ErrorIs(t, err, apierrors.ErrForbidden)

	_, err = f.svc.ListAccounts(ctx, member, url.Values{"created_by": {"root"}})
	assert.ErrorIs(t, err, apierrors.ErrValidation)

	accounts, err = f.svc.ListAccounts(ctx, f.principal(t, rootID, true), url.Values{})
	require.NoError(t, err)
	assert.Len(t, accounts, 3)

	// wildcards in a search term match literally
	_, err = f.svc.ListAccounts(ctx, f.principal(t, rootID, true), url.Values{"search": {"_"}})
	assert.ErrorIs(t, err, apierrors.ErrForbidden)
}

func TestService_WritesInvalidateCachedListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	memberID := storagetest.InsertUser(t, f.db, "member@example.com", false)
	root := f.principal(t, rootID, true)

	first := storagetest.InsertAccount(t, f.db, "First", uuid.NewString(), "s1", rootID)
	storagetest.InsertMember(t, f.db, first, memberID, int64(rbac.RoleNormalUser), rootID)

	member := f.principal(t, memberID, false)
	accounts, err := f.svc.ListAccounts(ctx, member, url.Values{})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	members, err := f.svc.ListMembers(ctx, member, url.Values{})
	require.NoError(t, err)
	require.Len(t, members, 1)

	// Rows written behind the service's back are not seen until a write sweeps the cache
	second := storagetest.InsertAccount(t, f.db, "Second", uuid.NewString(), "s2", rootID)
	storagetest.InsertMember(t, f.db, second, memberID, int64(rbac.RoleNormalUser), rootID)
	member = f.principal(t, memberID, false)
	accounts, err = f.svc.ListAccounts(ctx, member, url.Values{})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	_, err = f.svc.UpdateAccount(ctx, root, accounts[0].AccountID, AccountInput{Website: strPtr("https://first.example.com")}, true)
	require.NoError(t, err)

	accounts, err = f.svc.ListAccounts(ctx, member, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second"}, accountNames(accounts))
	assert.Equal(t, "https://first.example.com", *accounts[0].Website)

	members, err = f.svc.ListMembers(ctx, member, url.Values{})
	require.NoError(t, err)
	assert.Len(t, members, 2)

	third, err := f.svc.CreateAccount(ctx, root, AccountInput{AccountName: strPtr("Third")})
	require.NoError(t, err)
	_, err = f.svc.CreateMember(ctx, root, MemberInput{
		AccountID: int64Ptr(third.ID),
		UserID:    int64Ptr(memberID),
		RoleID:    rolePtr(rbac.RoleNormalUser),
	})
	require.NoError(t, err)

	member = f.principal(t, memberID, false)
	accounts, err = f.svc.ListAccounts(ctx, member, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second", "Third"}, accountNames(accounts))
}

func TestService_UserDeletionSweepsCachedListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	logger, _ := test.NewNullLogger()
	userSvc := users.NewService(users.NewStore(f.db), users.NewTokenStore(f.db), auth.NewPasswordHasher(bcrypt.MinCost), f.caches, logger)

	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	creatorID := storagetest.InsertUser(t, f.db, "creator@example.com", true)
	memberID := storagetest.InsertUser(t, f.db, "member@example.com", false)
	root := f.principal(t, rootID, true)

	banking := storagetest.InsertAccount(t, f.db, "Banking", uuid.NewString(), "s1", rootID)
	storagetest.InsertAccount(t, f.db, "Retail", uuid.NewString(), "s2", creatorID)
	storagetest.InsertMember(t, f.db, banking, memberID, int64(rbac.RoleNormalUser), rootID)

	accounts, err := f.svc.ListAccounts(ctx, root, url.Values{})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	members, err := f.svc.ListMembers(ctx, root, url.Values{})
	require.NoError(t, err)
	require.Len(t, members, 1)

	require.NoError(t, userSvc.Delete(ctx, root, memberID))
	require.NoError(t, userSvc.Delete(ctx, root, creatorID))

	accounts, err = f.svc.ListAccounts(ctx, root, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Banking"}, accountNames(accounts))
	_, err = f.svc.ListMembers(ctx, root, url.Values{})
	assert.ErrorIs(t, err, apierrors.ErrForbidden, "the cached membership must not be served")
}

func TestService_GetAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	memberID := storagetest.InsertUser(t, f.db, "member@example.com", false)
	loneID := storagetest.InsertUser(t, f.db, "lone@example.com", false)

	mineUUID, otherUUID := uuid.NewString(), uuid.NewString()
	mine := storagetest.InsertAccount(t, f.db, "Mine", mineUUID, "s1", rootID)
	storagetest.InsertAccount(t, f.db, "Other", otherUUID, "s2", rootID)
	storagetest.InsertMember(t, f.db, mine, memberID, int64(rbac.RoleNormalUser), rootID)
	member := f.principal(t, memberID, false)

	account, err := f.svc.GetAccount(ctx, member, mineUUID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", account.AccountName)

	_, err = f.svc.GetAccount(ctx, member, otherUUID)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)

	_, err = f.svc.GetAccount(ctx, member, "not-a-uuid")
	assert.ErrorIs(t, err, apierrors.ErrNotFound)

	_, err = f.svc.GetAccount(ctx, f.principal(t, loneID, false), mineUUID)
	assert.ErrorIs(t, err, apierrors.ErrForbidden)

	_, err = f.svc.GetAccount(ctx, rbac.Anonymous(), mineUUID)
	assert.ErrorIs(t, err, apierrors.ErrUnauthenticated)
}

func TestService_UpdateAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	memberID := storagetest.InsertUser(t, f.db, "member@example.com", false)

	acctUUID := uuid.NewString()
	acct := storagetest.InsertAccount(t, f.db, "Test Account 2", acctUUID, "s1", rootID)
	storagetest.InsertMember(t, f.db, acct, memberID, int64(rbac.RoleNormalUser), rootID)
	member := f.principal(t, memberID, false)

	updated, err := f.svc.UpdateAccount(ctx, member, acctUUID, AccountInput{
		AccountName: strPtr("Banking Account"),
		Website:     strPtr("https://example.com"),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "Banking Account", updated.AccountName)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, memberID, *updated.UpdatedBy)

	stored, err := f.store.GetAccountByAccountID(ctx, acctUUID)
	require.NoError(t, err)
	assert.Equal(t, "Banking Account", stored.AccountName)
	assert.Equal(t, memberID, *stored.UpdatedBy)

	t.Run("partial update keeps other fields", func(t *testing.T) {
		updated, err := f.svc.UpdateAccount(ctx, member, acctUUID, AccountInput{AccountName: strPtr("Renamed")}, true)
		require.NoError(t, err)
		require.NotNil(t, updated.Website)
		assert.Equal(t, "https://example.com", *updated.Website)
	})

	t.Run("full update requires name", func(t *testing.T) {
		_, err := f.svc.UpdateAccount(ctx, member, acctUUID, AccountInput{}, false)
		assert.ErrorIs(t, err, apierrors.ErrValidation)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := f.svc.UpdateAccount(ctx, rbac.Anonymous(), acctUUID, AccountInput{}, true)
		assert.ErrorIs(t, err, apierrors.ErrUnauthenticated)
	})
}

func TestService_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	memberID := storagetest.InsertUser(t, f.db, "member@example.com", false)

	acctUUID := uuid.NewString()
	acct := storagetest.InsertAccount(t, f.db, "Doomed", acctUUID, "s1", rootID)
	storagetest.InsertMember(t, f.db, acct, memberID, int64(rbac.RoleNormalUser), rootID)

	err := f.svc.DeleteAccount(ctx, f.principal(t, memberID, false), acctUUID)
	assert.ErrorIs(t, err, apierrors.ErrForbidden)

	err = f.svc.DeleteAccount(ctx, f.principal(t, memberID, false), uuid.NewString())
	assert.ErrorIs(t, err, apierrors.ErrForbidden, "permission is checked before lookup")

	root := f.principal(t, rootID, true)
	require.NoError(t, f.svc.DeleteAccount(ctx, root, acctUUID))

	_, err = f.store.GetAccountByAccountID(ctx, acctUUID)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
	memberships, err := f.store.MembershipsForUser(ctx, memberID)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	err = f.svc.DeleteAccount(ctx, root, acctUUID)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}

func TestService_CreateMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	adminID := storagetest.InsertUser(t, f.db, "admin@example.com", false)
	userID := storagetest.InsertUser(t, f.db, "user@example.com", false)

	home := storagetest.InsertAccount(t, f.db, "Home", uuid.NewString(), "s1", rootID)
	away := storagetest.InsertAccount(t, f.db, "Away", uuid.NewString(), "s2", rootID)
	storagetest.InsertMember(t, f.db, home, adminID, int64(rbac.RoleAdmin), rootID)
	admin := f.principal(t, adminID, false)

	t.Run("admin in any account may add members anywhere", func(t *testing.T) {
		member, err := f.svc.CreateMember(ctx, admin, MemberInput{
			AccountID: int64Ptr(away),
			UserID:    int64Ptr(userID),
			RoleID:    rolePtr(rbac.RoleNormalUser),
		})
		require.NoError(t, err)
		assert.Equal(t, away, member.AccountID)
		assert.Equal(t, adminID, member.CreatedBy)
	})

	t.Run("second membership for the same pair is rejected", func(t *testing.T) {
		_, err := f.svc.CreateMember(ctx, admin, MemberInput{
			AccountID: int64Ptr(away),
			UserID:    int64Ptr(userID),
			RoleID:    rolePtr(rbac.RoleAdmin),
		})
		require.ErrorIs(t, err, apierrors.ErrValidation)

		var count int
		require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM account_members WHERE account_id = $1 AND user_id = $2`, away, userID).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := f.svc.CreateMember(ctx, admin, MemberInput{
			AccountID: int64Ptr(home),
			UserID:    int64Ptr(userID),
			RoleID:    rolePtr(rbac.RoleID(9)),
		})
		require.ErrorIs(t, err, apierrors.ErrValidation)
		apiErr, _ := apierrors.AsError(err)
		assert.Contains(t, apiErr.Fields, "role")
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.svc.CreateMember(ctx, admin, MemberInput{
			AccountID: int64Ptr(home),
			UserID:    int64Ptr(9999),
			RoleID:    rolePtr(rbac.RoleNormalUser),
		})
		assert.ErrorIs(t, err, apierrors.ErrValidation)
	})

	t.Run("normal user is forbidden", func(t *testing.T) {
		_, err := f.svc.CreateMember(ctx, f.principal(t, userID, false), MemberInput{
			AccountID: int64Ptr(home),
			UserID:    int64Ptr(userID),
			RoleID:    rolePtr(rbac.RoleAdmin),
		})
		assert.ErrorIs(t, err, apierrors.ErrForbidden)
	})
}

func TestService_UpdateAndDeleteMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	userID := storagetest.InsertUser(t, f.db, "user@example.com", false)

	acct := storagetest.InsertAccount(t, f.db, "Acct", uuid.NewString(), "s1", rootID)
	memberRow := storagetest.InsertMember(t, f.db, acct, userID, int64(rbac.RoleNormalUser), rootID)
	user := f.principal(t, userID, false)
	root := f.principal(t, rootID, true)

	_, err := f.svc.UpdateMember(ctx, user, 424242, MemberInput{RoleID: rolePtr(rbac.RoleAdmin)}, true)
	assert.ErrorIs(t, err, apierrors.ErrForbidden, "permission is checked before lookup")

	err = f.svc.DeleteMember(ctx, user, memberRow)
	assert.ErrorIs(t, err, apierrors.ErrForbidden)

	updated, err := f.svc.UpdateMember(ctx, root, memberRow, MemberInput{RoleID: rolePtr(rbac.RoleAdmin)}, true)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, updated.RoleID)
	assert.Equal(t, userID, updated.UserID)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, rootID, *updated.UpdatedBy)

	member, err := f.svc.GetMember(ctx, f.principal(t, userID, false), memberRow)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, member.RoleID)

	_, err = f.svc.UpdateMember(ctx, root, 424242, MemberInput{}, true)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)

	require.NoError(t, f.svc.DeleteMember(ctx, root, memberRow))
	_, err = f.store.GetMember(ctx, memberRow)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}

func TestService_ListMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	aliceID := storagetest.InsertUser(t, f.db, "alice@example.com", false)
	bobID := storagetest.InsertUser(t, f.db, "bob@example.com", false)
	carolID := storagetest.InsertUser(t, f.db, "carol@example.com", false)

	shared := storagetest.InsertAccount(t, f.db, "Shared", uuid.NewString(), "s1", rootID)
	private := storagetest.InsertAccount(t, f.db, "Private", uuid.NewString(), "s2", rootID)
	storagetest.InsertMember(t, f.db, shared, aliceID, int64(rbac.RoleNormalUser), rootID)
	storagetest.InsertMember(t, f.db, shared, bobID, int64(rbac.RoleNormalUser), rootID)
	storagetest.InsertMember(t, f.db, private, bobID, int64(rbac.RoleNormalUser), rootID)

	members, err := f.svc.ListMembers(ctx, f.principal(t, aliceID, false), url.Values{})
	require.NoError(t, err)
	assert.Len(t, members, 2)
	for _, m := range members {
		assert.Equal(t, shared, m.AccountID)
	}

	members, err = f.svc.ListMembers(ctx, f.principal(t, bobID, false), url.Values{"user": {"2"}})
	require.NoError(t, err)
	assert.Len(t, members, 1)

	_, err = f.svc.ListMembers(ctx, f.principal(t, carolID, false), url.Values{})
	assert.ErrorIs(t, err, apierrors.ErrForbidden)

	_, err = f.svc.GetMember(ctx, f.principal(t, aliceID, false), 3)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}

func TestService_Roles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := storagetest.InsertUser(t, f.db, "user@example.com", false)

	_, err := f.svc.ListRoles(ctx, rbac.Anonymous())
	assert.ErrorIs(t, err, apierrors.ErrUnauthenticated)

	require.NoError(t, f.store.SeedRoles(ctx))

	roles, err := f.svc.ListRoles(ctx, f.principal(t, userID, false))
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, rbac.RoleAdmin, roles[0].ID)
	assert.Equal(t, "Admin", roles[0].Name)
	assert.Equal(t, "Normal User", roles[1].Name)

	role, err := f.svc.GetRole(ctx, f.principal(t, userID, false), 2)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleNormalUser, role.ID)

	_, err = f.svc.GetRole(ctx, f.principal(t, userID, false), 3)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}

func TestStore_MembershipsForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	userID := storagetest.InsertUser(t, f.db, "user@example.com", false)
	a := storagetest.InsertAccount(t, f.db, "A", uuid.NewString(), "s1", rootID)
	b := storagetest.InsertAccount(t, f.db, "B", uuid.NewString(), "s2", rootID)
	storagetest.InsertMember(t, f.db, a, userID, int64(rbac.RoleAdmin), rootID)
	storagetest.InsertMember(t, f.db, b, userID, int64(rbac.RoleNormalUser), rootID)

	memberships, err := f.store.MembershipsForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []rbac.Membership{
		{AccountID: a, RoleID: rbac.RoleAdmin},
		{AccountID: b, RoleID: rbac.RoleNormalUser},
	}, memberships)

	p := f.principal(t, userID, false)
	assert.Equal(t, rbac.KindAccountAdmin, p.Kind())

	none, err := f.store.MembershipsForUser(ctx, rootID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_GetAccountBySecret(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rootID := storagetest.InsertUser(t, f.db, "root@example.com", true)
	storagetest.InsertAccount(t, f.db, "Tenant", uuid.NewString(), "abcdef", rootID)

	account, err := f.store.GetAccountBySecret(ctx, "abcdef")
	require.NoError(t, err)
	assert.Equal(t, "Tenant", account.AccountName)

	_, err = f.store.GetAccountBySecret(ctx, "ABCDEF")
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}

func accountNames(accounts []*Account) []string {
	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = a.AccountName
	}
	return names
}
