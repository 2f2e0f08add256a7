package accounts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

// Test helper to create a new mock store
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewStore(db), mock, db
}

func TestStore_CreateAccount_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unique violation", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

		err := store.CreateAccount(ctx, &Account{AccountID: "a", AccountName: "dup", SecretToken: "s", CreatedBy: 1})
		require.ErrorIs(t, err, apierrors.ErrValidation)
		apiErr, _ := apierrors.AsError(err)
		assert.Contains(t, apiErr.Fields, "account_name")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("foreign key violation", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).
			WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})

		err := store.CreateAccount(ctx, &Account{AccountID: "a", AccountName: "x", SecretToken: "s", CreatedBy: 99})
		assert.ErrorIs(t, err, apierrors.ErrValidation)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(`INSERT INTO accounts`).WillReturnError(errors.New("connection reset"))

		err := store.CreateAccount(ctx, &Account{AccountID: "a", AccountName: "x", SecretToken: "s", CreatedBy: 1})
		require.Error(t, err)
		assert.Equal(t, apierrors.KindInternal, apierrors.KindOf(err))
		assert.Contains(t, err.Error(), "failed to create account")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_ListAccounts_Query(t *testing.T) {
	ctx := context.Background()
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "account_id", "account_name", "secret_token", "website", "created_by", "updated_by", "created_at", "updated_at",
	}).
		AddRow(1, "u-1", "Bank", "s1", "https://bank.example.com", 1, nil, now, now).
		AddRow(2, "u-2", "Bank Two", "s2", nil, 1, 3, now, now)

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE id IN \(\$1, \$2\) AND \(LOWER\(account_name\) LIKE \$3 ESCAPE '\\'\) ORDER BY created_at DESC, id ASC`).
		WithArgs(int64(1), int64(2), "%bank%").
		WillReturnRows(rows)

	accounts, err := store.ListAccounts(ctx, storage.ListFilter{
		AccountIDs: []int64{1, 2},
		Search:     "Bank",
		Ordering:   "-created_at",
	})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "https://bank.example.com", *accounts[0].Website)
	assert.Nil(t, accounts[0].UpdatedBy)
	assert.Nil(t, accounts[1].Website)
	assert.Equal(t, int64(3), *accounts[1].UpdatedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListAccounts_Error(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM accounts`).WillReturnError(sql.ErrConnDone)

	_, err := store.ListAccounts(context.Background(), storage.ListFilter{All: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateAndDelete_NotFound(t *testing.T) {
	ctx := context.Background()
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE accounts SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM accounts WHERE id = \$1`).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM account_members WHERE id = \$1`).WithArgs(int64(8)).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.UpdateAccount(ctx, &Account{ID: 7, AccountName: "x"}), apierrors.ErrNotFound)
	assert.ErrorIs(t, store.DeleteAccount(ctx, 7), apierrors.ErrNotFound)
	assert.ErrorIs(t, store.DeleteMember(ctx, 8), apierrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateMember_Duplicate(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO account_members`).
		WithArgs(int64(1), int64(2), int64(rbac.RoleAdmin), int64(3), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateMember(context.Background(), &Member{AccountID: 1, UserID: 2, RoleID: rbac.RoleAdmin, CreatedBy: 3})
	require.ErrorIs(t, err, apierrors.ErrValidation)
	assert.Contains(t, err.Error(), "member already exists")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MembershipsForUser_ScanError(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT account_id, role_id FROM account_members WHERE user_id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "role_id"}).AddRow("not-a-number", 1))

	_, err := store.MembershipsForUser(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan membership")
	require.NoError(t, mock.ExpectationsWereMet())
}
