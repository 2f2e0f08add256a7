package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

const accountColumns = `id, account_id, account_name, secret_token, website, created_by, updated_by, created_at, updated_at`

// Store persists accounts, memberships and roles
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SeedRoles inserts the built-in roles. Existing rows are left alone.
func (s *Store) SeedRoles(ctx context.Context) error {
	now := time.Now().UTC()
	for _, role := range rbac.BuiltInRoles {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO roles (id, role_name, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT DO NOTHING
		`, int64(role), role.String(), now)
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role, err)
		}
	}
	return nil
}

// ListRoles returns every role in id order
func (s *Store) ListRoles(ctx context.Context) ([]*rbac.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, role_name, created_at, updated_at FROM roles ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*rbac.Role
	for rows.Next() {
		role := &rbac.Role{}
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// GetRole retrieves a role by id
func (s *Store) GetRole(ctx context.Context, id int64) (*rbac.Role, error) {
	role := &rbac.Role{}
	err := s.db.QueryRowContext(ctx, `SELECT id, role_name, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("Not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// CreateAccount inserts account and fills in its id and timestamps
func (s *Store) CreateAccount(ctx context.Context, account *Account) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (account_id, account_name, secret_token, website, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at
	`, account.AccountID, account.AccountName, account.SecretToken, account.Website, account.CreatedBy, now).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return translateAccountError("failed to create account", err)
	}
	return nil
}

// GetAccountByAccountID retrieves an account by its public uuid
func (s *Store) GetAccountByAccountID(ctx context.Context, accountID string) (*Account, error) {
	return s.getAccount(ctx, "account_id", accountID)
}

// GetAccount retrieves an account by row id
func (s *Store) GetAccount(ctx context.Context, id int64) (*Account, error) {
	return s.getAccount(ctx, "id", id)
}

// GetAccountBySecret resolves an ingestion secret to its account
func (s *Store) GetAccountBySecret(ctx context.Context, secret string) (*Account, error) {
	return s.getAccount(ctx, "secret_token", secret)
}

func (s *Store) getAccount(ctx context.Context, column string, value any) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`, value)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("Not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns the accounts matching filter. The scope restricts
// by account row id.
func (s *Store) ListAccounts(ctx context.Context, filter storage.ListFilter) ([]*Account, error) {
	var args storage.Args
	query := `SELECT ` + accountColumns + ` FROM accounts` +
		filter.Where(&args, "id", AccountListOptions) +
		filter.OrderClause(AccountListOptions)

	rows, err := s.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount writes the mutable account fields and refreshes UpdatedAt
func (s *Store) UpdateAccount(ctx context.Context, account *Account) error {
	account.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET account_name = $1, website = $2, updated_by = $3, updated_at = $4
		WHERE id = $5
	`, account.AccountName, account.Website, account.UpdatedBy, account.UpdatedAt, account.ID)
	if err != nil {
		return translateAccountError("failed to update account", err)
	}
	return expectOneRow(result, "failed to update account")
}

// DeleteAccount removes an account. Memberships, destinations and delivery
// logs cascade.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return expectOneRow(result, "failed to delete account")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	account := &Account{}
	var website sql.NullString
	var updatedBy sql.NullInt64
	if err := row.Scan(
		&account.ID, &account.AccountID, &account.AccountName, &account.SecretToken, &website,
		&account.CreatedBy, &updatedBy, &account.CreatedAt, &account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	account.Website = storage.StringPtr(website)
	account.UpdatedBy = storage.Int64Ptr(updatedBy)
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}

func translateAccountError(msg string, err error) error {
	if storage.IsUniqueViolation(err) {
		return apierrors.ValidationFields(map[string]string{
			"account_name": "account with this account name already exists.",
		})
	}
	if storage.IsForeignKeyViolation(err) {
		return apierrors.Validation("referenced user does not exist")
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func expectOneRow(result sql.Result, msg string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get rows affected: %w", msg, err)
	}
	if rowsAffected == 0 {
		return apierrors.NotFound("Not found.")
	}
	return nil
}
