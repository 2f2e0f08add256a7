package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

const userColumns = `id, email, password_hash, is_superuser, is_active, created_by, updated_by, created_at, updated_at`

// Store persists users
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts user and fills in its id and timestamps
func (s *Store) Create(ctx context.Context, user *auth.User) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, is_superuser, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at
	`, user.Email, user.PasswordHash, user.IsSuperuser, user.IsActive, user.CreatedBy, now).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return translateError("failed to create user", err)
	}
	return nil
}

// CreateFirst inserts user as the first user of the system. Only one
// caller can ever claim the bootstrap row; the others get false and
// nothing is written.
func (s *Store) CreateFirst(ctx context.Context, user *auth.User) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, is_superuser, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at
	`, user.Email, user.PasswordHash, user.IsSuperuser, user.IsActive, user.CreatedBy, now).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return false, translateError("failed to create user", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bootstrap_claims (id, user_id, claimed_at) VALUES (1, $1, $2)
	`, user.ID, now); err != nil {
		if storage.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim bootstrap: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if storage.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// Get retrieves a user by id
func (s *Store) Get(ctx context.Context, id int64) (*auth.User, error) {
	return s.getUser(ctx, "id", id)
}

// GetByEmail retrieves a user by normalized email
func (s *Store) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *Store) getUser(ctx context.Context, column string, value any) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("Not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns every user, or only onlyID when it is non-zero
func (s *Store) List(ctx context.Context, onlyID int64) ([]*auth.User, error) {
	var args storage.Args
	query := `SELECT ` + userColumns + ` FROM users`
	if onlyID != 0 {
		query += ` WHERE id = ` + args.Add(onlyID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*auth.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update writes email, password hash and updated_by
func (s *Store) Update(ctx context.Context, user *auth.User) error {
	user.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = $1, password_hash = $2, updated_by = $3, updated_at = $4
		WHERE id = $5
	`, user.Email, user.PasswordHash, user.UpdatedBy, user.UpdatedAt, user.ID)
	if err != nil {
		return translateError("failed to update user", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apierrors.NotFound("Not found.")
	}
	return nil
}

// Delete removes a user and its tokens in one transaction. Rows that
// reference the user weakly have the reference cleared; memberships and
// accounts the user created cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if storage.IsForeignKeyViolation(err) {
			return apierrors.Policy("Cannot delete a user who still created account members or destinations.")
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apierrors.NotFound("Not found.")
	}

	if err := tx.Commit(); err != nil {
		if storage.IsForeignKeyViolation(err) {
			return apierrors.Policy("Cannot delete a user who still created account members or destinations.")
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of users
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CountSuperusers returns the number of superusers
func (s *Store) CountSuperusers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_superuser = $1`, true).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count superusers: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	user := &auth.User{}
	var createdBy, updatedBy sql.NullInt64
	if err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.IsSuperuser, &user.IsActive,
		&createdBy, &updatedBy, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.CreatedBy = storage.Int64Ptr(createdBy)
	user.UpdatedBy = storage.Int64Ptr(updatedBy)
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func translateError(msg string, err error) error {
	if storage.IsUniqueViolation(err) {
		return apierrors.ValidationFields(map[string]string{
			"email": "user with this email already exists.",
		})
	}
	return fmt.Errorf("%s: %w", msg, err)
}
