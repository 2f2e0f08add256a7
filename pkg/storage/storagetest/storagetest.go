// Package storagetest provides database fixtures for tests across packages.
package storagetest

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/storage"
)

// NewSQLite opens a migrated in-memory SQLite database that is closed when
// the test ends.
func NewSQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := storage.Open(ctx, storage.Config{Driver: storage.DriverSQLite, URL: "file::memory:"})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := storage.Migrate(ctx, db, storage.DriverSQLite); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// SkipIfNoPostgres skips the test if HOOKRELAY_TEST_POSTGRES_URL is not set.
func SkipIfNoPostgres(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("HOOKRELAY_TEST_POSTGRES_URL")
	if dbURL == "" {
		t.Skip("Skipping test: HOOKRELAY_TEST_POSTGRES_URL environment variable not set (database not available)")
	}
	return dbURL
}

// NewPostgres opens and migrates the database named by
// HOOKRELAY_TEST_POSTGRES_URL, skipping the test when it is unset. The
// database is shared, so tests must use unique emails and account ids.
func NewPostgres(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := storage.Open(ctx, storage.Config{Driver: storage.DriverPostgres, URL: SkipIfNoPostgres(t), MaxConns: 4, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := storage.Migrate(ctx, db, storage.DriverPostgres); err != nil {
		t.Fatalf("Failed to migrate postgres: %v", err)
	}
	return db
}

// InsertUser inserts a user row directly and returns its id. The password
// hash is not a valid bcrypt hash; use the users service when a login is needed.
func InsertUser(t *testing.T, db *sql.DB, email string, superuser bool) int64 {
	t.Helper()

	now := time.Now().UTC()
	var id int64
	err := db.QueryRow(`
		INSERT INTO users (email, password_hash, is_superuser, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, email, "!", superuser, true, now, now).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert user %s: %v", email, err)
	}
	return id
}

// InsertAccount inserts an account owned by createdBy and returns its row id.
func InsertAccount(t *testing.T, db *sql.DB, name, accountID, secret string, createdBy int64) int64 {
	t.Helper()

	now := time.Now().UTC()
	var id int64
	err := db.QueryRow(`
		INSERT INTO accounts (account_id, account_name, secret_token, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, accountID, name, secret, createdBy, now, now).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert account %s: %v", name, err)
	}
	return id
}

// InsertMember binds userID to accountID with roleID.
func InsertMember(t *testing.T, db *sql.DB, accountID, userID, roleID, createdBy int64) int64 {
	t.Helper()

	now := time.Now().UTC()
	var id int64
	err := db.QueryRow(`
		INSERT INTO account_members (account_id, user_id, role_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, accountID, userID, roleID, createdBy, now, now).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert member: %v", err)
	}
	return id
}

// InsertDestination inserts a destination with empty headers.
func InsertDestination(t *testing.T, db *sql.DB, accountID int64, url, method string, createdBy int64) int64 {
	t.Helper()

	now := time.Now().UTC()
	var id int64
	err := db.QueryRow(`
		INSERT INTO destinations (account_id, url, http_method, headers, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $6)
		RETURNING id
	`, accountID, url, method, "{}", createdBy, now).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert destination %s: %v", url, err)
	}
	return id
}
