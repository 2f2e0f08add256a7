package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// dialect tokens substituted into migration SQL
var dialectTokens = map[string]map[string]string{
	DriverPostgres: {
		"{{pk}}":   "BIGSERIAL PRIMARY KEY",
		"{{ts}}":   "TIMESTAMPTZ",
		"{{json}}": "JSONB",
	},
	DriverSQLite: {
		"{{pk}}":   "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}":   "TIMESTAMP",
		"{{json}}": "TEXT",
	},
}

// GetMigrations returns all schema migrations rendered for the driver's dialect
func GetMigrations(driver string) []Migration {
	tokens := dialectTokens[Dialect(driver)]
	rendered := make([]Migration, len(migrations))
	for i, m := range migrations {
		sqlText := m.SQL
		for token, value := range tokens {
			sqlText = strings.ReplaceAll(sqlText, token, value)
		}
		rendered[i] = Migration{Version: m.Version, Description: m.Description, SQL: sqlText}
	}
	return rendered
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create users table",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id {{pk}},
				email VARCHAR(254) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
				updated_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
				created_at {{ts}} NOT NULL,
				updated_at {{ts}} NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_users_is_superuser ON users(is_superuser);
		`,
	},
	{
		Version:     2,
		Description: "Create auth_tokens table",
		SQL: `
			CREATE TABLE IF NOT EXISTS auth_tokens (
				id {{pk}},
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				token_hash VARCHAR(64) NOT NULL UNIQUE,
				token_prefix VARCHAR(32) NOT NULL,
				created_at {{ts}} NOT NULL,
				last_used_at {{ts}}
			);
			CREATE INDEX IF NOT EXISTS idx_auth_tokens_user_id ON auth_tokens(user_id);
		`,
	},
	{
		Version:     3,
		Description: "Create roles table and seed built-in roles",
		SQL: `
			CREATE TABLE IF NOT EXISTS roles (
				id {{pk}},
				role_name VARCHAR(50) NOT NULL UNIQUE,
				created_at {{ts}} NOT NULL,
				updated_at {{ts}} NOT NULL
			);
			INSERT INTO roles (id, role_name, created_at, updated_at)
			VALUES (1, 'Admin', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP),
			       (2, 'Normal User', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			ON CONFLICT DO NOTHING;
		`,
	},
	{
		Version:     4,
		Description: "Create accounts table",
		SQL: `
			CREATE TABLE IF NOT EXISTS accounts (
				id {{pk}},
				account_id VARCHAR(36) NOT NULL UNIQUE,
				account_name VARCHAR(255) NOT NULL UNIQUE,
				secret_token VARCHAR(64) NOT NULL UNIQUE,
				website VARCHAR(200),
				created_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				updated_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
				created_at {{ts}} NOT NULL,
				updated_at {{ts}} NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_accounts_created_by ON accounts(created_by);
			CREATE INDEX IF NOT EXISTS idx_accounts_updated_by ON accounts(updated_by);
			CREATE INDEX IF NOT EXISTS idx_accounts_created_at ON accounts(created_at);
			CREATE INDEX IF NOT EXISTS idx_accounts_updated_at ON accounts(updated_at);
		`,
	},
	{
		Version:     5,
		Description: "Create account_members table",
		SQL: `
			CREATE TABLE IF NOT EXISTS account_members (
				id {{pk}},
				account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
				created_by BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
				updated_by BIGINT REFERENCES users(id) ON DELETE RESTRICT,
				created_at {{ts}} NOT NULL,
				updated_at {{ts}} NOT NULL,
				UNIQUE(account_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_account_members_user_id ON account_members(user_id);
			CREATE INDEX IF NOT EXISTS idx_account_members_role_id ON account_members(role_id);
		`,
	},
	{
		Version:     6,
		Description: "Create destinations table",
		SQL: `
			CREATE TABLE IF NOT EXISTS destinations (
				id {{pk}},
				account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				url VARCHAR(500) NOT NULL UNIQUE,
				http_method VARCHAR(10) NOT NULL,
				headers {{json}} NOT NULL,
				created_by BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
				updated_by BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
				created_at {{ts}} NOT NULL,
				updated_at {{ts}} NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_destinations_account_id ON destinations(account_id);
		`,
	},
	{
		Version:     7,
		Description: "Create delivery_logs table",
		SQL: `
			CREATE TABLE IF NOT EXISTS delivery_logs (
				id {{pk}},
				account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				destination_id BIGINT NOT NULL REFERENCES destinations(id) ON DELETE CASCADE,
				event_id VARCHAR(255) NOT NULL,
				received_timestamp {{ts}} NOT NULL,
				processed_timestamp {{ts}},
				received_data {{json}} NOT NULL,
				status VARCHAR(10) NOT NULL,
				response_code INTEGER,
				error_message TEXT NOT NULL DEFAULT '',
				UNIQUE(event_id, destination_id)
			);
			CREATE INDEX IF NOT EXISTS idx_delivery_logs_account_id ON delivery_logs(account_id);
			CREATE INDEX IF NOT EXISTS idx_delivery_logs_received ON delivery_logs(received_timestamp);
		`,
	},
	{
		Version:     8,
		Description: "Create bootstrap_claims table",
		SQL: `
			CREATE TABLE IF NOT EXISTS bootstrap_claims (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
				claimed_at {{ts}} NOT NULL
			);
		`,
	},
}

// Migrate applies every pending migration inside its own transaction and
// records it in schema_migrations. Returns the number of migrations applied.
func Migrate(ctx context.Context, db *sql.DB, driver string) (int, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description VARCHAR(255) NOT NULL,
			applied_at `+dialectTokens[Dialect(driver)]["{{ts}}"]+` NOT NULL
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range GetMigrations(driver) {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return count, err
		}
		count++
	}

	if Dialect(driver) == DriverPostgres {
		// roles were seeded with explicit ids
		if _, err := db.ExecContext(ctx, `SELECT setval(pg_get_serial_sequence('roles', 'id'), (SELECT MAX(id) FROM roles))`); err != nil {
			return count, fmt.Errorf("failed to reset roles sequence: %w", err)
		}
	}

	return count, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)`,
		m.Version, m.Description, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	return tx.Commit()
}

func splitStatements(sqlText string) []string {
	var stmts []string
	for _, part := range strings.Split(sqlText, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
