// Package storage opens the relational database and owns its schema.
//
// Two drivers are supported: PostgreSQL (github.com/lib/pq) for production
// and SQLite (github.com/mattn/go-sqlite3) for development and tests. The
// stores in the domain packages write one SQL dialect that both accept:
// $N placeholders, RETURNING and ON CONFLICT. Timestamps are always set
// from Go in UTC.
//
// # Opening a database
//
//	db, err := storage.Open(ctx, storage.Config{
//		Driver: storage.DriverPostgres,
//		URL:    "postgres://localhost/hookrelay?sslmode=disable",
//	})
//
// SQLite connections get foreign keys switched on. In-memory SQLite
// databases are pinned to a single connection, so callers must not start
// a query while the rows of another are still open.
//
// # Migrations
//
// Migrate applies the pending versions in order and records them in
// schema_migrations. Migration SQL uses {{pk}}, {{ts}} and {{json}}
// tokens that are rendered per dialect.
//
//	applied, err := storage.Migrate(ctx, db, cfg.Driver)
//
// # Listing
//
// ParseListParams turns query parameters into a ListFilter: exact-match
// filters, a search term and an ordering, all checked against the
// ListOptions of the resource. Where renders the filter together with an
// optional tenant scope column.
//
// # Constraint errors
//
// IsUniqueViolation and IsForeignKeyViolation classify driver errors from
// either backend so stores can map them to apierrors kinds.
package storage
