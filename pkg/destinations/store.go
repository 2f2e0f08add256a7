package destinations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

const destinationColumns = `id, account_id, url, http_method, headers, created_by, updated_by, created_at, updated_at`

// Store persists destinations
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts d and fills in its id and timestamps
func (s *Store) Create(ctx context.Context, d *Destination) error {
	headers, err := encodeHeaders(d.Headers)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO destinations (account_id, url, http_method, headers, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id, created_at, updated_at
	`, d.AccountID, d.URL, d.HTTPMethod, headers, d.CreatedBy, d.UpdatedBy, now).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return translateError("failed to create destination", err)
	}
	return nil
}

// Get retrieves a destination by id
func (s *Store) Get(ctx context.Context, id int64) (*Destination, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+destinationColumns+` FROM destinations WHERE id = $1`, id)
	d, err := scanDestination(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("Not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}
	return d, nil
}

// List returns the destinations matching filter
func (s *Store) List(ctx context.Context, filter storage.ListFilter) ([]*Destination, error) {
	var args storage.Args
	query := `SELECT ` + destinationColumns + ` FROM destinations` +
		filter.Where(&args, "account_id", ListOptions) +
		filter.OrderClause(ListOptions)
	return s.query(ctx, query, args.Values()...)
}

// ListForAccount returns every destination of an account in id order
func (s *Store) ListForAccount(ctx context.Context, accountID int64) ([]*Destination, error) {
	return s.query(ctx, `SELECT `+destinationColumns+` FROM destinations WHERE account_id = $1 ORDER BY id ASC`, accountID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Destination, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}
	defer rows.Close()

	destinations := []*Destination{}
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan destination: %w", err)
		}
		destinations = append(destinations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}
	return destinations, nil
}

// Update writes every mutable field and refreshes UpdatedAt
func (s *Store) Update(ctx context.Context, d *Destination) error {
	headers, err := encodeHeaders(d.Headers)
	if err != nil {
		return err
	}

	d.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE destinations
		SET account_id = $1, url = $2, http_method = $3, headers = $4, updated_by = $5, updated_at = $6
		WHERE id = $7
	`, d.AccountID, d.URL, d.HTTPMethod, headers, d.UpdatedBy, d.UpdatedAt, d.ID)
	if err != nil {
		return translateError("failed to update destination", err)
	}
	return expectOneRow(result)
}

// Delete removes a destination; its delivery logs cascade
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM destinations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete destination: %w", err)
	}
	return expectOneRow(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDestination(row rowScanner) (*Destination, error) {
	d := &Destination{}
	var headers []byte
	if err := row.Scan(
		&d.ID, &d.AccountID, &d.URL, &d.HTTPMethod, &headers,
		&d.CreatedBy, &d.UpdatedBy, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Headers = map[string]string{}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &d.Headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

func encodeHeaders(headers map[string]string) (string, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return "", fmt.Errorf("failed to marshal headers: %w", err)
	}
	return string(data), nil
}

func translateError(msg string, err error) error {
	if storage.IsUniqueViolation(err) {
		return apierrors.ValidationFields(map[string]string{
			"url": "destination with this url already exists.",
		})
	}
	if storage.IsForeignKeyViolation(err) {
		return apierrors.ValidationFields(map[string]string{
			"account": "Invalid pk - object does not exist.",
		})
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apierrors.NotFound("Not found.")
	}
	return nil
}
