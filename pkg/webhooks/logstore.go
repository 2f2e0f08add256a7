package webhooks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

const logColumns = `id, account_id, destination_id, event_id, received_timestamp, processed_timestamp, received_data, status, response_code, error_message`

// LogStore persists delivery logs
type LogStore struct {
	db *sql.DB
}

// NewLogStore creates a new LogStore
func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// Record writes the outcome of one delivery. A second delivery of the same
// event to the same destination updates only the outcome columns.
func (s *LogStore) Record(ctx context.Context, l *DeliveryLog) error {
	var responseCode sql.NullInt64
	if l.ResponseCode != nil {
		responseCode = sql.NullInt64{Int64: int64(*l.ResponseCode), Valid: true}
	}
	var processed sql.NullTime
	if l.ProcessedTimestamp != nil {
		processed = sql.NullTime{Time: l.ProcessedTimestamp.UTC(), Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO delivery_logs (account_id, destination_id, event_id, received_timestamp, processed_timestamp, received_data, status, response_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id, destination_id) DO UPDATE SET
			processed_timestamp = EXCLUDED.processed_timestamp,
			status = EXCLUDED.status,
			response_code = EXCLUDED.response_code,
			error_message = EXCLUDED.error_message
		RETURNING id
	`, l.AccountID, l.DestinationID, l.EventID, l.ReceivedTimestamp.UTC(), processed,
		string(l.ReceivedData), string(l.Status), responseCode, l.ErrorMessage).Scan(&l.ID)
	if err != nil {
		if storage.IsForeignKeyViolation(err) {
			return apierrors.Wrap(apierrors.KindValidation, "destination or account no longer exists", err)
		}
		return fmt.Errorf("failed to record delivery log: %w", err)
	}
	return nil
}

// Get retrieves a delivery log by id
func (s *LogStore) Get(ctx context.Context, id int64) (*DeliveryLog, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM delivery_logs WHERE id = $1`, id)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("Not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery log: %w", err)
	}
	return l, nil
}

// List returns the delivery logs matching filter
func (s *LogStore) List(ctx context.Context, filter storage.ListFilter) ([]*DeliveryLog, error) {
	var args storage.Args
	query := `SELECT ` + logColumns + ` FROM delivery_logs` +
		filter.Where(&args, "account_id", LogListOptions) +
		filter.OrderClause(LogListOptions)

	rows, err := s.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	defer rows.Close()

	logs := []*DeliveryLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	return logs, nil
}

// PurgeOlderThan deletes logs received before cutoff and returns how many were removed
func (s *LogStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM delivery_logs WHERE received_timestamp < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge delivery logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge delivery logs: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (*DeliveryLog, error) {
	var (
		l            DeliveryLog
		processed    sql.NullTime
		data         []byte
		status       string
		responseCode sql.NullInt64
	)
	err := row.Scan(&l.ID, &l.AccountID, &l.DestinationID, &l.EventID, &l.ReceivedTimestamp,
		&processed, &data, &status, &responseCode, &l.ErrorMessage)
	if err != nil {
		return nil, err
	}
	l.ReceivedTimestamp = l.ReceivedTimestamp.UTC()
	l.ProcessedTimestamp = storage.TimePtr(processed)
	l.ReceivedData = data
	l.Status = DeliveryStatus(status)
	if responseCode.Valid {
		code := int(responseCode.Int64)
		l.ResponseCode = &code
	}
	return &l, nil
}
