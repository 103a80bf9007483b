package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opsdesk/opsdesk/internal/dispatch"
)

// ErrInvalidRecord means a record is missing required fields.
var ErrInvalidRecord = errors.New("invalid dispatch record")

// DispatchRepository persists dispatch records.
type DispatchRepository struct {
	db *DB
}

// NewDispatchRepository creates a repository over the given database.
func NewDispatchRepository(db *DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// Save inserts one dispatch record. Records are immutable; there is no
// update path.
func (r *DispatchRepository) Save(ctx context.Context, record dispatch.Record) error {
	if record.ID == "" || record.Status == "" {
		return ErrInvalidRecord
	}

	var responseJSON *string
	if len(record.Response) > 0 {
		s := string(record.Response)
		responseJSON = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_records (
			id, to_display, subject, body, sent_at, status, response_json
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.To,
		record.Subject,
		record.Body,
		record.SentAt.UTC().Format(time.RFC3339Nano),
		record.Status,
		responseJSON,
	)
	if err != nil {
		return fmt.Errorf("insert dispatch record: %w", err)
	}
	return nil
}

// List returns records newest first, up to limit (0 means no limit).
func (r *DispatchRepository) List(ctx context.Context, limit int) ([]dispatch.Record, error) {
	query := `
		SELECT id, to_display, subject, body, sent_at, status, response_json
		FROM dispatch_records
		ORDER BY sent_at DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT ?", limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("query dispatch records: %w", err)
	}
	defer rows.Close()

	var records []dispatch.Record
	for rows.Next() {
		var record dispatch.Record
		var sentAt string
		var responseJSON sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.To,
			&record.Subject,
			&record.Body,
			&sentAt,
			&record.Status,
			&responseJSON,
		); err != nil {
			return nil, fmt.Errorf("scan dispatch record: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, sentAt)
		if err != nil {
			return nil, fmt.Errorf("parse sent_at %q: %w", sentAt, err)
		}
		record.SentAt = parsed

		if responseJSON.Valid {
			record.Response = json.RawMessage(responseJSON.String)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
