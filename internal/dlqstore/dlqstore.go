// Package dlqstore archives DLQ'd stream messages to Postgres for
// long-term operator review, beyond the in-stream DLQ's own retention
// window. Disabled by default; a chain task only needs it if operators
// want DLQ history past the stream's trim horizon. Grounded on the
// teacher's internal/repository notification log pattern (Create +
// GetRecent + DeleteOlderThan over a single append-only table).
package dlqstore

import (
	"context"
	"database/sql"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/lib/pq"

	"dexarb/internal/models"
)

// Store persists DLQ'd stream messages in a single archive table.
type Store struct {
	db *sql.DB
}

// New opens a connection and ensures the backing table exists.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureDlqTable(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureDlqTable(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dlq_entries (
			id                   BIGSERIAL PRIMARY KEY,
			source_stream        TEXT NOT NULL,
			original_message_id  TEXT NOT NULL,
			reason               TEXT NOT NULL,
			fields               JSONB NOT NULL,
			archived_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

// Archive records one DLQ'd message. msg.Data is expected to carry
// "dlqReason" and "originalMessageId" fields, matching
// stream.Client.MoveToDlq's record shape.
func (s *Store) Archive(ctx context.Context, sourceStream string, msg models.StreamMessage) error {
	fields, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(msg.Data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dlq_entries (source_stream, original_message_id, reason, fields)
		VALUES ($1, $2, $3, $4)
	`, sourceStream, msg.Data["originalMessageId"], msg.Data["dlqReason"], fields)
	return err
}

// DeleteOlderThan purges archived entries older than cutoff, mirroring
// the teacher's notification-log auto-cleanup (DeleteOlderThan). Returns
// the number of rows removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dlq_entries WHERE archived_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
