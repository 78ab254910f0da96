package dlqstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"dexarb/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}

func TestStore_Archive_InsertsDlqRecord(t *testing.T) {
	store, mock := newMockStore(t)

	msg := models.StreamMessage{
		ID: "1700000000000-0",
		Data: map[string]string{
			"id":                "abc123",
			"dlqReason":         "invalid_net_bps",
			"originalMessageId": "1699999999999-0",
		},
	}

	mock.ExpectExec(`INSERT INTO dlq_entries`).
		WithArgs("opportunities", "1699999999999-0", "invalid_net_bps", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Archive(context.Background(), "opportunities", msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStore_DeleteOlderThan_ReturnsRowsAffected(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM dlq_entries WHERE archived_at < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.DeleteOlderThan(context.Background(), time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("got %d rows deleted, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
