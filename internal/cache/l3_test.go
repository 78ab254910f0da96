package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockL3(t *testing.T) (*PostgresL3, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PostgresL3{DB: db}, mock
}

func TestPostgresL3_Get_ReturnsStoredValue(t *testing.T) {
	l3, mock := newMockL3(t)

	mock.ExpectQuery(`SELECT value FROM cache_entries WHERE key = \$1`).
		WithArgs("pair:0xabc").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"reserve0":"100"}`)))

	value, err := l3.Get(context.Background(), "pair:0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != `{"reserve0":"100"}` {
		t.Errorf("got %q, want the stored row", value)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresL3_Get_PropagatesNoRowsAsError(t *testing.T) {
	l3, mock := newMockL3(t)

	mock.ExpectQuery(`SELECT value FROM cache_entries WHERE key = \$1`).
		WithArgs("pair:missing").
		WillReturnError(errors.New("sql: no rows in result set"))

	if _, err := l3.Get(context.Background(), "pair:missing"); err == nil {
		t.Error("expected an error for a missing key, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresL3_Set_UpsertsOnConflict(t *testing.T) {
	l3, mock := newMockL3(t)

	mock.ExpectExec(`INSERT INTO cache_entries`).
		WithArgs("pair:0xabc", []byte(`{"reserve0":"100"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := l3.Set(context.Background(), "pair:0xabc", []byte(`{"reserve0":"100"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresL3_Set_PropagatesDriverError(t *testing.T) {
	l3, mock := newMockL3(t)

	mock.ExpectExec(`INSERT INTO cache_entries`).
		WithArgs("pair:0xabc", []byte("x")).
		WillReturnError(errors.New("connection reset"))

	if err := l3.Set(context.Background(), "pair:0xabc", []byte("x")); err == nil {
		t.Error("expected the driver error to propagate, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
