package cache

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// L3 is the optional persistent tier (spec.md §4.4 "L3: optional
// persistent store; disabled by default"). Grounded on the teacher's
// internal/repository SQL DAL shape (database/sql + lib/pq), repurposed
// from CEX row storage to a simple key/blob table.
type L3 interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// PostgresL3 persists cache entries in a single key/value table. Created
// only when config.L3Config.Enabled is true.
type PostgresL3 struct {
	DB *sql.DB
}

// NewPostgresL3 opens a connection and ensures the backing table exists.
func NewPostgresL3(dsn string) (*PostgresL3, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureCacheTable(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresL3{DB: db}, nil
}

func ensureCacheTable(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key         TEXT PRIMARY KEY,
			value       BYTEA NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (p *PostgresL3) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.DB.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = $1`, key).Scan(&value)
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (p *PostgresL3) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	return err
}

func (p *PostgresL3) Close() error {
	return p.DB.Close()
}
