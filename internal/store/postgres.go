// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists blobs in a single key/value table. Payloads
// are JSON, so they land in a jsonb column and stay queryable from psql.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore ensures the state table exists
func NewPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	schema := `
        CREATE TABLE IF NOT EXISTS engine_state (
            key        TEXT PRIMARY KEY,
            data       JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create engine_state table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	query := `SELECT data FROM engine_state WHERE key = $1`

	err := s.db.GetContext(ctx, &data, query, key)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load blob %s: %w", key, err)
	}
	return data, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, data []byte) error {
	query := `
        INSERT INTO engine_state (key, data, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE
        SET data = EXCLUDED.data, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("failed to save blob %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM engine_state WHERE key = $1`

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}
