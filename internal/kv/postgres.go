package kv

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

// Schema creates the table PostgresStore reads.
const Schema = `
	CREATE TABLE IF NOT EXISTS config (
		key   TEXT PRIMARY KEY,
		value TEXT
	);
`

// PostgresStore implements Store over a `config(key, value)` table
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL configuration store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the value of every requested key; missing rows and NULL values
// map to "".
func (s *PostgresStore) Get(ctx context.Context, keys []string) (map[string]string, error) {
	keys = lo.Uniq(keys)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = ""
	}
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `SELECT key, COALESCE(value, '') FROM config WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("kv: failed to query config: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("kv: failed to scan config row: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv: error iterating config rows: %w", err)
	}

	return out, nil
}

// Put upserts entries in one batch.
func (s *PostgresStore) Put(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for k, v := range entries {
		batch.Queue(`INSERT INTO config (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, k, v)
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("kv: failed to upsert config: %w", err)
	}
	return nil
}

// Delete removes keys.
func (s *PostgresStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM config WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("kv: failed to delete config: %w", err)
	}
	return nil
}
