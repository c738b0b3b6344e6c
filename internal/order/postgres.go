package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the order_history table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS order_history (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT NOT NULL DEFAULT '',
    items       JSONB NOT NULL DEFAULT '[]',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_order_history_created ON order_history(created_at);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// PostgresStore is a [Store] backed by a PostgreSQL table. Order items are
// stored as a JSONB array of strings. Row-level atomicity of INSERT gives the
// single-writer guarantee: a concurrent Load sees either the whole order or
// none of it.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a [PostgresStore] that uses the given connection
// or pool. Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pgx pool to dsn and verifies the connection.
// The caller owns the returned pool and must Close it.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("order: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("order: ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate executes the [Schema] DDL, creating the order_history table and
// index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("order: migrate: %w", err)
	}
	return nil
}

// Load implements [Store.Load]. Rows whose items column cannot be decoded are
// logged and skipped.
func (s *PostgresStore) Load(ctx context.Context) (History, error) {
	const query = `SELECT id, items FROM order_history ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrHistoryUnavailable, err)
	}
	defer rows.Close()

	history := History{}
	for rows.Next() {
		var (
			id        int64
			itemsJSON []byte
		)
		if err := rows.Scan(&id, &itemsJSON); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrHistoryUnavailable, err)
		}
		var items []string
		if err := json.Unmarshal(itemsJSON, &items); err != nil {
			slog.Warn("order: skipping malformed history row", "id", id, "err", err)
			continue
		}
		if len(items) == 0 {
			continue
		}
		history = append(history, items)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrHistoryUnavailable, err)
	}
	return history, nil
}

// Append implements [Store.Append].
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	items := rec.Items
	if items == nil {
		items = []string{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("order: marshal items: %w", err)
	}

	const query = `
		INSERT INTO order_history (session_id, items, created_at)
		VALUES ($1, $2, $3)`

	if _, err := s.db.Exec(ctx, query, rec.SessionID, itemsJSON, rec.CreatedAt); err != nil {
		return fmt.Errorf("%w: insert: %w", ErrHistoryUnavailable, err)
	}
	return nil
}

// Ping implements [Store.Ping].
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrHistoryUnavailable, err)
	}
	return nil
}
