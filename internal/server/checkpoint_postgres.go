package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astromechza/cwse/internal/shape"
)

// PostgresCheckpointStore is a pluggable-store alternative to
// SQLiteCheckpointStore, grounded on the CollabText server's pgxpool
// connection setup. It keeps the same number/content/created_at shape so
// both satisfy CheckpointStore identically from the caller's perspective.
type PostgresCheckpointStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresCheckpointStore connects to dsn and ensures the checkpoints
// table exists.
func OpenPostgresCheckpointStore(ctx context.Context, dsn string) (*PostgresCheckpointStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: connect: %w", err)
	}
	s := &PostgresCheckpointStore{pool: pool}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresCheckpointStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS checkpoints (
		number     BIGINT PRIMARY KEY,
		content    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("checkpoint store: init: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresCheckpointStore) Close() {
	s.pool.Close()
}

func (s *PostgresCheckpointStore) Save(ctx context.Context, shapes []shape.BoardShape) (uint64, error) {
	content, err := json.Marshal(shapes)
	if err != nil {
		return 0, fmt.Errorf("checkpoint store: marshal: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("checkpoint store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var next uint64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM checkpoints`).Scan(&next); err != nil {
		return 0, fmt.Errorf("checkpoint store: next number: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO checkpoints (number, content) VALUES ($1, $2)`, next, content); err != nil {
		return 0, fmt.Errorf("checkpoint store: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("checkpoint store: commit: %w", err)
	}
	return next, nil
}

func (s *PostgresCheckpointStore) Fetch(ctx context.Context, k uint64) ([]shape.BoardShape, error) {
	var content []byte
	if err := s.pool.QueryRow(ctx, `SELECT content FROM checkpoints WHERE number = $1`, k).Scan(&content); err != nil {
		return nil, fmt.Errorf("checkpoint store: fetch: %w", err)
	}
	var shapes []shape.BoardShape
	if err := json.Unmarshal(content, &shapes); err != nil {
		return nil, fmt.Errorf("checkpoint store: unmarshal: %w", err)
	}
	return shapes, nil
}

func (s *PostgresCheckpointStore) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM checkpoints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("checkpoint store: count: %w", err)
	}
	return n, nil
}

func (s *PostgresCheckpointStore) List(ctx context.Context) ([]CheckpointMeta, error) {
	rows, err := s.pool.Query(ctx, `SELECT number, created_at FROM checkpoints ORDER BY number ASC`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: list: %w", err)
	}
	defer rows.Close()

	var out []CheckpointMeta
	for rows.Next() {
		var number uint64
		var createdAt time.Time
		if err := rows.Scan(&number, &createdAt); err != nil {
			return nil, fmt.Errorf("checkpoint store: list scan: %w", err)
		}
		out = append(out, CheckpointMeta{Number: number, CreatedAt: createdAt})
	}
	return out, rows.Err()
}
