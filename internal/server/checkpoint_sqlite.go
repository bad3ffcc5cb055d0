package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/astromechza/cwse/internal/shape"
)

// SQLiteCheckpointStore persists numbered snapshots in a `checkpoints`
// table, one row per checkpoint number, content stored as a JSON-encoded
// shape list.
type SQLiteCheckpointStore struct {
	db *sql.DB
}

// OpenSQLiteCheckpointStore opens (creating if necessary) a sqlite3
// database at path and ensures the checkpoints table exists.
func OpenSQLiteCheckpointStore(path string) (*SQLiteCheckpointStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: open: %w", err)
	}
	s := &SQLiteCheckpointStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteCheckpointStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS checkpoints (
		number     INTEGER NOT NULL PRIMARY KEY,
		content    TEXT    NOT NULL,
		created_at TEXT    NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("checkpoint store: init: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteCheckpointStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteCheckpointStore) Save(ctx context.Context, shapes []shape.BoardShape) (uint64, error) {
	content, err := json.Marshal(shapes)
	if err != nil {
		return 0, fmt.Errorf("checkpoint store: marshal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("checkpoint store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var next uint64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM checkpoints`)
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("checkpoint store: next number: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (number, content, created_at) VALUES (?, ?, ?)`,
		next, string(content), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return 0, fmt.Errorf("checkpoint store: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("checkpoint store: commit: %w", err)
	}
	return next, nil
}

func (s *SQLiteCheckpointStore) Fetch(ctx context.Context, k uint64) ([]shape.BoardShape, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM checkpoints WHERE number = ?`, k).Scan(&content)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("checkpoint store: no such checkpoint %d", k)
		}
		return nil, fmt.Errorf("checkpoint store: fetch: %w", err)
	}
	var shapes []shape.BoardShape
	if err := json.Unmarshal([]byte(content), &shapes); err != nil {
		return nil, fmt.Errorf("checkpoint store: unmarshal: %w", err)
	}
	return shapes, nil
}

func (s *SQLiteCheckpointStore) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("checkpoint store: count: %w", err)
	}
	return n, nil
}

func (s *SQLiteCheckpointStore) List(ctx context.Context) ([]CheckpointMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT number, created_at FROM checkpoints ORDER BY number ASC`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: list: %w", err)
	}
	defer rows.Close()

	var out []CheckpointMeta
	for rows.Next() {
		var number uint64
		var createdAtRaw string
		if err := rows.Scan(&number, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("checkpoint store: list scan: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, createdAtRaw)
		if err != nil {
			return nil, fmt.Errorf("checkpoint store: list parse time: %w", err)
		}
		out = append(out, CheckpointMeta{Number: number, CreatedAt: createdAt})
	}
	return out, rows.Err()
}
