package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSnapshotStore keeps snapshots in a local SQLite file.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

func NewSQLiteSnapshotStore(ctx context.Context, path string) (*SQLiteSnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
		slot TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteSnapshotStore{db: db}, nil
}

func (s *SQLiteSnapshotStore) Load(ctx context.Context, slot string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM kv WHERE slot = ?`, slot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", slot, err)
	}
	return []byte(payload), nil
}

func (s *SQLiteSnapshotStore) Save(ctx context.Context, slot string, payload []byte) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(slot, payload) VALUES(?, ?) ON CONFLICT(slot) DO UPDATE SET payload = excluded.payload`,
		slot, string(payload),
	); err != nil {
		return fmt.Errorf("save snapshot %s: %w", slot, err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteSnapshotStore) Close() error {
	return s.db.Close()
}
