package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(8)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// OpenPostgresStore connects, migrates and seeds the lead database.
func OpenPostgresStore(ctx context.Context, databaseURL, migrationsDir string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, db, os.DirFS(migrationsDir), logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	pg := NewPostgresStore(db)
	if err := pg.SeedIfEmpty(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return pg, nil
}
