// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package postgres opens the Postgres-backed store used by multi-instance deployments.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ManuGH/streamgate/internal/persistence"
	_ "github.com/lib/pq"
)

// Config defines pool parameters.
type Config struct {
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DefaultConfig returns the pool configuration used by the daemon.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Open connects to dsn, verifies connectivity and applies the schema.
func Open(ctx context.Context, dsn string, cfg Config) (*persistence.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migration failed: %w", err)
	}
	return persistence.Wrap(db, persistence.DialectPostgres), nil
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %.40q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status TEXT NOT NULL CHECK (status IN ('pending', 'active', 'canceled', 'expired')),
		start_date BIGINT NOT NULL,
		end_date BIGINT NOT NULL,
		auto_renew BOOLEAN NOT NULL DEFAULT TRUE,
		is_current BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_current ON subscriptions(user_id) WHERE is_current`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_user_status ON subscriptions(user_id, status)`,
	`CREATE TABLE IF NOT EXISTS movies (
		id BIGSERIAL PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		video_storage_key TEXT,
		view_count BIGINT NOT NULL DEFAULT 0 CHECK (view_count >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS watch_records (
		user_id TEXT NOT NULL,
		movie_id BIGINT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
		last_position_seconds BIGINT NOT NULL DEFAULT 0,
		duration_seconds BIGINT NOT NULL DEFAULT 0,
		progress_percent INTEGER NOT NULL DEFAULT 0,
		finished BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, movie_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_watch_records_user_updated ON watch_records(user_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS movie_likes (
		user_id TEXT NOT NULL,
		movie_id BIGINT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, movie_id)
	)`,
}
