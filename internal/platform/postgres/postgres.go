package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"lethe/internal/platform/config"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(cfg config.Postgres) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables the pipeline depends on. Idempotent so
// restarts and integration tests can call it unconditionally.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS deletion_intents (
			user_id          TEXT PRIMARY KEY,
			user_email       TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL DEFAULT 'pending',
			requested_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			requested_by     TEXT NOT NULL DEFAULT '',
			reason           TEXT NOT NULL DEFAULT '',
			rejection_reason TEXT NOT NULL DEFAULT '',
			source           TEXT NOT NULL DEFAULT '',
			retry_count      INT  NOT NULL DEFAULT 0,
			last_error       TEXT NOT NULL DEFAULT '',
			error_code       TEXT NOT NULL DEFAULT '',
			final_error      TEXT NOT NULL DEFAULT '',
			error_at         TIMESTAMPTZ,
			last_retry_at    TIMESTAMPTZ,
			completed_at     TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS deletion_intents_retryable_idx
			ON deletion_intents (status, retry_count)`,
		`CREATE INDEX IF NOT EXISTS deletion_intents_requested_at_idx
			ON deletion_intents (requested_at)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			seq           BIGSERIAL,
			id            TEXT PRIMARY KEY,
			action        TEXT NOT NULL,
			user_id       TEXT NOT NULL DEFAULT '',
			user_email    TEXT NOT NULL DEFAULT '',
			deleted_by    TEXT NOT NULL DEFAULT '',
			success       BOOLEAN NOT NULL DEFAULT false,
			detail        TEXT NOT NULL DEFAULT '',
			deleted_count INT NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS operators (
			caller_id  TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
