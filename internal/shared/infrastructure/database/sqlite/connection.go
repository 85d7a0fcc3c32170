// Package sqlite opens the local SQLite mirror database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Open creates a SQLite connection with the pragmas the mirror needs.
//
// - journal_mode=WAL: better concurrency between jobs and webhook runs
// - busy_timeout=5000: wait on lock instead of failing immediately
// - foreign_keys=ON, synchronous=NORMAL
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite doesn't support multiple writers, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return db, nil
}

// Schema is the SQLite schema for the task mirror and member aggregates.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id                  TEXT PRIMARY KEY,
    external_ref        TEXT NOT NULL UNIQUE,
    title               TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    deadline            TEXT,
    member_ref          TEXT NOT NULL DEFAULT '',
    member_name         TEXT NOT NULL DEFAULT '',
    member_handle       TEXT NOT NULL DEFAULT '',
    completed           INTEGER NOT NULL DEFAULT 0,
    completed_on        TEXT,
    score_override      REAL,
    score_counted       INTEGER NOT NULL DEFAULT 0,
    assignment_notified INTEGER NOT NULL DEFAULT 0,
    overdue_notified    INTEGER NOT NULL DEFAULT 0,
    escalation_notified INTEGER NOT NULL DEFAULT 0,
    completion_notified INTEGER NOT NULL DEFAULT 0,
    version             INTEGER NOT NULL DEFAULT 1,
    created_at          TEXT NOT NULL,
    updated_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks (completed);
CREATE INDEX IF NOT EXISTS idx_tasks_deadline ON tasks (deadline);

CREATE TABLE IF NOT EXISTS members (
    ref                 TEXT PRIMARY KEY,
    email               TEXT NOT NULL DEFAULT '',
    display_name        TEXT NOT NULL DEFAULT '',
    historical_score    REAL,
    total_tasks_counted INTEGER NOT NULL DEFAULT 0,
    version             INTEGER NOT NULL DEFAULT 1,
    created_at          TEXT NOT NULL,
    updated_at          TEXT NOT NULL
);
`

// Migrate applies the schema. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("applying sqlite schema: %w", err)
	}
	return nil
}
