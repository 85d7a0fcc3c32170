// Package postgres opens the PostgreSQL mirror database.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Schema is the PostgreSQL schema for the task mirror and member
// aggregates.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id                  UUID PRIMARY KEY,
    external_ref        TEXT NOT NULL UNIQUE,
    title               TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    deadline            TIMESTAMPTZ,
    member_ref          TEXT NOT NULL DEFAULT '',
    member_name         TEXT NOT NULL DEFAULT '',
    member_handle       TEXT NOT NULL DEFAULT '',
    completed           BOOLEAN NOT NULL DEFAULT FALSE,
    completed_on        TIMESTAMPTZ,
    score_override      DOUBLE PRECISION,
    score_counted       BOOLEAN NOT NULL DEFAULT FALSE,
    assignment_notified BOOLEAN NOT NULL DEFAULT FALSE,
    overdue_notified    BOOLEAN NOT NULL DEFAULT FALSE,
    escalation_notified BOOLEAN NOT NULL DEFAULT FALSE,
    completion_notified BOOLEAN NOT NULL DEFAULT FALSE,
    version             INTEGER NOT NULL DEFAULT 1,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks (completed);
CREATE INDEX IF NOT EXISTS idx_tasks_deadline ON tasks (deadline);

CREATE TABLE IF NOT EXISTS members (
    ref                 TEXT PRIMARY KEY,
    email               TEXT NOT NULL DEFAULT '',
    display_name        TEXT NOT NULL DEFAULT '',
    historical_score    DOUBLE PRECISION,
    total_tasks_counted INTEGER NOT NULL DEFAULT 0,
    version             INTEGER NOT NULL DEFAULT 1,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
);
`

// Migrate applies the schema. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("applying postgres schema: %w", err)
	}
	return nil
}
