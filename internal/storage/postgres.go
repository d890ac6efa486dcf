package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresAuditStore implements AuditStore on a tool_runs table.
type PostgresAuditStore struct {
	db *sql.DB
}

// NewPostgresAuditStore creates a PostgreSQL-backed audit store.
func NewPostgresAuditStore(db *sql.DB) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

// EnsureSchema creates the tool_runs table if it does not exist.
func (s *PostgresAuditStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tool_runs (
			id          UUID PRIMARY KEY,
			tool        TEXT NOT NULL,
			account_id  TEXT,
			since       DATE,
			until       DATE,
			status      TEXT NOT NULL,
			error       TEXT,
			rows        INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create tool_runs table: %w", err)
	}
	return nil
}

// RecordRun inserts a run; re-recording the same id is a no-op.
func (s *PostgresAuditStore) RecordRun(ctx context.Context, run *ToolRun) error {
	if run == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_runs (id, tool, account_id, since, until, status, error, rows, duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, run.ID, run.Tool, nullString(run.AccountID), nullString(run.Since), nullString(run.Until),
		run.Status, nullString(run.Error), run.Rows, run.Duration.Milliseconds(), run.StartedAt)

	if err != nil {
		return fmt.Errorf("failed to save tool run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *PostgresAuditStore) ListRuns(ctx context.Context, limit int) ([]*ToolRun, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool, COALESCE(account_id, ''), COALESCE(since::text, ''), COALESCE(until::text, ''),
		       status, COALESCE(error, ''), rows, duration_ms, started_at
		FROM tool_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool runs: %w", err)
	}
	defer rows.Close()

	var runs []*ToolRun
	for rows.Next() {
		var run ToolRun
		var durationMS int64
		if err := rows.Scan(&run.ID, &run.Tool, &run.AccountID, &run.Since, &run.Until,
			&run.Status, &run.Error, &run.Rows, &durationMS, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tool run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tool runs: %w", err)
	}
	return runs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
