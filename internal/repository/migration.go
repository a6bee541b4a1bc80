package repository

import (
	"context"
	"fmt"
)

// InitSchema creates the queue table and supporting index. Safe to run
// multiple times.
func InitSchema(ctx context.Context, db DBTX) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS hiive_events_queue (
			id BIGSERIAL PRIMARY KEY,
			event JSONB NOT NULL,
			encoding_version INT NOT NULL DEFAULT 1,
			attempts INT NOT NULL DEFAULT 1,
			reserved_at TIMESTAMPTZ,
			available_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_hiive_events_queue_due
			ON hiive_events_queue (available_at)
			WHERE reserved_at IS NULL;`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// ServerVersion reports the database server version for the environment
// snapshot attached to events.
func ServerVersion(ctx context.Context, db DBTX) (string, error) {
	var version string
	err := db.QueryRowContext(ctx, `SHOW server_version`).Scan(&version)
	if err != nil {
		return "", err
	}
	return version, nil
}
