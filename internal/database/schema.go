package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS product_record (
		id           UUID PRIMARY KEY,
		run_id       TEXT NOT NULL,
		category     TEXT NOT NULL,
		subcategory  TEXT NOT NULL,
		product_name TEXT NOT NULL,
		container    TEXT NOT NULL DEFAULT '',
		price_value  NUMERIC(10, 2),
		price_unit   TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		image_url    TEXT NOT NULL DEFAULT '',
		recorded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_record_position
		ON product_record (category, subcategory, product_name)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		target_stream  TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		retry_count    INTEGER NOT NULL DEFAULT 0,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at   TIMESTAMPTZ,
		next_retry_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_pending
		ON outbox_event (status, next_retry_at)`,
}

// EnsureSchema creates the mirror tables when they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	return ensureSchema(ctx, db.pool)
}

func ensureSchema(ctx context.Context, exec Execer) error {
	for _, stmt := range schema {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
