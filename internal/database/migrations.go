package database

import (
	"context"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS approval_categories (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		default_sla_ms     BIGINT NOT NULL DEFAULT 0,
		notice_period_days INTEGER NOT NULL DEFAULT 0,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS approval_categories_name_key
		ON approval_categories (LOWER(name))`,

	`CREATE TABLE IF NOT EXISTS approval_matrices (
		id           TEXT PRIMARY KEY,
		category_id  TEXT NOT NULL REFERENCES approval_categories(id),
		name         TEXT NOT NULL DEFAULT '',
		levels       JSONB NOT NULL,
		designations TEXT[] NOT NULL DEFAULT '{}',
		grades       TEXT[] NOT NULL DEFAULT '{}',
		is_default   BOOLEAN NOT NULL DEFAULT FALSE,
		priority     INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS approval_matrices_category_idx
		ON approval_matrices (category_id, priority, name)`,

	`CREATE TABLE IF NOT EXISTS approval_requests (
		id                    TEXT PRIMARY KEY,
		category_id           TEXT NOT NULL,
		requester_id          TEXT NOT NULL DEFAULT '',
		requester_designation TEXT NOT NULL DEFAULT '',
		requester_grade       TEXT NOT NULL DEFAULT '',
		payload               JSONB,
		matrix_id             TEXT,
		levels                JSONB NOT NULL,
		current_level         INTEGER NOT NULL,
		status                TEXT NOT NULL,
		overdue               BOOLEAN NOT NULL DEFAULT FALSE,
		overdue_at            TIMESTAMPTZ,
		level_entered_at      TIMESTAMPTZ NOT NULL,
		move_to               TEXT NOT NULL DEFAULT '',
		freeze_reason         TEXT NOT NULL DEFAULT '',
		version               BIGINT NOT NULL,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL,
		completed_at          TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS approval_requests_category_status_idx
		ON approval_requests (category_id, status)`,

	`CREATE TABLE IF NOT EXISTS approval_request_decisions (
		request_id        TEXT NOT NULL REFERENCES approval_requests(id),
		seq               INTEGER NOT NULL,
		level_ordinal     INTEGER NOT NULL,
		actor             TEXT NOT NULL,
		actor_designation TEXT NOT NULL DEFAULT '',
		outcome           TEXT NOT NULL,
		comment           TEXT NOT NULL DEFAULT '',
		decided_at        TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (request_id, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS approval_audit_log (
		id            TEXT PRIMARY KEY,
		request_id    TEXT NOT NULL,
		category_id   TEXT NOT NULL,
		action        TEXT NOT NULL,
		performed_by  TEXT NOT NULL DEFAULT '',
		performed_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		level_ordinal INTEGER NOT NULL DEFAULT 0,
		status_before TEXT NOT NULL DEFAULT '',
		status_after  TEXT NOT NULL DEFAULT '',
		metadata      JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS approval_audit_log_request_idx
		ON approval_audit_log (request_id, performed_at)`,
}

// Migrate applies the schema.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
