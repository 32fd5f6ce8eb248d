package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements holds the idempotent DDL for all audit entities.
// Pages, findings, link records, performance samples and checkout steps are
// append-only and partitioned by audit, so no cross-table locking is needed
// beyond the audit counters.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audits (
		id                  UUID PRIMARY KEY,
		domain              TEXT NOT NULL,
		url                 TEXT NOT NULL,
		status              TEXT NOT NULL DEFAULT 'pending',
		score               INTEGER,
		pages_crawled       INTEGER NOT NULL DEFAULT 0,
		max_pages           INTEGER NOT NULL DEFAULT 50,
		jobs_total          INTEGER NOT NULL DEFAULT 0,
		jobs_completed      INTEGER NOT NULL DEFAULT 0,
		jobs_failed         INTEGER NOT NULL DEFAULT 0,
		aggregation_claimed BOOLEAN NOT NULL DEFAULT FALSE,
		current_step        TEXT NOT NULL DEFAULT '',
		error_message       TEXT,
		started_at          TIMESTAMPTZ,
		completed_at        TIMESTAMPTZ,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_domain ON audits (domain, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audits_status ON audits (status)`,

	`CREATE TABLE IF NOT EXISTS pages (
		id               UUID PRIMARY KEY,
		audit_id         UUID NOT NULL REFERENCES audits (id) ON DELETE CASCADE,
		url              TEXT NOT NULL,
		status_code      INTEGER NOT NULL,
		title            TEXT,
		meta_description TEXT,
		h1               TEXT,
		screenshot_path  TEXT,
		html_excerpt     TEXT,
		crawled_at       TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_audit ON pages (audit_id)`,

	`CREATE TABLE IF NOT EXISTS findings (
		id               UUID PRIMARY KEY,
		audit_id         UUID NOT NULL REFERENCES audits (id) ON DELETE CASCADE,
		page_id          UUID REFERENCES pages (id) ON DELETE CASCADE,
		category         TEXT NOT NULL,
		severity         TEXT NOT NULL,
		title            TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		recommendation   TEXT NOT NULL DEFAULT '',
		affected_element TEXT,
		metadata         JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_findings_audit ON findings (audit_id, category)`,

	`CREATE TABLE IF NOT EXISTS link_records (
		id              UUID PRIMARY KEY,
		audit_id        UUID NOT NULL REFERENCES audits (id) ON DELETE CASCADE,
		source_page_id  UUID NOT NULL REFERENCES pages (id) ON DELETE CASCADE,
		destination_url TEXT NOT NULL,
		link_text       TEXT,
		link_type       TEXT NOT NULL,
		status_code     INTEGER,
		is_broken       BOOLEAN NOT NULL DEFAULT FALSE,
		checked_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_link_records_audit ON link_records (audit_id, is_broken)`,

	`CREATE TABLE IF NOT EXISTS performance_samples (
		id                   UUID PRIMARY KEY,
		audit_id             UUID NOT NULL REFERENCES audits (id) ON DELETE CASCADE,
		page_id              UUID NOT NULL REFERENCES pages (id) ON DELETE CASCADE,
		device_type          TEXT NOT NULL,
		lcp                  DOUBLE PRECISION,
		fid                  DOUBLE PRECISION,
		cls                  DOUBLE PRECISION,
		fcp                  DOUBLE PRECISION,
		ttfb                 DOUBLE PRECISION,
		speed_index          DOUBLE PRECISION,
		total_blocking_time  DOUBLE PRECISION,
		performance_score    INTEGER,
		accessibility_score  INTEGER,
		seo_score            INTEGER,
		best_practices_score INTEGER,
		raw_report           JSONB,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (page_id, device_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_samples_audit ON performance_samples (audit_id, device_type)`,

	`CREATE TABLE IF NOT EXISTS checkout_steps (
		id                UUID PRIMARY KEY,
		audit_id          UUID NOT NULL REFERENCES audits (id) ON DELETE CASCADE,
		step_number       INTEGER NOT NULL,
		step_name         TEXT NOT NULL,
		url               TEXT NOT NULL,
		screenshot_path   TEXT,
		form_fields_count INTEGER NOT NULL DEFAULT 0,
		load_time_ms      BIGINT NOT NULL DEFAULT 0,
		successful        BOOLEAN NOT NULL DEFAULT TRUE,
		errors_found      JSONB,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_checkout_steps_audit ON checkout_steps (audit_id, step_number)`,
}

// Migrate applies the schema. All statements are idempotent so it is safe to
// run at every startup.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
