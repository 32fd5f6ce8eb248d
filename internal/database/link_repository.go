package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goaudit/internal/domain"
)

// LinkRepository handles database operations for link records.
type LinkRepository struct {
	db *sqlx.DB
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a new link record.
func (r *LinkRepository) Create(ctx context.Context, link *domain.LinkRecord) error {
	query := `
		INSERT INTO link_records (id, audit_id, source_page_id, destination_url,
			link_text, link_type, status_code, is_broken, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		link.ID, link.AuditID, link.SourcePageID, link.DestinationURL,
		link.LinkText, link.LinkType, link.StatusCode, link.IsBroken,
		link.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create link record: %w", err)
	}

	return nil
}

// ListByAudit returns all link records of one audit.
func (r *LinkRepository) ListByAudit(ctx context.Context, auditID string) ([]*domain.LinkRecord, error) {
	var links []*domain.LinkRecord
	query := `
		SELECT id, audit_id, source_page_id, destination_url, link_text,
		       link_type, status_code, is_broken, checked_at
		FROM link_records
		WHERE audit_id = $1
		ORDER BY checked_at, id
	`

	err := r.db.SelectContext(ctx, &links, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list link records: %w", err)
	}

	if links == nil {
		links = []*domain.LinkRecord{}
	}

	return links, nil
}

// CountByAudit returns total and broken link counts for an audit.
func (r *LinkRepository) CountByAudit(ctx context.Context, auditID string) (total, broken int, err error) {
	var counts struct {
		Total  int `db:"total"`
		Broken int `db:"broken"`
	}

	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_broken) AS broken
		FROM link_records
		WHERE audit_id = $1
	`

	if getErr := r.db.GetContext(ctx, &counts, query, auditID); getErr != nil {
		return 0, 0, fmt.Errorf("failed to count link records: %w", getErr)
	}

	return counts.Total, counts.Broken, nil
}
