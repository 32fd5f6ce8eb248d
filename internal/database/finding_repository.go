package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goaudit/internal/domain"
)

// findingColumns is the column list shared by every SELECT on findings.
const findingColumns = `id, audit_id, page_id, category, severity, title,
	description, recommendation, affected_element, metadata, created_at`

// FindingRepository is the append-only finding sink. Analysis units only
// insert; findings are removed solely via the audit's cascade delete.
type FindingRepository struct {
	db *sqlx.DB
}

// NewFindingRepository creates a new finding repository.
func NewFindingRepository(db *sqlx.DB) *FindingRepository {
	return &FindingRepository{db: db}
}

// Create inserts a new finding.
func (r *FindingRepository) Create(ctx context.Context, finding *domain.Finding) error {
	query := `
		INSERT INTO findings (id, audit_id, page_id, category, severity, title,
			description, recommendation, affected_element, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		finding.ID, finding.AuditID, finding.PageID, finding.Category,
		finding.Severity, finding.Title, finding.Description,
		finding.Recommendation, finding.AffectedElement, finding.Metadata,
	).Scan(&finding.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create finding: %w", err)
	}

	return nil
}

// ListByAudit returns all findings of one audit, most severe first.
func (r *FindingRepository) ListByAudit(ctx context.Context, auditID string) ([]*domain.Finding, error) {
	var findings []*domain.Finding
	query := `SELECT ` + findingColumns + ` FROM findings
		WHERE audit_id = $1
		ORDER BY CASE severity
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			WHEN 'low' THEN 3
			ELSE 4
		END, created_at`

	err := r.db.SelectContext(ctx, &findings, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}

	if findings == nil {
		findings = []*domain.Finding{}
	}

	return findings, nil
}

// ListByCategory returns the findings of one audit in a single category.
func (r *FindingRepository) ListByCategory(
	ctx context.Context,
	auditID string,
	category domain.Category,
) ([]*domain.Finding, error) {
	var findings []*domain.Finding
	query := `SELECT ` + findingColumns + ` FROM findings
		WHERE audit_id = $1 AND category = $2 ORDER BY created_at`

	err := r.db.SelectContext(ctx, &findings, query, auditID, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings by category: %w", err)
	}

	if findings == nil {
		findings = []*domain.Finding{}
	}

	return findings, nil
}

// CountByCategory returns finding counts grouped by category.
func (r *FindingRepository) CountByCategory(ctx context.Context, auditID string) (map[domain.Category]int, error) {
	rows := []struct {
		Category domain.Category `db:"category"`
		Count    int             `db:"count"`
	}{}

	query := `SELECT category, COUNT(*) AS count FROM findings
		WHERE audit_id = $1 GROUP BY category`

	if err := r.db.SelectContext(ctx, &rows, query, auditID); err != nil {
		return nil, fmt.Errorf("failed to count findings by category: %w", err)
	}

	counts := make(map[domain.Category]int, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}

	return counts, nil
}

// CountBySeverity returns finding counts grouped by severity.
func (r *FindingRepository) CountBySeverity(ctx context.Context, auditID string) (map[domain.Severity]int, error) {
	rows := []struct {
		Severity domain.Severity `db:"severity"`
		Count    int             `db:"count"`
	}{}

	query := `SELECT severity, COUNT(*) AS count FROM findings
		WHERE audit_id = $1 GROUP BY severity`

	if err := r.db.SelectContext(ctx, &rows, query, auditID); err != nil {
		return nil, fmt.Errorf("failed to count findings by severity: %w", err)
	}

	counts := make(map[domain.Severity]int, len(rows))
	for _, row := range rows {
		counts[row.Severity] = row.Count
	}

	return counts, nil
}
