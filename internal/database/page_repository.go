package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goaudit/internal/domain"
)

// pageColumns is the column list shared by every SELECT on pages.
const pageColumns = `id, audit_id, url, status_code, title, meta_description,
	h1, screenshot_path, html_excerpt, crawled_at, created_at`

// PageRepository handles database operations for crawled pages.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// Create inserts a new page.
func (r *PageRepository) Create(ctx context.Context, page *domain.Page) error {
	query := `
		INSERT INTO pages (id, audit_id, url, status_code, crawled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		page.ID, page.AuditID, page.URL, page.StatusCode, page.CrawledAt,
	).Scan(&page.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	return nil
}

// GetByID retrieves a page by its ID.
func (r *PageRepository) GetByID(ctx context.Context, id string) (*domain.Page, error) {
	var page domain.Page
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = $1`

	err := r.db.GetContext(ctx, &page, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	return &page, nil
}

// ListByAudit returns all pages of one audit in discovery order.
func (r *PageRepository) ListByAudit(ctx context.Context, auditID string) ([]*domain.Page, error) {
	var pages []*domain.Page
	query := `SELECT ` + pageColumns + ` FROM pages
		WHERE audit_id = $1 ORDER BY created_at, id`

	err := r.db.SelectContext(ctx, &pages, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	if pages == nil {
		pages = []*domain.Page{}
	}

	return pages, nil
}

// CountByAudit returns the number of pages discovered for one audit.
func (r *PageRepository) CountByAudit(ctx context.Context, auditID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM pages WHERE audit_id = $1`

	if err := r.db.GetContext(ctx, &count, query, auditID); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}

	return count, nil
}

// UpdateMetadata persists the fields the metadata analysis unit fills in.
func (r *PageRepository) UpdateMetadata(ctx context.Context, page *domain.Page) error {
	query := `
		UPDATE pages
		SET title = $1, meta_description = $2, h1 = $3,
		    screenshot_path = $4, html_excerpt = $5
		WHERE id = $6
	`

	result, err := r.db.ExecContext(
		ctx, query,
		page.Title, page.MetaDescription, page.H1,
		page.ScreenshotPath, page.HTMLExcerpt, page.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update page metadata: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("page not found: %s", page.ID)
	}

	return nil
}
