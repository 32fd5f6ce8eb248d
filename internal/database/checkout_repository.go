package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goaudit/internal/domain"
)

// CheckoutRepository handles database operations for checkout step results.
type CheckoutRepository struct {
	db *sqlx.DB
}

// NewCheckoutRepository creates a new checkout repository.
func NewCheckoutRepository(db *sqlx.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

// Create inserts a new checkout step result.
func (r *CheckoutRepository) Create(ctx context.Context, step *domain.CheckoutStepResult) error {
	query := `
		INSERT INTO checkout_steps (id, audit_id, step_number, step_name, url,
			screenshot_path, form_fields_count, load_time_ms, successful,
			errors_found)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		step.ID, step.AuditID, step.StepNumber, step.StepName, step.URL,
		step.ScreenshotPath, step.FormFieldsCount, step.LoadTimeMillis,
		step.Successful, step.ErrorsFound,
	).Scan(&step.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create checkout step: %w", err)
	}

	return nil
}

// ListByAudit returns the checkout steps of one audit ordered by step number.
func (r *CheckoutRepository) ListByAudit(ctx context.Context, auditID string) ([]*domain.CheckoutStepResult, error) {
	var steps []*domain.CheckoutStepResult
	query := `
		SELECT id, audit_id, step_number, step_name, url, screenshot_path,
		       form_fields_count, load_time_ms, successful, errors_found,
		       created_at
		FROM checkout_steps
		WHERE audit_id = $1
		ORDER BY step_number
	`

	err := r.db.SelectContext(ctx, &steps, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout steps: %w", err)
	}

	if steps == nil {
		steps = []*domain.CheckoutStepResult{}
	}

	return steps, nil
}
