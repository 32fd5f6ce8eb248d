package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goaudit/internal/domain"
)

// ErrAuditNotFound is returned when an audit ID matches no row.
var ErrAuditNotFound = errors.New("audit not found")

// auditColumns is the column list shared by every SELECT on audits.
const auditColumns = `id, domain, url, status, score, pages_crawled, max_pages,
	jobs_total, jobs_completed, jobs_failed, current_step, error_message,
	started_at, completed_at, created_at, updated_at`

// childTables lists the tables owned by an audit, deleted on reset/delete.
var childTables = []string{
	"findings",
	"link_records",
	"performance_samples",
	"checkout_steps",
	"pages",
}

// AuditRepository handles database operations for audits.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit.
func (r *AuditRepository) Create(ctx context.Context, audit *domain.Audit) error {
	query := `
		INSERT INTO audits (id, domain, url, status, max_pages)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		audit.ID, audit.Domain, audit.URL, audit.Status, audit.MaxPages,
	).Scan(&audit.CreatedAt, &audit.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit: %w", err)
	}

	return nil
}

// GetByID retrieves an audit by its ID.
func (r *AuditRepository) GetByID(ctx context.Context, id string) (*domain.Audit, error) {
	var audit domain.Audit
	query := `SELECT ` + auditColumns + ` FROM audits WHERE id = $1`

	err := r.db.GetContext(ctx, &audit, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAuditNotFound, id)
		}
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}

	return &audit, nil
}

// List retrieves audits with optional status filtering.
func (r *AuditRepository) List(ctx context.Context, status string, limit, offset int) ([]*domain.Audit, error) {
	var audits []*domain.Audit
	var query string
	var args []any

	if status != "" {
		query = `SELECT ` + auditColumns + ` FROM audits
			WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []any{status, limit, offset}
	} else {
		query = `SELECT ` + auditColumns + ` FROM audits
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}

	err := r.db.SelectContext(ctx, &audits, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}

	if audits == nil {
		audits = []*domain.Audit{}
	}

	return audits, nil
}

// ListByDomain retrieves the most recent audits of one domain, newest first.
func (r *AuditRepository) ListByDomain(ctx context.Context, siteDomain string, limit int) ([]*domain.Audit, error) {
	var audits []*domain.Audit
	query := `SELECT ` + auditColumns + ` FROM audits
		WHERE domain = $1 ORDER BY created_at DESC LIMIT $2`

	err := r.db.SelectContext(ctx, &audits, query, siteDomain, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits by domain: %w", err)
	}

	if audits == nil {
		audits = []*domain.Audit{}
	}

	return audits, nil
}

// Update updates an audit's mutable fields.
func (r *AuditRepository) Update(ctx context.Context, audit *domain.Audit) error {
	query := `
		UPDATE audits
		SET status = $1, score = $2, pages_crawled = $3, current_step = $4,
		    error_message = $5, started_at = $6, completed_at = $7,
		    updated_at = NOW()
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx, query,
		audit.Status, audit.Score, audit.PagesCrawled, audit.CurrentStep,
		audit.ErrorMessage, audit.StartedAt, audit.CompletedAt, audit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update audit: %w", err)
	}

	return requireRow(result, audit.ID)
}

// UpdateIfStatus applies the same update as Update, but only while the audit
// still holds the expected status. It reports false when the row moved on
// underneath the caller, so a terminal state is never overwritten by a
// stale writer.
func (r *AuditRepository) UpdateIfStatus(ctx context.Context, audit *domain.Audit, from domain.Status) (bool, error) {
	query := `
		UPDATE audits
		SET status = $1, score = $2, pages_crawled = $3, current_step = $4,
		    error_message = $5, started_at = $6, completed_at = $7,
		    updated_at = NOW()
		WHERE id = $8 AND status = $9
	`

	result, err := r.db.ExecContext(
		ctx, query,
		audit.Status, audit.Score, audit.PagesCrawled, audit.CurrentStep,
		audit.ErrorMessage, audit.StartedAt, audit.CompletedAt, audit.ID, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update audit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// Delete removes the audit and all its child rows in one transaction.
func (r *AuditRepository) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := deleteChildren(ctx, tx, id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM audits WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete audit: %w", err)
		}
		return requireRow(result, id)
	})
}

// Reset deletes all child rows and returns the audit to pending in one
// transaction, so a restart is all-or-nothing.
func (r *AuditRepository) Reset(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := deleteChildren(ctx, tx, id); err != nil {
			return err
		}

		query := `
			UPDATE audits
			SET status = $1, score = NULL, pages_crawled = 0,
			    jobs_total = 0, jobs_completed = 0, jobs_failed = 0,
			    aggregation_claimed = FALSE, current_step = '',
			    error_message = NULL, started_at = NULL, completed_at = NULL,
			    updated_at = NOW()
			WHERE id = $2
		`
		result, err := tx.ExecContext(ctx, query, domain.StatusPending, id)
		if err != nil {
			return fmt.Errorf("failed to reset audit: %w", err)
		}
		return requireRow(result, id)
	})
}

// RegisterJobsTotal fixes the fan-out size for the audit.
func (r *AuditRepository) RegisterJobsTotal(ctx context.Context, id string, total int) error {
	query := `
		UPDATE audits
		SET jobs_total = $1, jobs_completed = 0, jobs_failed = 0,
		    aggregation_claimed = FALSE, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, total, id)
	if err != nil {
		return fmt.Errorf("failed to register jobs total: %w", err)
	}

	return requireRow(result, id)
}

// IncrementCompleted atomically increments jobs_completed. The increment and
// the read of the resulting counters happen in one statement, so concurrent
// terminal reports each observe a distinct snapshot.
func (r *AuditRepository) IncrementCompleted(ctx context.Context, id, currentStep string) (Progress, error) {
	var p Progress
	query := `
		UPDATE audits
		SET jobs_completed = jobs_completed + 1, current_step = $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING jobs_total, jobs_completed, jobs_failed
	`

	err := r.db.GetContext(ctx, &p, query, currentStep, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Progress{}, fmt.Errorf("%w: %s", ErrAuditNotFound, id)
		}
		return Progress{}, fmt.Errorf("failed to increment completed jobs: %w", err)
	}

	return p, nil
}

// IncrementFailed atomically increments jobs_failed and records the error.
func (r *AuditRepository) IncrementFailed(ctx context.Context, id, errorMessage string) (Progress, error) {
	var p Progress
	query := `
		UPDATE audits
		SET jobs_failed = jobs_failed + 1, error_message = $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING jobs_total, jobs_completed, jobs_failed
	`

	err := r.db.GetContext(ctx, &p, query, errorMessage, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Progress{}, fmt.Errorf("%w: %s", ErrAuditNotFound, id)
		}
		return Progress{}, fmt.Errorf("failed to increment failed jobs: %w", err)
	}

	return p, nil
}

// ClaimAggregation performs the compare-and-swap that guarantees aggregation
// fires exactly once per audit: only one caller ever sees rows affected = 1.
func (r *AuditRepository) ClaimAggregation(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE audits
		SET aggregation_claimed = TRUE, updated_at = NOW()
		WHERE id = $1
		  AND aggregation_claimed = FALSE
		  AND jobs_total > 0
		  AND jobs_completed + jobs_failed >= jobs_total
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim aggregation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// inTx runs fn in a transaction, committing on nil and rolling back on error.
func (r *AuditRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return nil
}

// deleteChildren removes all rows owned by an audit.
func deleteChildren(ctx context.Context, tx *sqlx.Tx, auditID string) error {
	for _, table := range childTables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE audit_id = $1`, table)
		if _, err := tx.ExecContext(ctx, query, auditID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	return nil
}

// requireRow converts a zero rows-affected result into ErrAuditNotFound.
func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrAuditNotFound, id)
	}
	return nil
}
