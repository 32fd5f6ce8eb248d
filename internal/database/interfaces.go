package database

import (
	"context"

	"github.com/jonesrussell/goaudit/internal/domain"
)

// Progress is the state of an audit's fan-out counters after an atomic
// increment. Total is fixed at dispatch time.
type Progress struct {
	Total     int `db:"jobs_total"`
	Completed int `db:"jobs_completed"`
	Failed    int `db:"jobs_failed"`
}

// Terminal reports whether every dispatched unit has reached a terminal
// outcome.
func (p Progress) Terminal() bool {
	return p.Total > 0 && p.Completed+p.Failed >= p.Total
}

// AuditRepositoryInterface defines storage operations for audits, including
// the atomic progress counters the completion tracker relies on.
type AuditRepositoryInterface interface {
	Create(ctx context.Context, audit *domain.Audit) error
	GetByID(ctx context.Context, id string) (*domain.Audit, error)
	List(ctx context.Context, status string, limit, offset int) ([]*domain.Audit, error)
	ListByDomain(ctx context.Context, siteDomain string, limit int) ([]*domain.Audit, error)
	Update(ctx context.Context, audit *domain.Audit) error

	// UpdateIfStatus applies the update only while the audit still holds the
	// expected status. Reports false when the status moved underneath the
	// caller; the caller must then discard its write.
	UpdateIfStatus(ctx context.Context, audit *domain.Audit, from domain.Status) (bool, error)

	// Delete removes the audit and all child rows in one transaction.
	Delete(ctx context.Context, id string) error

	// Reset deletes all child rows and returns the audit to pending with all
	// derived fields cleared, in one transaction. Used by restart.
	Reset(ctx context.Context, id string) error

	// RegisterJobsTotal fixes the fan-out size for the audit.
	RegisterJobsTotal(ctx context.Context, id string, total int) error

	// IncrementCompleted atomically increments jobs_completed and returns the
	// resulting counters in the same step.
	IncrementCompleted(ctx context.Context, id, currentStep string) (Progress, error)

	// IncrementFailed atomically increments jobs_failed, records the error
	// message, and returns the resulting counters in the same step.
	IncrementFailed(ctx context.Context, id, errorMessage string) (Progress, error)

	// ClaimAggregation flips the audit's aggregation flag if and only if it
	// has not been claimed yet and the counters have reached the total.
	// Returns true for exactly one caller per audit lifecycle.
	ClaimAggregation(ctx context.Context, id string) (bool, error)
}

// PageRepositoryInterface defines storage operations for crawled pages.
type PageRepositoryInterface interface {
	Create(ctx context.Context, page *domain.Page) error
	GetByID(ctx context.Context, id string) (*domain.Page, error)
	ListByAudit(ctx context.Context, auditID string) ([]*domain.Page, error)
	CountByAudit(ctx context.Context, auditID string) (int, error)

	// UpdateMetadata persists the fields the metadata analysis unit fills in.
	UpdateMetadata(ctx context.Context, page *domain.Page) error
}

// FindingRepositoryInterface is the append-only finding sink. There is
// deliberately no update or single-row delete: findings only ever disappear
// with their audit.
type FindingRepositoryInterface interface {
	Create(ctx context.Context, finding *domain.Finding) error
	ListByAudit(ctx context.Context, auditID string) ([]*domain.Finding, error)
	ListByCategory(ctx context.Context, auditID string, category domain.Category) ([]*domain.Finding, error)
	CountByCategory(ctx context.Context, auditID string) (map[domain.Category]int, error)
	CountBySeverity(ctx context.Context, auditID string) (map[domain.Severity]int, error)
}

// LinkRepositoryInterface defines storage operations for link records.
type LinkRepositoryInterface interface {
	Create(ctx context.Context, link *domain.LinkRecord) error
	ListByAudit(ctx context.Context, auditID string) ([]*domain.LinkRecord, error)

	// CountByAudit returns total and broken link counts for an audit.
	CountByAudit(ctx context.Context, auditID string) (total, broken int, err error)
}

// PerformanceRepositoryInterface defines storage operations for performance
// samples.
type PerformanceRepositoryInterface interface {
	Create(ctx context.Context, sample *domain.PerformanceSample) error
	ListByAudit(ctx context.Context, auditID string) ([]*domain.PerformanceSample, error)
}

// CheckoutRepositoryInterface defines storage operations for checkout step
// results.
type CheckoutRepositoryInterface interface {
	Create(ctx context.Context, step *domain.CheckoutStepResult) error

	// ListByAudit returns steps ordered by step number.
	ListByAudit(ctx context.Context, auditID string) ([]*domain.CheckoutStepResult, error)
}

// Repositories bundles every repository for constructor convenience.
type Repositories struct {
	Audits      AuditRepositoryInterface
	Pages       PageRepositoryInterface
	Findings    FindingRepositoryInterface
	Links       LinkRepositoryInterface
	Performance PerformanceRepositoryInterface
	Checkout    CheckoutRepositoryInterface
}
