// Package pipeline orchestrates the audit lifecycle: discovery, analysis
// fan-out, completion tracking and exactly-once aggregation.
package pipeline

import (
	"context"
	"fmt"

	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// Tracker owns the fan-in decision. Every terminal unit outcome funnels
// through it; the database's atomic increment-and-return plus the
// claim-aggregation compare-and-swap guarantee that exactly one reporter per
// audit observes the transition to "all units terminal".
type Tracker struct {
	audits database.AuditRepositoryInterface
	log    logger.Interface
}

// NewTracker creates a completion tracker.
func NewTracker(audits database.AuditRepositoryInterface, log logger.Interface) *Tracker {
	return &Tracker{audits: audits, log: log.WithComponent("tracker")}
}

// ReportCompleted records one successful unit. The returned flag is true for
// exactly one caller per audit: the one whose report both reached the total
// and won the aggregation claim.
func (t *Tracker) ReportCompleted(ctx context.Context, auditID, step string) (bool, error) {
	progress, err := t.audits.IncrementCompleted(ctx, auditID, step)
	if err != nil {
		return false, fmt.Errorf("failed to record unit completion: %w", err)
	}
	return t.maybeClaim(ctx, auditID, progress)
}

// ReportFailed records one permanently failed unit. Failed units count
// toward the total the same way completed ones do; the claim logic is
// identical.
func (t *Tracker) ReportFailed(ctx context.Context, auditID, errorMessage string) (bool, error) {
	progress, err := t.audits.IncrementFailed(ctx, auditID, errorMessage)
	if err != nil {
		return false, fmt.Errorf("failed to record unit failure: %w", err)
	}
	return t.maybeClaim(ctx, auditID, progress)
}

func (t *Tracker) maybeClaim(ctx context.Context, auditID string, progress database.Progress) (bool, error) {
	if !progress.Terminal() {
		return false, nil
	}

	claimed, err := t.audits.ClaimAggregation(ctx, auditID)
	if err != nil {
		return false, fmt.Errorf("failed to claim aggregation: %w", err)
	}
	if claimed {
		t.log.WithAudit(auditID).Info("fan-out complete",
			"completed", progress.Completed,
			"failed", progress.Failed,
			"total", progress.Total,
		)
	}
	return claimed, nil
}
