package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goaudit/internal/domain"
)

// PerformanceRepository handles database operations for performance samples.
type PerformanceRepository struct {
	db *sqlx.DB
}

// NewPerformanceRepository creates a new performance repository.
func NewPerformanceRepository(db *sqlx.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// Create upserts a performance sample keyed on (page, device type). A
// retried analysis attempt that already stored one device's sample simply
// overwrites it, so unit re-execution stays safe.
func (r *PerformanceRepository) Create(ctx context.Context, sample *domain.PerformanceSample) error {
	query := `
		INSERT INTO performance_samples (id, audit_id, page_id, device_type,
			lcp, fid, cls, fcp, ttfb, speed_index, total_blocking_time,
			performance_score, accessibility_score, seo_score,
			best_practices_score, raw_report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (page_id, device_type) DO UPDATE SET
			lcp = EXCLUDED.lcp,
			fid = EXCLUDED.fid,
			cls = EXCLUDED.cls,
			fcp = EXCLUDED.fcp,
			ttfb = EXCLUDED.ttfb,
			speed_index = EXCLUDED.speed_index,
			total_blocking_time = EXCLUDED.total_blocking_time,
			performance_score = EXCLUDED.performance_score,
			accessibility_score = EXCLUDED.accessibility_score,
			seo_score = EXCLUDED.seo_score,
			best_practices_score = EXCLUDED.best_practices_score,
			raw_report = EXCLUDED.raw_report
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		sample.ID, sample.AuditID, sample.PageID, sample.DeviceType,
		sample.LCP, sample.FID, sample.CLS, sample.FCP, sample.TTFB,
		sample.SpeedIndex, sample.TotalBlockingTime,
		sample.PerformanceScore, sample.AccessibilityScore, sample.SEOScore,
		sample.BestPracticesScore, sample.RawReport,
	).Scan(&sample.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create performance sample: %w", err)
	}

	return nil
}

// ListByAudit returns all performance samples of one audit.
func (r *PerformanceRepository) ListByAudit(ctx context.Context, auditID string) ([]*domain.PerformanceSample, error) {
	var samples []*domain.PerformanceSample
	query := `
		SELECT id, audit_id, page_id, device_type, lcp, fid, cls, fcp, ttfb,
		       speed_index, total_blocking_time, performance_score,
		       accessibility_score, seo_score, best_practices_score,
		       raw_report, created_at
		FROM performance_samples
		WHERE audit_id = $1
		ORDER BY created_at, id
	`

	err := r.db.SelectContext(ctx, &samples, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list performance samples: %w", err)
	}

	if samples == nil {
		samples = []*domain.PerformanceSample{}
	}

	return samples, nil
}
