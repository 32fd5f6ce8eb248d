package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/lighthouse"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// PerformanceUnit measures one page on one device class and records the
// sample plus threshold findings. Each (page, device) pair is its own unit.
type PerformanceUnit struct {
	page     *domain.Page
	device   domain.DeviceType
	measurer lighthouse.Measurer
	samples  database.PerformanceRepositoryInterface
	findings FindingSink
	cfg      config.AnalysisConfig
	log      logger.Interface
}

// NewPerformanceUnit creates a performance unit for a page and device type.
func NewPerformanceUnit(
	page *domain.Page,
	device domain.DeviceType,
	measurer lighthouse.Measurer,
	samples database.PerformanceRepositoryInterface,
	findings FindingSink,
	cfg config.AnalysisConfig,
	log logger.Interface,
) *PerformanceUnit {
	return &PerformanceUnit{
		page:     page,
		device:   device,
		measurer: measurer,
		samples:  samples,
		findings: findings,
		cfg:      cfg,
		log:      log.WithComponent("analysis.performance").WithAudit(page.AuditID),
	}
}

func (u *PerformanceUnit) Kind() Kind { return KindPerformance }

func (u *PerformanceUnit) Describe() string {
	return fmt.Sprintf("performance measurement of %s (%s)", u.page.URL, u.device)
}

// Run measures the page, stores the sample, and records findings for metric
// values past the configured thresholds.
func (u *PerformanceUnit) Run(ctx context.Context) error {
	started := time.Now()

	meas, err := u.measurer.Measure(ctx, u.page.URL, u.device)
	if err != nil {
		return fmt.Errorf("failed to measure %s (%s): %w", u.page.URL, u.device, err)
	}

	sample := &domain.PerformanceSample{
		ID:                 uuid.New().String(),
		PageID:             u.page.ID,
		AuditID:            u.page.AuditID,
		DeviceType:         u.device,
		LCP:                meas.LCP,
		FID:                meas.FID,
		CLS:                meas.CLS,
		FCP:                meas.FCP,
		TTFB:               meas.TTFB,
		SpeedIndex:         meas.SpeedIndex,
		TotalBlockingTime:  meas.TotalBlockingTime,
		PerformanceScore:   meas.PerformanceScore,
		AccessibilityScore: meas.AccessibilityScore,
		SEOScore:           meas.SEOScore,
		BestPracticesScore: meas.BestPracticesScore,
		RawReport:          domain.JSONBMap(meas.RawReport),
		CreatedAt:          time.Now(),
	}
	if err := u.samples.Create(ctx, sample); err != nil {
		return fmt.Errorf("failed to store performance sample: %w", err)
	}

	u.checkThresholds(ctx, meas)

	u.log.WithDuration(time.Since(started)).Debug("page measured",
		"url", u.page.URL,
		"device", u.device,
	)
	return nil
}

// HandleFailure records a diagnostic performance finding for the page.
func (u *PerformanceUnit) HandleFailure(ctx context.Context, cause error) error {
	f := newFinding(u.page.AuditID, domain.CategoryPerformance, domain.SeverityHigh)
	f.PageID = &u.page.ID
	f.Title = "Performance Analysis Failed"
	f.Description = fmt.Sprintf("Failed to run performance analysis: %v", cause)
	f.Recommendation = "Check if Lighthouse CLI is properly installed and the page is accessible."
	return u.findings.Create(ctx, f)
}

// checkThresholds mirrors the Core Web Vitals grading: LCP and CLS get a
// poor/needs-improvement split, the overall performance score a
// critical/medium split. Mobile measurements land in the mobile category so
// they feed the mobile score.
func (u *PerformanceUnit) checkThresholds(ctx context.Context, meas *lighthouse.Measurement) {
	category := domain.CategoryPerformance
	if u.device == domain.DeviceMobile {
		category = domain.CategoryMobile
	}
	deviceLabel := titleCase(string(u.device))

	if meas.LCP != nil {
		switch {
		case *meas.LCP > u.cfg.LCPCritical:
			f := newFinding(u.page.AuditID, category, domain.SeverityCritical)
			f.PageID = &u.page.ID
			f.Title = fmt.Sprintf("Poor LCP Score (%s)", deviceLabel)
			f.Description = fmt.Sprintf(
				"Largest Contentful Paint is %.2fs, which is considered poor (should be < 2.5s).", *meas.LCP)
			f.Recommendation = "Optimize images, reduce server response times, eliminate render-blocking resources, and use a CDN."
			f.Metadata = domain.JSONBMap{"metric": "lcp", "value": *meas.LCP, "device": string(u.device)}
			u.record(ctx, f)

		case *meas.LCP > u.cfg.LCPHigh:
			f := newFinding(u.page.AuditID, category, domain.SeverityHigh)
			f.PageID = &u.page.ID
			f.Title = fmt.Sprintf("LCP Needs Improvement (%s)", deviceLabel)
			f.Description = fmt.Sprintf(
				"Largest Contentful Paint is %.2fs, which needs improvement (should be < 2.5s).", *meas.LCP)
			f.Recommendation = "Optimize images and reduce server response times."
			f.Metadata = domain.JSONBMap{"metric": "lcp", "value": *meas.LCP, "device": string(u.device)}
			u.record(ctx, f)
		}
	}

	if meas.CLS != nil {
		switch {
		case *meas.CLS > u.cfg.CLSHigh:
			f := newFinding(u.page.AuditID, category, domain.SeverityHigh)
			f.PageID = &u.page.ID
			f.Title = fmt.Sprintf("Poor CLS Score (%s)", deviceLabel)
			f.Description = fmt.Sprintf(
				"Cumulative Layout Shift is %.3f, which is considered poor (should be < 0.1).", *meas.CLS)
			f.Recommendation = "Include size attributes on images and video elements, avoid inserting content above existing content, and use CSS transforms."
			f.Metadata = domain.JSONBMap{"metric": "cls", "value": *meas.CLS, "device": string(u.device)}
			u.record(ctx, f)

		case *meas.CLS > u.cfg.CLSMedium:
			f := newFinding(u.page.AuditID, category, domain.SeverityMedium)
			f.PageID = &u.page.ID
			f.Title = fmt.Sprintf("CLS Needs Improvement (%s)", deviceLabel)
			f.Description = fmt.Sprintf(
				"Cumulative Layout Shift is %.3f, which needs improvement (should be < 0.1).", *meas.CLS)
			f.Recommendation = "Add size attributes to images and avoid dynamic content insertion."
			f.Metadata = domain.JSONBMap{"metric": "cls", "value": *meas.CLS, "device": string(u.device)}
			u.record(ctx, f)
		}
	}

	if meas.PerformanceScore != nil {
		switch {
		case *meas.PerformanceScore < u.cfg.PerfScoreCritical:
			f := newFinding(u.page.AuditID, category, domain.SeverityCritical)
			f.PageID = &u.page.ID
			f.Title = fmt.Sprintf("Poor Performance Score (%s)", deviceLabel)
			f.Description = fmt.Sprintf(
				"Lighthouse performance score is %d/100, which is poor.", *meas.PerformanceScore)
			f.Recommendation = "Review Lighthouse report for specific recommendations. Focus on optimizing images, reducing JavaScript, and improving server response times."
			f.Metadata = domain.JSONBMap{"score": *meas.PerformanceScore, "device": string(u.device)}
			u.record(ctx, f)

		case *meas.PerformanceScore < u.cfg.PerfScoreMedium:
			f := newFinding(u.page.AuditID, category, domain.SeverityMedium)
			f.PageID = &u.page.ID
			f.Title = fmt.Sprintf("Performance Score Needs Improvement (%s)", deviceLabel)
			f.Description = fmt.Sprintf("Lighthouse performance score is %d/100.", *meas.PerformanceScore)
			f.Recommendation = "Review Lighthouse report for optimization opportunities."
			f.Metadata = domain.JSONBMap{"score": *meas.PerformanceScore, "device": string(u.device)}
			u.record(ctx, f)
		}
	}
}

func (u *PerformanceUnit) record(ctx context.Context, f *domain.Finding) {
	if err := u.findings.Create(ctx, f); err != nil {
		u.log.Error("failed to record finding", "title", f.Title, "error", err)
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
