package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/lighthouse"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/testutils"
)

func TestPerformanceUnitStoresSample(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{ID: "page-1", AuditID: "audit-1", URL: "https://shop.example/"}

	measurer := testutils.NewFakeMeasurer()
	measurer.Set(page.URL, domain.DeviceDesktop, &lighthouse.Measurement{
		LCP:              testutils.Float(1.8),
		CLS:              testutils.Float(0.05),
		PerformanceScore: testutils.Int(92),
	})

	unit := NewPerformanceUnit(page, domain.DeviceDesktop, measurer, repos.Performance, repos.Findings, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	samples, err := repos.Performance.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, domain.DeviceDesktop, samples[0].DeviceType)
	assert.Equal(t, page.ID, samples[0].PageID)
	require.NotNil(t, samples[0].LCP)
	assert.InDelta(t, 1.8, *samples[0].LCP, 1e-9)

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	assert.Empty(t, findings, "healthy metrics produce no findings")
}

func TestPerformanceUnitThresholdFindings(t *testing.T) {
	tests := []struct {
		name         string
		meas         *lighthouse.Measurement
		wantTitle    string
		wantSeverity domain.Severity
	}{
		{
			name:         "lcp critical",
			meas:         &lighthouse.Measurement{LCP: testutils.Float(4.2)},
			wantTitle:    "Poor LCP Score (Desktop)",
			wantSeverity: domain.SeverityCritical,
		},
		{
			name:         "lcp needs improvement",
			meas:         &lighthouse.Measurement{LCP: testutils.Float(3.0)},
			wantTitle:    "LCP Needs Improvement (Desktop)",
			wantSeverity: domain.SeverityHigh,
		},
		{
			name:         "cls poor",
			meas:         &lighthouse.Measurement{CLS: testutils.Float(0.3)},
			wantTitle:    "Poor CLS Score (Desktop)",
			wantSeverity: domain.SeverityHigh,
		},
		{
			name:         "cls needs improvement",
			meas:         &lighthouse.Measurement{CLS: testutils.Float(0.15)},
			wantTitle:    "CLS Needs Improvement (Desktop)",
			wantSeverity: domain.SeverityMedium,
		},
		{
			name:         "performance score poor",
			meas:         &lighthouse.Measurement{PerformanceScore: testutils.Int(40)},
			wantTitle:    "Poor Performance Score (Desktop)",
			wantSeverity: domain.SeverityCritical,
		},
		{
			name:         "performance score needs improvement",
			meas:         &lighthouse.Measurement{PerformanceScore: testutils.Int(68)},
			wantTitle:    "Performance Score Needs Improvement (Desktop)",
			wantSeverity: domain.SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, _ := testutils.NewMemoryRepositories()
			page := &domain.Page{ID: "page-1", AuditID: "audit-1", URL: "https://shop.example/"}

			measurer := testutils.NewFakeMeasurer()
			measurer.Set(page.URL, domain.DeviceDesktop, tt.meas)

			unit := NewPerformanceUnit(page, domain.DeviceDesktop, measurer, repos.Performance, repos.Findings, config.Default().Analysis, logger.NewNoOp())
			require.NoError(t, unit.Run(context.Background()))

			findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
			require.NoError(t, err)
			require.Len(t, findings, 1)
			assert.Equal(t, tt.wantTitle, findings[0].Title)
			assert.Equal(t, tt.wantSeverity, findings[0].Severity)
			assert.Equal(t, domain.CategoryPerformance, findings[0].Category)
		})
	}
}

func TestPerformanceUnitMobileFindingsUseMobileCategory(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{ID: "page-1", AuditID: "audit-1", URL: "https://shop.example/"}

	measurer := testutils.NewFakeMeasurer()
	measurer.Set(page.URL, domain.DeviceMobile, &lighthouse.Measurement{LCP: testutils.Float(4.2)})

	unit := NewPerformanceUnit(page, domain.DeviceMobile, measurer, repos.Performance, repos.Findings, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Poor LCP Score (Mobile)", findings[0].Title)
	assert.Equal(t, domain.CategoryMobile, findings[0].Category)
}

func TestPerformanceUnitMeasurerError(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{ID: "page-1", AuditID: "audit-1", URL: "https://shop.example/"}

	measurer := testutils.NewFakeMeasurer()
	measurer.Err = errors.New("lighthouse exited with status 1")

	unit := NewPerformanceUnit(page, domain.DeviceDesktop, measurer, repos.Performance, repos.Findings, config.Default().Analysis, logger.NewNoOp())
	err := unit.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lighthouse exited")

	require.NoError(t, unit.HandleFailure(context.Background(), err))
	findings, ferr := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, ferr)
	require.Len(t, findings, 1)
	assert.Equal(t, "Performance Analysis Failed", findings[0].Title)
	assert.Equal(t, domain.CategoryPerformance, findings[0].Category)
}

func TestPerformanceUnitReRunOverwritesSample(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{ID: "page-1", AuditID: "audit-1", URL: "https://shop.example/"}

	measurer := testutils.NewFakeMeasurer()
	measurer.Set(page.URL, domain.DeviceDesktop, &lighthouse.Measurement{
		PerformanceScore: testutils.Int(90),
	})

	unit := NewPerformanceUnit(page, domain.DeviceDesktop, measurer, repos.Performance, repos.Findings, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	// A retried attempt re-measures and re-stores; the second run replaces
	// the first sample instead of duplicating it.
	measurer.Set(page.URL, domain.DeviceDesktop, &lighthouse.Measurement{
		PerformanceScore: testutils.Int(82),
	})
	require.NoError(t, unit.Run(context.Background()))

	samples, err := repos.Performance.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.NotNil(t, samples[0].PerformanceScore)
	assert.Equal(t, 82, *samples[0].PerformanceScore)
}
