package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/testutils"
)

func intPtr(v int) *int { return &v }

func seedCompletedAudit(t *testing.T, repos database.Repositories, id, siteDomain string, score int, createdAt time.Time) *domain.Audit {
	t.Helper()
	audit := &domain.Audit{
		ID:        id,
		Domain:    siteDomain,
		URL:       "https://" + siteDomain,
		Status:    domain.StatusCompleted,
		Score:     intPtr(score),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, repos.Audits.Create(context.Background(), audit))
	return audit
}

func TestSummarize(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	svc := NewService(repos, config.Default().Scoring, logger.NewNoOp())
	ctx := context.Background()

	audit := seedCompletedAudit(t, repos, "audit-1", "shop.example", 85, time.Now())
	require.NoError(t, repos.Pages.Create(ctx, &domain.Page{ID: "p1", AuditID: audit.ID, URL: audit.URL}))
	require.NoError(t, repos.Findings.Create(ctx, &domain.Finding{
		ID: "f1", AuditID: audit.ID,
		Category: domain.CategorySEO, Severity: domain.SeverityMedium,
		Title: "Missing Meta Description",
	}))
	require.NoError(t, repos.Findings.Create(ctx, &domain.Finding{
		ID: "f2", AuditID: audit.ID,
		Category: domain.CategoryLinks, Severity: domain.SeverityMedium,
		Title: "Broken Links Found (1)",
	}))
	require.NoError(t, repos.Links.Create(ctx, &domain.LinkRecord{
		ID: "l1", AuditID: audit.ID, SourcePageID: "p1",
		DestinationURL: "https://shop.example/about", LinkType: domain.LinkTypeInternal,
	}))
	require.NoError(t, repos.Links.Create(ctx, &domain.LinkRecord{
		ID: "l2", AuditID: audit.ID, SourcePageID: "p1",
		DestinationURL: "https://gone.example/", LinkType: domain.LinkTypeExternal, IsBroken: true,
	}))

	summary, err := svc.Summarize(ctx, audit.ID)
	require.NoError(t, err)

	assert.Equal(t, audit.ID, summary.Audit.ID)
	assert.Equal(t, 2, summary.TotalFindings)
	assert.Equal(t, 1, summary.FindingsByCat[domain.CategorySEO])
	assert.Equal(t, 1, summary.FindingsByCat[domain.CategoryLinks])
	assert.Equal(t, 2, summary.FindingsBySev[domain.SeverityMedium])
	assert.Equal(t, 2, summary.TotalLinks)
	assert.Equal(t, 1, summary.BrokenLinks)
	assert.Equal(t, 1, summary.PagesCrawled)
	assert.NotEmpty(t, summary.Grade)
	assert.InDelta(t, 50.0, summary.CategoryScores[domain.CategoryLinks], 1e-9)
}

func TestSummarizeUnknownAudit(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	svc := NewService(repos, config.Default().Scoring, logger.NewNoOp())

	_, err := svc.Summarize(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrAuditNotFound)
}

func TestCompare(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	svc := NewService(repos, config.Default().Scoring, logger.NewNoOp())
	ctx := context.Background()

	previous := seedCompletedAudit(t, repos, "audit-old", "shop.example", 60, time.Now().Add(-24*time.Hour))
	current := seedCompletedAudit(t, repos, "audit-new", "shop.example", 75, time.Now())

	cmp, err := svc.Compare(ctx, current.ID, previous.ID)
	require.NoError(t, err)
	assert.Equal(t, current.ID, cmp.Current.Audit.ID)
	assert.Equal(t, previous.ID, cmp.Previous.Audit.ID)
	assert.Equal(t, 15, cmp.Change.Absolute)
	assert.Equal(t, "up", cmp.Change.Direction)
}

func TestCompareRejectsMismatchedAudits(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	svc := NewService(repos, config.Default().Scoring, logger.NewNoOp())
	ctx := context.Background()

	completed := seedCompletedAudit(t, repos, "audit-1", "shop.example", 75, time.Now())
	otherDomain := seedCompletedAudit(t, repos, "audit-2", "other.example", 60, time.Now())

	pending := &domain.Audit{
		ID: "audit-3", Domain: "shop.example", URL: "https://shop.example",
		Status: domain.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, repos.Audits.Create(ctx, pending))

	_, err := svc.Compare(ctx, completed.ID, pending.ID)
	assert.ErrorIs(t, err, ErrIncomparable)

	_, err = svc.Compare(ctx, completed.ID, otherDomain.ID)
	assert.ErrorIs(t, err, ErrIncomparable)
}

func TestLatest(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	svc := NewService(repos, config.Default().Scoring, logger.NewNoOp())
	ctx := context.Background()

	seedCompletedAudit(t, repos, "audit-old", "shop.example", 60, time.Now().Add(-48*time.Hour))
	newest := seedCompletedAudit(t, repos, "audit-new", "shop.example", 80, time.Now().Add(-time.Hour))
	require.NoError(t, repos.Audits.Create(ctx, &domain.Audit{
		ID: "audit-pending", Domain: "shop.example", URL: "https://shop.example",
		Status: domain.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	latest, err := svc.Latest(ctx, "shop.example")
	require.NoError(t, err)
	assert.Equal(t, newest.ID, latest.ID)

	_, err = svc.Latest(ctx, "unknown.example")
	assert.Error(t, err)
}
