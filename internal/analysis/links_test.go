package analysis

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/testutils"
)

func excerpt(html string) *string { return &html }

func TestLinksUnitRecordsAndClassifies(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{
		ID:      "page-1",
		AuditID: "audit-1",
		URL:     "https://shop.example/products",
		HTMLExcerpt: excerpt(`<html><body>
			<a href="/about">About us</a>
			<a href="https://cdn.partner.example/catalog">Partner catalog</a>
			<img src="/img/hero.png">
		</body></html>`),
	}

	checker := testutils.NewFakeStatusChecker()
	checker.SetStatus("https://shop.example/about", 200)
	checker.SetStatus("https://cdn.partner.example/catalog", 404)
	checker.SetStatus("https://shop.example/img/hero.png", 200)

	unit := NewLinksUnit(page, repos.Links, repos.Findings, testutils.NewFakeFetcher(), checker, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	links, err := repos.Links.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, links, 3)

	byURL := make(map[string]*domain.LinkRecord, len(links))
	for _, l := range links {
		byURL[l.DestinationURL] = l
	}

	about := byURL["https://shop.example/about"]
	require.NotNil(t, about)
	assert.Equal(t, domain.LinkTypeInternal, about.LinkType)
	assert.False(t, about.IsBroken)
	require.NotNil(t, about.LinkText)
	assert.Equal(t, "About us", *about.LinkText)

	partner := byURL["https://cdn.partner.example/catalog"]
	require.NotNil(t, partner)
	assert.Equal(t, domain.LinkTypeExternal, partner.LinkType)
	assert.True(t, partner.IsBroken)

	hero := byURL["https://shop.example/img/hero.png"]
	require.NotNil(t, hero)
	assert.Equal(t, domain.LinkTypeAsset, hero.LinkType)
	assert.False(t, hero.IsBroken)

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Broken Links Found (1)", findings[0].Title)
	assert.Equal(t, domain.SeverityMedium, findings[0].Severity)
	assert.Equal(t, domain.CategoryLinks, findings[0].Category)
	assert.Contains(t, findings[0].Description, "https://cdn.partner.example/catalog (Status: 404)")
}

func TestLinksUnitUnreachableCountsAsBroken(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{
		ID:          "page-1",
		AuditID:     "audit-1",
		URL:         "https://shop.example/",
		HTMLExcerpt: excerpt(`<a href="https://gone.example/page">Gone</a>`),
	}

	// No status registered: the checker answers nil.
	unit := NewLinksUnit(page, repos.Links, repos.Findings, testutils.NewFakeFetcher(), testutils.NewFakeStatusChecker(), config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	links, err := repos.Links.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.True(t, links[0].IsBroken)
	assert.Nil(t, links[0].StatusCode)

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Description, "(Status: unreachable)")
}

func TestLinksUnitManyBrokenLinksEscalateAndTruncate(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()

	var sb strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, `<a href="https://shop.example/dead/%d">Dead %d</a>`, i, i)
	}
	page := &domain.Page{
		ID:          "page-1",
		AuditID:     "audit-1",
		URL:         "https://shop.example/",
		HTMLExcerpt: excerpt(sb.String()),
	}

	checker := testutils.NewFakeStatusChecker()
	for i := 0; i < 8; i++ {
		checker.SetStatus(fmt.Sprintf("https://shop.example/dead/%d", i), 404)
	}

	unit := NewLinksUnit(page, repos.Links, repos.Findings, testutils.NewFakeFetcher(), checker, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Broken Links Found (8)", findings[0].Title)
	assert.Equal(t, domain.SeverityHigh, findings[0].Severity)
	assert.Contains(t, findings[0].Description, "... and 3 more broken links.")
	assert.NotContains(t, findings[0].Description, "dead/5", "only the first five are listed")
}

func TestLinksUnitNoLinksNoFindings(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{
		ID:          "page-1",
		AuditID:     "audit-1",
		URL:         "https://shop.example/",
		HTMLExcerpt: excerpt(`<html><body><p>No links here.</p></body></html>`),
	}

	unit := NewLinksUnit(page, repos.Links, repos.Findings, testutils.NewFakeFetcher(), testutils.NewFakeStatusChecker(), config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	links, err := repos.Links.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	assert.Empty(t, links)

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestLinksUnitRefetchesTruncatedExcerpt(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for sb.Len() < domain.HTMLExcerptLimit {
		sb.WriteString("<p>Seasonal catalog filler copy.</p>\n")
	}
	sb.WriteString(`<a href="https://gone.example/page">Gone</a></body></html>`)
	full := sb.String()
	truncated := full[:domain.HTMLExcerptLimit]

	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{
		ID:          "page-1",
		AuditID:     "audit-1",
		URL:         "https://shop.example/catalog",
		HTMLExcerpt: excerpt(truncated),
	}

	client := testutils.NewFakeFetcher()
	client.SetHTML(page.URL, full)
	checker := testutils.NewFakeStatusChecker()

	unit := NewLinksUnit(page, repos.Links, repos.Findings, client, checker, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	// The excerpt was cut at the cap, so the unit works from a fresh fetch
	// and sees the link past the boundary.
	assert.Equal(t, []string{page.URL}, client.Calls)

	links, err := repos.Links.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://gone.example/page", links[0].DestinationURL)
	assert.True(t, links[0].IsBroken)

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Broken Links Found (1)", findings[0].Title)
}
