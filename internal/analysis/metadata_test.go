package analysis

import (
	"context"
	"errors"
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

func pageHTML(title, description, h1 string) string {
	var sb strings.Builder
	sb.WriteString("<html><head>")
	if title != "" {
		fmt.Fprintf(&sb, "<title>%s</title>", title)
	}
	if description != "" {
		fmt.Fprintf(&sb, `<meta name="description" content="%s">`, description)
	}
	sb.WriteString("</head><body>")
	if h1 != "" {
		fmt.Fprintf(&sb, "<h1>%s</h1>", h1)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func TestMetadataUnitTitleThresholds(t *testing.T) {
	goodDesc := strings.Repeat("d", 120)

	tests := []struct {
		name         string
		title        string
		wantTitle    string
		wantSeverity domain.Severity
	}{
		{
			name:         "short title",
			title:        strings.Repeat("a", 20),
			wantTitle:    "Title Too Short",
			wantSeverity: domain.SeverityMedium,
		},
		{
			name:         "long title",
			title:        strings.Repeat("a", 70),
			wantTitle:    "Title Too Long",
			wantSeverity: domain.SeverityLow,
		},
		{
			name:         "missing title",
			title:        "",
			wantTitle:    "Missing Page Title",
			wantSeverity: domain.SeverityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, _ := testutils.NewMemoryRepositories()
			page := &domain.Page{ID: "page-1", AuditID: "audit-1", URL: "https://shop.example/products"}
			require.NoError(t, repos.Pages.Create(context.Background(), page))

			client := testutils.NewFakeFetcher()
			client.SetHTML(page.URL, pageHTML(tt.title, goodDesc, "Products"))

			unit := NewMetadataUnit(page, repos.Pages, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
			require.NoError(t, unit.Run(context.Background()))

			findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
			require.NoError(t, err)

			var matched []*domain.Finding
			for _, f := range findings {
				if strings.Contains(f.Title, "Title") {
					matched = append(matched, f)
				}
			}
			require.Len(t, matched, 1, "exactly one title finding expected")
			assert.Equal(t, tt.wantTitle, matched[0].Title)
			assert.Equal(t, tt.wantSeverity, matched[0].Severity)
			assert.Equal(t, domain.CategorySEO, matched[0].Category)
			require.NotNil(t, matched[0].PageID)
			assert.Equal(t, page.ID, *matched[0].PageID)
		})
	}
}

func TestMetadataUnitCleanPageProducesNoFindings(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{ID: "page-1", AuditID: "audit-1", URL: "https://shop.example/"}
	require.NoError(t, repos.Pages.Create(context.Background(), page))

	client := testutils.NewFakeFetcher()
	client.SetHTML(page.URL, pageHTML(
		strings.Repeat("t", 45),
		strings.Repeat("d", 140),
		"Welcome to the Shop",
	))

	unit := NewMetadataUnit(page, repos.Pages, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	assert.Empty(t, findings)

	stored, err := repos.Pages.GetByID(context.Background(), page.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Title)
	assert.Equal(t, strings.Repeat("t", 45), *stored.Title)
	require.NotNil(t, stored.H1)
	assert.Equal(t, "Welcome to the Shop", *stored.H1)
}

func TestMetadataUnitMissingDescriptionAndH1(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{ID: "page-1", AuditID: "audit-1", URL: "https://shop.example/cart"}
	require.NoError(t, repos.Pages.Create(context.Background(), page))

	client := testutils.NewFakeFetcher()
	client.SetHTML(page.URL, pageHTML(strings.Repeat("t", 45), "", ""))

	unit := NewMetadataUnit(page, repos.Pages, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)

	titles := make([]string, 0, len(findings))
	for _, f := range findings {
		titles = append(titles, f.Title)
	}
	assert.ElementsMatch(t, []string{"Missing Meta Description", "Missing H1 Tag"}, titles)
}

func TestMetadataUnitHandleFailure(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	page := &domain.Page{ID: "page-1", AuditID: "audit-1", URL: "https://shop.example/"}

	unit := NewMetadataUnit(page, repos.Pages, repos.Findings, testutils.NewFakeFetcher(), config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.HandleFailure(context.Background(), errors.New("connection refused")))

	findings, err := repos.Findings.ListByAudit(context.Background(), page.AuditID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Page Analysis Failed", findings[0].Title)
	assert.Equal(t, domain.SeverityHigh, findings[0].Severity)
	assert.Equal(t, domain.CategorySEO, findings[0].Category)
	assert.Contains(t, findings[0].Description, "connection refused")
}
