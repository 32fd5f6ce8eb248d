package discovery_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goaudit/internal/discovery"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/testutils"
)

func TestDiscoverPersistsPages(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	crawler := &testutils.FakeCrawler{Pages: []discovery.DiscoveredPage{
		{URL: "https://shop.example", StatusCode: 200, HTML: "<html>home</html>"},
		{URL: "https://shop.example/products", StatusCode: 200, HTML: "<html>products</html>"},
	}}

	svc := discovery.NewService(crawler, repos.Pages, logger.NewNoOp())
	audit := &domain.Audit{ID: "audit-1", URL: "https://shop.example", MaxPages: 10}

	pages, err := svc.Discover(context.Background(), audit)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	stored, err := repos.Pages.ListByAudit(context.Background(), audit.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "https://shop.example", stored[0].URL)
	assert.Equal(t, "https://shop.example/products", stored[1].URL)
	require.NotNil(t, stored[0].HTMLExcerpt)
	assert.Equal(t, "<html>home</html>", *stored[0].HTMLExcerpt)
	assert.NotNil(t, stored[0].CrawledAt)
	assert.Equal(t, 200, stored[0].StatusCode)
}

func TestDiscoverRespectsMaxPages(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	crawler := &testutils.FakeCrawler{Pages: []discovery.DiscoveredPage{
		{URL: "https://shop.example/1", StatusCode: 200},
		{URL: "https://shop.example/2", StatusCode: 200},
		{URL: "https://shop.example/3", StatusCode: 200},
	}}

	svc := discovery.NewService(crawler, repos.Pages, logger.NewNoOp())
	audit := &domain.Audit{ID: "audit-1", URL: "https://shop.example", MaxPages: 2}

	pages, err := svc.Discover(context.Background(), audit)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestDiscoverTruncatesLongHTML(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	crawler := &testutils.FakeCrawler{Pages: []discovery.DiscoveredPage{
		{URL: "https://shop.example", StatusCode: 200, HTML: strings.Repeat("x", 64*1024+100)},
	}}

	svc := discovery.NewService(crawler, repos.Pages, logger.NewNoOp())
	audit := &domain.Audit{ID: "audit-1", URL: "https://shop.example", MaxPages: 10}

	pages, err := svc.Discover(context.Background(), audit)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Len(t, *pages[0].HTMLExcerpt, 64*1024)
}

func TestDiscoverPropagatesCrawlFailure(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	crawler := &testutils.FakeCrawler{Err: errors.New("failed to fetch seed url")}

	svc := discovery.NewService(crawler, repos.Pages, logger.NewNoOp())
	audit := &domain.Audit{ID: "audit-1", URL: "https://down.example", MaxPages: 10}

	_, err := svc.Discover(context.Background(), audit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discovery failed")
}
