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
	"github.com/jonesrussell/goaudit/internal/fetcher"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// LinksUnit extracts every link on a page, probes each destination, records
// a LinkRecord per link, and emits one aggregate finding when broken links
// are present.
type LinksUnit struct {
	page     *domain.Page
	links    database.LinkRepositoryInterface
	findings FindingSink
	client   fetcher.Client
	checker  fetcher.StatusChecker
	cfg      config.AnalysisConfig
	log      logger.Interface
}

// NewLinksUnit creates a link validation unit for a single page.
func NewLinksUnit(
	page *domain.Page,
	links database.LinkRepositoryInterface,
	findings FindingSink,
	client fetcher.Client,
	checker fetcher.StatusChecker,
	cfg config.AnalysisConfig,
	log logger.Interface,
) *LinksUnit {
	return &LinksUnit{
		page:     page,
		links:    links,
		findings: findings,
		client:   client,
		checker:  checker,
		cfg:      cfg,
		log:      log.WithComponent("analysis.links").WithAudit(page.AuditID),
	}
}

func (u *LinksUnit) Kind() Kind { return KindLinks }

func (u *LinksUnit) Describe() string {
	return fmt.Sprintf("link validation of %s", u.page.URL)
}

type brokenLink struct {
	url    string
	text   string
	status *int
}

// Run checks every outbound link and asset on the page. A link is broken
// when its destination cannot be reached at all or answers with a 4xx/5xx.
func (u *LinksUnit) Run(ctx context.Context) error {
	html, err := u.pageHTML(ctx)
	if err != nil {
		return err
	}

	extracted, err := fetcher.ExtractLinks(html, u.page.URL)
	if err != nil {
		return fmt.Errorf("failed to extract links from %s: %w", u.page.URL, err)
	}

	var broken []brokenLink
	for _, link := range extracted {
		status := u.checker.Check(ctx, link.URL)
		isBroken := status == nil || *status >= 400

		record := &domain.LinkRecord{
			ID:             uuid.New().String(),
			AuditID:        u.page.AuditID,
			SourcePageID:   u.page.ID,
			DestinationURL: link.URL,
			LinkType:       fetcher.ClassifyLink(link.URL, u.page.URL),
			StatusCode:     status,
			IsBroken:       isBroken,
			CheckedAt:      time.Now(),
		}
		if link.Text != "" {
			record.LinkText = ptr(link.Text)
		}
		if err := u.links.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to store link record: %w", err)
		}

		if isBroken {
			broken = append(broken, brokenLink{url: link.URL, text: link.Text, status: status})
		}
	}

	if len(broken) > 0 {
		u.recordBrokenLinks(ctx, broken)
	}

	u.log.Debug("links validated",
		"url", u.page.URL,
		"total", len(extracted),
		"broken", len(broken),
	)
	return nil
}

// HandleFailure records a diagnostic links finding for the page.
func (u *LinksUnit) HandleFailure(ctx context.Context, cause error) error {
	f := newFinding(u.page.AuditID, domain.CategoryLinks, domain.SeverityMedium)
	f.PageID = &u.page.ID
	f.Title = "Link Validation Failed"
	f.Description = fmt.Sprintf("Failed to validate links on this page: %v", cause)
	f.Recommendation = "Retry the audit or manually check links on this page."
	return u.findings.Create(ctx, f)
}

func (u *LinksUnit) pageHTML(ctx context.Context) (string, error) {
	if u.page.HasFullHTML() {
		return *u.page.HTMLExcerpt, nil
	}

	res, err := u.client.Fetch(ctx, u.page.URL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", u.page.URL, err)
	}
	return res.HTML, nil
}

// recordBrokenLinks emits one aggregate finding listing the first few broken
// links. Severity steps up to high past the configured threshold.
func (u *LinksUnit) recordBrokenLinks(ctx context.Context, broken []brokenLink) {
	count := len(broken)
	severity := domain.SeverityMedium
	if count > u.cfg.BrokenLinksHigh {
		severity = domain.SeverityHigh
	}

	shown := broken
	if len(shown) > u.cfg.BrokenLinksShown {
		shown = shown[:u.cfg.BrokenLinksShown]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d broken link(s) on this page:\n", count)
	for _, link := range shown {
		statusText := "unreachable"
		if link.status != nil {
			statusText = fmt.Sprintf("%d", *link.status)
		}
		fmt.Fprintf(&sb, "- %s (Status: %s)", link.url, statusText)
		if link.text != "" {
			fmt.Fprintf(&sb, " - Link text: %q", link.text)
		}
		sb.WriteString("\n")
	}
	if count > len(shown) {
		fmt.Fprintf(&sb, "\n... and %d more broken links.", count-len(shown))
	}

	f := newFinding(u.page.AuditID, domain.CategoryLinks, severity)
	f.PageID = &u.page.ID
	f.Title = fmt.Sprintf("Broken Links Found (%d)", count)
	f.Description = sb.String()
	f.Recommendation = "Fix or remove broken links. Check if the linked pages have moved or been deleted, and update the URLs accordingly."
	f.Metadata = domain.JSONBMap{"broken_links_count": count}

	if err := u.findings.Create(ctx, f); err != nil {
		u.log.Error("failed to record finding", "title", f.Title, "error", err)
	}
}
