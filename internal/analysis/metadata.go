package analysis

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/fetcher"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// MetadataUnit analyzes one page's SEO metadata: title, meta description and
// H1 heading. It enriches the page row and records a finding per violation.
type MetadataUnit struct {
	page     *domain.Page
	pages    database.PageRepositoryInterface
	findings FindingSink
	client   fetcher.Client
	cfg      config.AnalysisConfig
	log      logger.Interface
}

// NewMetadataUnit creates a metadata unit for a single page.
func NewMetadataUnit(
	page *domain.Page,
	pages database.PageRepositoryInterface,
	findings FindingSink,
	client fetcher.Client,
	cfg config.AnalysisConfig,
	log logger.Interface,
) *MetadataUnit {
	return &MetadataUnit{
		page:     page,
		pages:    pages,
		findings: findings,
		client:   client,
		cfg:      cfg,
		log:      log.WithComponent("analysis.metadata").WithAudit(page.AuditID),
	}
}

func (u *MetadataUnit) Kind() Kind { return KindMetadata }

func (u *MetadataUnit) Describe() string {
	return fmt.Sprintf("metadata analysis of %s", u.page.URL)
}

// Run fetches the page, extracts its metadata, updates the page row, and
// records SEO findings for missing or malformed elements.
func (u *MetadataUnit) Run(ctx context.Context) error {
	html, err := u.pageHTML(ctx)
	if err != nil {
		return err
	}

	md, err := fetcher.ExtractMetadata(html)
	if err != nil {
		return fmt.Errorf("failed to extract metadata from %s: %w", u.page.URL, err)
	}

	setOptional(&u.page.Title, md.Title)
	setOptional(&u.page.MetaDescription, md.MetaDescription)
	setOptional(&u.page.H1, md.H1)

	if err := u.pages.UpdateMetadata(ctx, u.page); err != nil {
		return fmt.Errorf("failed to update page metadata: %w", err)
	}

	issues := 0
	issues += u.checkTitle(ctx, md.Title)
	issues += u.checkDescription(ctx, md.MetaDescription)
	issues += u.checkH1(ctx, md.H1)

	u.log.Debug("metadata analyzed", "url", u.page.URL, "issues", issues)
	return nil
}

// HandleFailure records a diagnostic SEO finding for the page.
func (u *MetadataUnit) HandleFailure(ctx context.Context, cause error) error {
	f := newFinding(u.page.AuditID, domain.CategorySEO, domain.SeverityHigh)
	f.PageID = &u.page.ID
	f.Title = "Page Analysis Failed"
	f.Description = fmt.Sprintf("Failed to analyze page: %v", cause)
	f.Recommendation = "Check if the page is accessible and retry the audit."
	return u.findings.Create(ctx, f)
}

// pageHTML returns the page document, preferring the excerpt captured during
// discovery and re-fetching when it is absent or truncated.
func (u *MetadataUnit) pageHTML(ctx context.Context) (string, error) {
	if u.page.HasFullHTML() {
		return *u.page.HTMLExcerpt, nil
	}

	res, err := u.client.Fetch(ctx, u.page.URL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", u.page.URL, err)
	}
	if res.StatusCode >= 400 {
		return "", fmt.Errorf("page %s returned status %d", u.page.URL, res.StatusCode)
	}
	return res.HTML, nil
}

func (u *MetadataUnit) checkTitle(ctx context.Context, title string) int {
	length := utf8.RuneCountInString(title)

	switch {
	case title == "":
		f := newFinding(u.page.AuditID, domain.CategorySEO, domain.SeverityHigh)
		f.PageID = &u.page.ID
		f.Title = "Missing Page Title"
		f.Description = fmt.Sprintf("The page at %s does not have a title tag.", u.page.URL)
		f.Recommendation = "Add a descriptive title tag (50-60 characters) that includes target keywords."
		f.AffectedElement = ptr("<title>")
		u.record(ctx, f)
		return 1

	case length < u.cfg.TitleMinLength:
		f := newFinding(u.page.AuditID, domain.CategorySEO, domain.SeverityMedium)
		f.PageID = &u.page.ID
		f.Title = "Title Too Short"
		f.Description = fmt.Sprintf("The page title is only %d characters long.", length)
		f.Recommendation = "Expand the title to 50-60 characters for better SEO."
		f.AffectedElement = ptr("<title>")
		u.record(ctx, f)
		return 1

	case length > u.cfg.TitleMaxLength:
		f := newFinding(u.page.AuditID, domain.CategorySEO, domain.SeverityLow)
		f.PageID = &u.page.ID
		f.Title = "Title Too Long"
		f.Description = fmt.Sprintf(
			"The page title is %d characters long and may be truncated in search results.", length)
		f.Recommendation = "Shorten the title to 50-60 characters."
		f.AffectedElement = ptr("<title>")
		u.record(ctx, f)
		return 1
	}

	return 0
}

func (u *MetadataUnit) checkDescription(ctx context.Context, desc string) int {
	length := utf8.RuneCountInString(desc)

	switch {
	case desc == "":
		f := newFinding(u.page.AuditID, domain.CategorySEO, domain.SeverityMedium)
		f.PageID = &u.page.ID
		f.Title = "Missing Meta Description"
		f.Description = fmt.Sprintf("The page at %s does not have a meta description.", u.page.URL)
		f.Recommendation = "Add a compelling meta description (150-160 characters) that encourages clicks."
		f.AffectedElement = ptr(`<meta name="description">`)
		u.record(ctx, f)
		return 1

	case length > u.cfg.DescMaxLength:
		f := newFinding(u.page.AuditID, domain.CategorySEO, domain.SeverityLow)
		f.PageID = &u.page.ID
		f.Title = "Meta Description Too Long"
		f.Description = fmt.Sprintf(
			"The meta description is %d characters and may be truncated in search results.", length)
		f.Recommendation = "Shorten the meta description to 150-160 characters."
		f.AffectedElement = ptr(`<meta name="description">`)
		u.record(ctx, f)
		return 1
	}

	return 0
}

func (u *MetadataUnit) checkH1(ctx context.Context, h1 string) int {
	if h1 != "" {
		return 0
	}

	f := newFinding(u.page.AuditID, domain.CategorySEO, domain.SeverityMedium)
	f.PageID = &u.page.ID
	f.Title = "Missing H1 Tag"
	f.Description = fmt.Sprintf("The page at %s does not have an H1 heading.", u.page.URL)
	f.Recommendation = "Add a single, descriptive H1 heading that clearly indicates the page content."
	f.AffectedElement = ptr("<h1>")
	u.record(ctx, f)
	return 1
}

func (u *MetadataUnit) record(ctx context.Context, f *domain.Finding) {
	if err := u.findings.Create(ctx, f); err != nil {
		u.log.Error("failed to record finding", "title", f.Title, "error", err)
	}
}

func setOptional(dst **string, value string) {
	if value == "" {
		*dst = nil
		return
	}
	*dst = &value
}

func ptr(s string) *string { return &s }
