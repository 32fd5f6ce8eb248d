package domain

import "time"

// HTMLExcerptLimit bounds how much raw HTML is kept on a page row. An
// excerpt cut at the limit is incomplete, so units that need the whole
// document refetch the live page.
const HTMLExcerptLimit = 64 * 1024

// Page represents one crawled URL belonging to an audit. Pages are created
// during discovery and enriched once by the metadata analysis unit; they are
// never mutated after the owning audit leaves the processing state.
type Page struct {
	ID              string     `db:"id" json:"id"`
	AuditID         string     `db:"audit_id" json:"audit_id"`
	URL             string     `db:"url" json:"url"`
	StatusCode      int        `db:"status_code" json:"status_code"`
	Title           *string    `db:"title" json:"title,omitempty"`
	MetaDescription *string    `db:"meta_description" json:"meta_description,omitempty"`
	H1              *string    `db:"h1" json:"h1,omitempty"`
	ScreenshotPath  *string    `db:"screenshot_path" json:"screenshot_path,omitempty"`
	HTMLExcerpt     *string    `db:"html_excerpt" json:"html_excerpt,omitempty"`
	CrawledAt       *time.Time `db:"crawled_at" json:"crawled_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// HasFullHTML reports whether HTMLExcerpt holds the complete document. An
// excerpt that filled the storage cap was truncated and cannot be trusted
// to contain everything the page served.
func (p *Page) HasFullHTML() bool {
	return p.HTMLExcerpt != nil && *p.HTMLExcerpt != "" && len(*p.HTMLExcerpt) < HTMLExcerptLimit
}
