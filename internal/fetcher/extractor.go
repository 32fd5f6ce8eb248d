package fetcher

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/goaudit/internal/domain"
)

// assetExtensions are the file extensions classified as asset links.
var assetExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "svg": {}, "webp": {},
	"css": {}, "js": {}, "pdf": {}, "zip": {},
}

// Metadata is the SEO-relevant head content of a page. Empty strings mean
// the element was absent.
type Metadata struct {
	Title           string
	MetaDescription string
	H1              string
}

// Link is one outbound reference found in a page.
type Link struct {
	URL  string
	Text string
}

// ExtractMetadata parses HTML and pulls out the title, meta description and
// first h1 heading.
func ExtractMetadata(html string) (*Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	md := &Metadata{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		H1:    strings.TrimSpace(doc.Find("h1").First().Text()),
	}

	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		md.MetaDescription = strings.TrimSpace(desc)
	}

	return md, nil
}

// ExtractLinks parses HTML and returns every anchor href and image src,
// resolved against the base URL and deduplicated in document order.
// Fragment-only, javascript: and mailto: references are kept as-is so the
// caller can classify them; unparseable hrefs are dropped.
func ExtractLinks(html, baseURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}

	seen := make(map[string]struct{})
	var links []Link

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		resolved := resolveRef(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}

		links = append(links, Link{
			URL:  resolved,
			Text: strings.TrimSpace(sel.Text()),
		})
	})

	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}

		resolved := resolveRef(base, src)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}

		links = append(links, Link{URL: resolved})
	})

	return links, nil
}

// resolveRef makes a reference absolute against base. Special schemes and
// fragments pass through unchanged.
func resolveRef(base *url.URL, ref string) string {
	if IsSpecialRef(ref) {
		return ref
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	return base.ResolveReference(parsed).String()
}

// IsSpecialRef returns true for references that are not navigable HTTP
// destinations: fragments, javascript: and mailto: schemes.
func IsSpecialRef(ref string) bool {
	return strings.HasPrefix(ref, "#") ||
		strings.HasPrefix(ref, "javascript:") ||
		strings.HasPrefix(ref, "mailto:")
}

// ClassifyLink determines whether a link is internal, external or an asset.
// Special refs count as internal; asset classification goes by extension;
// everything else is internal when the host matches the page host.
func ClassifyLink(rawURL, pageURL string) domain.LinkType {
	if IsSpecialRef(rawURL) {
		return domain.LinkTypeInternal
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return domain.LinkTypeExternal
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(parsed.Path), "."))
	if _, isAsset := assetExtensions[ext]; isAsset {
		return domain.LinkTypeAsset
	}

	page, err := url.Parse(pageURL)
	if err != nil {
		return domain.LinkTypeExternal
	}

	if parsed.Host == page.Host {
		return domain.LinkTypeInternal
	}

	return domain.LinkTypeExternal
}

// CountFormFields counts the input, select and textarea elements in a page,
// the same field set a shopper has to get through.
func CountFormFields(html string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("failed to parse html: %w", err)
	}

	return doc.Find("input, select, textarea").Length(), nil
}

// guestCheckoutMarkers are the phrases that indicate a guest checkout path.
var guestCheckoutMarkers = []string{
	"guest checkout",
	"checkout as guest",
	"continue as guest",
	"check out as guest",
	"without an account",
	"without creating an account",
}

// HasGuestCheckout scans checkout-page HTML for a guest checkout option.
func HasGuestCheckout(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range guestCheckoutMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
