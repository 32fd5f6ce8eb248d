// Package discovery crawls a site from its seed URL and records the pages an
// audit will analyze.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	colly "github.com/gocolly/colly/v2"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// DiscoveredPage is one successfully fetched page, in discovery order.
type DiscoveredPage struct {
	URL        string
	StatusCode int
	HTML       string
}

// Crawler discovers pages reachable from a seed URL.
type Crawler interface {
	// Crawl visits pages starting at seedURL, staying on the seed's host and
	// stopping at maxPages successful pages. It returns an error when the
	// seed itself cannot be fetched.
	Crawl(ctx context.Context, seedURL string, maxPages int) ([]DiscoveredPage, error)
}

// CollyCrawler implements Crawler on top of colly.
type CollyCrawler struct {
	cfg config.CrawlerConfig
	log logger.Interface
}

// NewCollyCrawler creates a crawler with the given settings.
func NewCollyCrawler(cfg config.CrawlerConfig, log logger.Interface) *CollyCrawler {
	return &CollyCrawler{cfg: cfg, log: log.WithComponent("discovery")}
}

// Crawl walks the site breadth-first from seedURL. Only responses with a 2xx
// status become pages; redirects are followed and the final URL recorded.
// Duplicate URLs are visited once.
func (c *CollyCrawler) Crawl(ctx context.Context, seedURL string, maxPages int) ([]DiscoveredPage, error) {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed url %q: %w", seedURL, err)
	}
	if seed.Host == "" {
		return nil, fmt.Errorf("seed url %q has no host", seedURL)
	}
	if maxPages < 1 {
		maxPages = c.cfg.DefaultMaxPages
	}

	collector := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.MaxDepth(c.cfg.MaxDepth),
		colly.Async(true),
		colly.UserAgent(c.cfg.UserAgent),
		colly.AllowedDomains(seed.Hostname(), "www."+seed.Hostname()),
		colly.IgnoreRobotsTxt(),
	)
	collector.SetRequestTimeout(c.cfg.RequestTimeout)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       c.cfg.Delay,
		Parallelism: c.cfg.Concurrency,
	}); err != nil {
		return nil, fmt.Errorf("failed to set crawl rate limit: %w", err)
	}

	var (
		mu       sync.Mutex
		pages    []DiscoveredPage
		seen     = make(map[string]struct{})
		seedErr  error
		seedSeen bool
	)

	collector.OnResponseHeaders(func(r *colly.Response) {
		// Drop non-HTML resources before downloading the body.
		contentType := strings.ToLower(r.Headers.Get("Content-Type"))
		if contentType != "" && !strings.Contains(contentType, "text/html") {
			r.Request.Abort()
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			return
		}

		finalURL := normalizeURL(r.Request.URL)

		mu.Lock()
		defer mu.Unlock()

		if r.Request.URL.String() == seedURL || finalURL == normalizeRaw(seedURL) {
			seedSeen = true
		}
		if len(pages) >= maxPages {
			return
		}
		if _, dup := seen[finalURL]; dup {
			return
		}
		seen[finalURL] = struct{}{}
		pages = append(pages, DiscoveredPage{
			URL:        finalURL,
			StatusCode: r.StatusCode,
			HTML:       string(r.Body),
		})
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		mu.Lock()
		full := len(pages) >= maxPages
		mu.Unlock()
		if full {
			return
		}

		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		// Expected errors (already visited, forbidden domain, max depth) are
		// surfaced through OnError and ignored there.
		_ = e.Request.Visit(link)
	})

	collector.OnError(func(r *colly.Response, visitErr error) {
		pageURL := r.Request.URL.String()

		mu.Lock()
		if pageURL == seedURL && !seedSeen {
			seedErr = visitErr
		}
		mu.Unlock()

		c.log.Debug("crawl request failed",
			"url", pageURL,
			"status", r.StatusCode,
			"error", visitErr.Error(),
		)
	})

	if err := collector.Visit(seedURL); err != nil {
		return nil, fmt.Errorf("failed to fetch seed url %s: %w", seedURL, err)
	}
	collector.Wait()

	if seedErr != nil {
		return nil, fmt.Errorf("failed to fetch seed url %s: %w", seedURL, seedErr)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no reachable pages discovered from %s", seedURL)
	}

	c.log.Info("discovery complete",
		"seed_url", seedURL,
		"pages", len(pages),
		"max_pages", maxPages,
	)

	return pages, nil
}

// normalizeURL strips fragments and trailing slashes so the same page is not
// recorded twice.
func normalizeURL(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	return strings.TrimRight(clone.String(), "/")
}

func normalizeRaw(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(raw, "/")
	}
	return normalizeURL(u)
}
