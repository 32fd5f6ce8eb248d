// Package fetcher provides the HTML collaborators of the audit pipeline:
// page fetching, metadata and link extraction, link status checks, and the
// small amount of form inspection the checkout unit needs.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetch limits. Every outbound request follows at most maxRedirects hops.
const (
	defaultFetchTimeout = 30 * time.Second
	maxRedirects        = 3
	maxBodyBytes        = 10 << 20 // 10 MiB cap on fetched HTML
)

// Client fetches page HTML. Implementations must honor the context.
type Client interface {
	Fetch(ctx context.Context, pageURL string) (*FetchResult, error)
}

// FetchResult is a fetched page body with its response status and timing.
type FetchResult struct {
	HTML       string
	StatusCode int
	LoadTime   time.Duration
}

// HTTPClient is the production Client, a thin wrapper over net/http with a
// bounded redirect policy and a stable user agent.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient creates an HTTP fetch client.
func NewHTTPClient(timeout time.Duration, userAgent string) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
}

// Fetch retrieves a page and returns its HTML, status code and load time.
func (c *HTTPClient) Fetch(ctx context.Context, pageURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}

	return &FetchResult{
		HTML:       string(body),
		StatusCode: resp.StatusCode,
		LoadTime:   time.Since(start),
	}, nil
}
