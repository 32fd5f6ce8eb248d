package fetcher

import (
	"context"
	"net/http"
	"time"
)

// StatusChecker probes a URL and reports the HTTP status it answered with.
type StatusChecker interface {
	// Check returns the final status code, or nil when the URL could not
	// be reached at all.
	Check(ctx context.Context, rawURL string) *int
}

// HTTPStatusChecker checks links with a HEAD request, falling back to GET
// for servers that reject HEAD.
type HTTPStatusChecker struct {
	client    *http.Client
	userAgent string
}

// NewHTTPStatusChecker builds a checker with the given per-request timeout
// and redirect cap.
func NewHTTPStatusChecker(timeout time.Duration, maxRedirects int, userAgent string) *HTTPStatusChecker {
	return &HTTPStatusChecker{
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

// Check probes rawURL. Fragment-only, javascript: and mailto: references are
// treated as trivially fine. Connection failures return nil.
func (c *HTTPStatusChecker) Check(ctx context.Context, rawURL string) *int {
	if IsSpecialRef(rawURL) {
		ok := http.StatusOK
		return &ok
	}

	status := c.do(ctx, http.MethodHead, rawURL)
	if status != nil && *status == http.StatusMethodNotAllowed {
		status = c.do(ctx, http.MethodGet, rawURL)
	}

	return status
}

func (c *HTTPStatusChecker) do(ctx context.Context, method, rawURL string) *int {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	return &status
}
