package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonesrussell/goaudit/internal/discovery"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/fetcher"
	"github.com/jonesrussell/goaudit/internal/lighthouse"
)

// FakeFetcher serves canned HTML by URL.
type FakeFetcher struct {
	mu      sync.Mutex
	Results map[string]*fetcher.FetchResult
	Errs    map[string]error
	Calls   []string
}

// NewFakeFetcher creates an empty fake fetcher.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		Results: make(map[string]*fetcher.FetchResult),
		Errs:    make(map[string]error),
	}
}

// SetHTML registers a 200 response for urlStr.
func (f *FakeFetcher) SetHTML(urlStr, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results[urlStr] = &fetcher.FetchResult{HTML: html, StatusCode: 200}
}

// SetResult registers an arbitrary response for urlStr.
func (f *FakeFetcher) SetResult(urlStr string, res *fetcher.FetchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results[urlStr] = res
}

// SetError makes Fetch fail for urlStr.
func (f *FakeFetcher) SetError(urlStr string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errs[urlStr] = err
}

func (f *FakeFetcher) Fetch(_ context.Context, urlStr string) (*fetcher.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, urlStr)
	if err, ok := f.Errs[urlStr]; ok {
		return nil, err
	}
	if res, ok := f.Results[urlStr]; ok {
		clone := *res
		return &clone, nil
	}
	return nil, fmt.Errorf("no fake response for %s", urlStr)
}

// FakeStatusChecker answers link checks from a table. URLs without an entry
// count as unreachable.
type FakeStatusChecker struct {
	mu       sync.Mutex
	Statuses map[string]int
	Calls    []string
}

// NewFakeStatusChecker creates an empty fake checker.
func NewFakeStatusChecker() *FakeStatusChecker {
	return &FakeStatusChecker{Statuses: make(map[string]int)}
}

// SetStatus registers the status a URL answers with.
func (f *FakeStatusChecker) SetStatus(urlStr string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Statuses[urlStr] = status
}

func (f *FakeStatusChecker) Check(_ context.Context, urlStr string) *int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, urlStr)
	if status, ok := f.Statuses[urlStr]; ok {
		s := status
		return &s
	}
	return nil
}

// FakeMeasurer returns one canned measurement per (url, device) pair, with a
// default for unregistered pairs.
type FakeMeasurer struct {
	mu           sync.Mutex
	Measurements map[string]*lighthouse.Measurement
	Err          error
	Default      *lighthouse.Measurement
}

// NewFakeMeasurer creates a fake measurer with a healthy default
// measurement.
func NewFakeMeasurer() *FakeMeasurer {
	score := 95
	return &FakeMeasurer{
		Measurements: make(map[string]*lighthouse.Measurement),
		Default:      &lighthouse.Measurement{PerformanceScore: &score},
	}
}

// Set registers the measurement for a (url, device) pair.
func (f *FakeMeasurer) Set(urlStr string, device domain.DeviceType, m *lighthouse.Measurement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Measurements[measKey(urlStr, device)] = m
}

func (f *FakeMeasurer) Measure(_ context.Context, urlStr string, device domain.DeviceType) (*lighthouse.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if m, ok := f.Measurements[measKey(urlStr, device)]; ok {
		return m, nil
	}
	return f.Default, nil
}

func measKey(urlStr string, device domain.DeviceType) string {
	return urlStr + "|" + string(device)
}

// FakeCrawler returns a fixed page list for any seed.
type FakeCrawler struct {
	Pages []discovery.DiscoveredPage
	Err   error
}

func (f *FakeCrawler) Crawl(_ context.Context, seedURL string, maxPages int) ([]discovery.DiscoveredPage, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	pages := f.Pages
	if maxPages > 0 && len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	return pages, nil
}

// Float returns a pointer to v, for building measurements inline.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
