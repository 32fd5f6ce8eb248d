package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// Service runs discovery for an audit and persists the resulting pages.
type Service struct {
	crawler Crawler
	pages   database.PageRepositoryInterface
	log     logger.Interface
}

// NewService creates a discovery service.
func NewService(crawler Crawler, pages database.PageRepositoryInterface, log logger.Interface) *Service {
	return &Service{
		crawler: crawler,
		pages:   pages,
		log:     log.WithComponent("discovery"),
	}
}

// Discover crawls the audit's site and stores one page row per discovered
// page, preserving discovery order. It returns the persisted pages.
func (s *Service) Discover(ctx context.Context, audit *domain.Audit) ([]*domain.Page, error) {
	started := time.Now()
	log := s.log.WithAudit(audit.ID)

	discovered, err := s.crawler.Crawl(ctx, audit.URL, audit.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("discovery failed for audit %s: %w", audit.ID, err)
	}

	pages := make([]*domain.Page, 0, len(discovered))
	for _, d := range discovered {
		now := time.Now()
		// An excerpt cut exactly at the cap marks itself as truncated;
		// units needing the full document refetch it.
		excerpt := d.HTML
		if len(excerpt) > domain.HTMLExcerptLimit {
			excerpt = excerpt[:domain.HTMLExcerptLimit]
		}

		page := &domain.Page{
			ID:          uuid.New().String(),
			AuditID:     audit.ID,
			URL:         d.URL,
			StatusCode:  d.StatusCode,
			HTMLExcerpt: &excerpt,
			CrawledAt:   &now,
		}
		if err := s.pages.Create(ctx, page); err != nil {
			return nil, fmt.Errorf("failed to store page %s: %w", d.URL, err)
		}
		pages = append(pages, page)
	}

	log.WithDuration(time.Since(started)).Info("pages discovered",
		"count", len(pages),
	)

	return pages, nil
}
