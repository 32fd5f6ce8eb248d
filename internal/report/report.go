// Package report builds read-side views over finished audits: per-audit
// summaries and before/after comparisons between two audits of one domain.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/internal/scoring"
)

// ErrIncomparable is returned when two audits cannot be meaningfully
// compared (different domains, or either one not completed).
var ErrIncomparable = errors.New("audits are not comparable")

// Summary is the report view of one audit.
type Summary struct {
	Audit            *domain.Audit               `json:"audit"`
	CategoryScores   map[domain.Category]float64 `json:"category_scores"`
	Grade            string                      `json:"grade"`
	Label            string                      `json:"label"`
	FindingsByCat    map[domain.Category]int     `json:"findings_by_category"`
	FindingsBySev    map[domain.Severity]int     `json:"findings_by_severity"`
	TotalFindings    int                         `json:"total_findings"`
	TotalLinks       int                         `json:"total_links"`
	BrokenLinks      int                         `json:"broken_links"`
	PagesCrawled     int                         `json:"pages_crawled"`
	SamplesCollected int                         `json:"samples_collected"`
}

// Comparison is a before/after view of two completed audits.
type Comparison struct {
	Current  *Summary       `json:"current"`
	Previous *Summary       `json:"previous"`
	Change   scoring.Change `json:"change"`
}

// Service assembles summaries from stored audit data. Scores are recomputed
// from the raw data through the scoring engine, so historical audits report
// consistently with live ones.
type Service struct {
	repos  database.Repositories
	engine *scoring.Engine
	log    logger.Interface
}

// NewService creates a report service.
func NewService(repos database.Repositories, cfg config.ScoringConfig, log logger.Interface) *Service {
	return &Service{
		repos:  repos,
		engine: scoring.NewEngine(cfg),
		log:    log.WithComponent("report"),
	}
}

// Summarize builds the report summary for one audit.
func (s *Service) Summarize(ctx context.Context, auditID string) (*Summary, error) {
	audit, err := s.repos.Audits.GetByID(ctx, auditID)
	if err != nil {
		return nil, err
	}

	pages, err := s.repos.Pages.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	findings, err := s.repos.Findings.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}
	samples, err := s.repos.Performance.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load performance samples: %w", err)
	}
	links, err := s.repos.Links.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load link records: %w", err)
	}

	result := s.engine.Score(scoring.Input{
		Pages:    pages,
		Findings: findings,
		Samples:  samples,
		Links:    links,
	})

	byCat := make(map[domain.Category]int)
	bySev := make(map[domain.Severity]int)
	for _, f := range findings {
		byCat[f.Category]++
		bySev[f.Severity]++
	}

	broken := 0
	for _, l := range links {
		if l.IsBroken {
			broken++
		}
	}

	return &Summary{
		Audit:            audit,
		CategoryScores:   result.Categories,
		Grade:            result.Grade,
		Label:            result.Label,
		FindingsByCat:    byCat,
		FindingsBySev:    bySev,
		TotalFindings:    len(findings),
		TotalLinks:       len(links),
		BrokenLinks:      broken,
		PagesCrawled:     len(pages),
		SamplesCollected: len(samples),
	}, nil
}

// Compare builds a before/after comparison of two completed audits of the
// same domain. currentID is the newer audit.
func (s *Service) Compare(ctx context.Context, currentID, previousID string) (*Comparison, error) {
	current, err := s.Summarize(ctx, currentID)
	if err != nil {
		return nil, err
	}
	previous, err := s.Summarize(ctx, previousID)
	if err != nil {
		return nil, err
	}

	if !current.Audit.IsCompleted() || !previous.Audit.IsCompleted() {
		return nil, fmt.Errorf("%w: both audits must be completed", ErrIncomparable)
	}
	if current.Audit.Domain != previous.Audit.Domain {
		return nil, fmt.Errorf("%w: audits cover different domains (%s vs %s)",
			ErrIncomparable, current.Audit.Domain, previous.Audit.Domain)
	}

	currentScore := 0
	if current.Audit.Score != nil {
		currentScore = *current.Audit.Score
	}
	previousScore := 0
	if previous.Audit.Score != nil {
		previousScore = *previous.Audit.Score
	}

	return &Comparison{
		Current:  current,
		Previous: previous,
		Change:   scoring.ScoreChange(currentScore, previousScore),
	}, nil
}

// Latest returns the most recent completed audit for a domain, used by the
// comparison endpoints when the caller names only one audit.
func (s *Service) Latest(ctx context.Context, siteDomain string) (*domain.Audit, error) {
	audits, err := s.repos.Audits.ListByDomain(ctx, siteDomain, 20)
	if err != nil {
		return nil, err
	}
	for _, a := range audits {
		if a.IsCompleted() {
			return a, nil
		}
	}
	return nil, fmt.Errorf("no completed audit for domain %s", siteDomain)
}
