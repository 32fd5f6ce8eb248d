// Package analysis contains the per-page and per-audit analysis units that
// fan out after discovery: SEO metadata, performance measurement, link
// validation and checkout flow testing.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/domain"
)

// Kind identifies a unit type for retry policy resolution and logging.
type Kind string

const (
	KindMetadata    Kind = "metadata"
	KindPerformance Kind = "performance"
	KindLinks       Kind = "links"
	KindCheckout    Kind = "checkout"
)

// Unit is one independently retryable piece of analysis work. Run may be
// called multiple times; units must tolerate re-execution of their own
// writes. HandleFailure records a diagnostic finding once the retry budget
// is exhausted, so a failed unit still shows up in the report.
type Unit interface {
	Kind() Kind
	Describe() string
	Run(ctx context.Context) error
	HandleFailure(ctx context.Context, cause error) error
}

// FindingSink is where units record what they found. Append-only.
type FindingSink interface {
	Create(ctx context.Context, finding *domain.Finding) error
}

// PolicyFor returns the retry policy for a unit kind.
func PolicyFor(cfg config.AnalysisConfig, kind Kind) config.RetryPolicy {
	switch kind {
	case KindPerformance:
		return cfg.Performance
	case KindLinks:
		return cfg.Links
	case KindCheckout:
		return cfg.Checkout
	default:
		return cfg.Metadata
	}
}

// newFinding builds a finding with identity and timestamp filled in.
func newFinding(auditID string, category domain.Category, severity domain.Severity) *domain.Finding {
	return &domain.Finding{
		ID:        uuid.New().String(),
		AuditID:   auditID,
		Category:  category,
		Severity:  severity,
		CreatedAt: time.Now(),
	}
}
