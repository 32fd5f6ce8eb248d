// Package testutils provides shared testing utilities: in-memory
// repositories with the same atomicity semantics as the Postgres ones, and
// fakes for the pipeline's external collaborators.
package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/domain"
)

// MemoryStore backs every in-memory repository. One mutex serializes all
// access, mirroring the row-level atomicity the SQL layer provides for the
// progress counters and the aggregation claim.
type MemoryStore struct {
	mu       sync.Mutex
	audits   map[string]*domain.Audit
	claimed  map[string]bool
	pages    map[string]*domain.Page
	findings map[string]*domain.Finding
	links    map[string]*domain.LinkRecord
	samples  map[string]*domain.PerformanceSample
	steps    map[string]*domain.CheckoutStepResult
	seq      int
	order    map[string]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		audits:   make(map[string]*domain.Audit),
		claimed:  make(map[string]bool),
		pages:    make(map[string]*domain.Page),
		findings: make(map[string]*domain.Finding),
		links:    make(map[string]*domain.LinkRecord),
		samples:  make(map[string]*domain.PerformanceSample),
		steps:    make(map[string]*domain.CheckoutStepResult),
		order:    make(map[string]int),
	}
}

// NewMemoryRepositories bundles repositories over one shared store.
func NewMemoryRepositories() (database.Repositories, *MemoryStore) {
	store := NewMemoryStore()
	return database.Repositories{
		Audits:      &MemoryAuditRepository{store: store},
		Pages:       &MemoryPageRepository{store: store},
		Findings:    &MemoryFindingRepository{store: store},
		Links:       &MemoryLinkRepository{store: store},
		Performance: &MemoryPerformanceRepository{store: store},
		Checkout:    &MemoryCheckoutRepository{store: store},
	}, store
}

func (s *MemoryStore) nextSeq(id string) {
	s.seq++
	s.order[id] = s.seq
}

// deleteChildren removes every child row of an audit. Caller holds the lock.
func (s *MemoryStore) deleteChildren(auditID string) {
	for id, p := range s.pages {
		if p.AuditID == auditID {
			delete(s.pages, id)
		}
	}
	for id, f := range s.findings {
		if f.AuditID == auditID {
			delete(s.findings, id)
		}
	}
	for id, l := range s.links {
		if l.AuditID == auditID {
			delete(s.links, id)
		}
	}
	for id, sm := range s.samples {
		if sm.AuditID == auditID {
			delete(s.samples, id)
		}
	}
	for id, st := range s.steps {
		if st.AuditID == auditID {
			delete(s.steps, id)
		}
	}
}

// MemoryAuditRepository implements database.AuditRepositoryInterface.
type MemoryAuditRepository struct {
	store *MemoryStore
}

func (r *MemoryAuditRepository) Create(_ context.Context, audit *domain.Audit) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := *audit
	r.store.audits[audit.ID] = &clone
	r.store.nextSeq(audit.ID)
	return nil
}

func (r *MemoryAuditRepository) GetByID(_ context.Context, id string) (*domain.Audit, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	audit, ok := r.store.audits[id]
	if !ok {
		return nil, database.ErrAuditNotFound
	}
	clone := *audit
	return &clone, nil
}

func (r *MemoryAuditRepository) List(_ context.Context, status string, limit, offset int) ([]*domain.Audit, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var audits []*domain.Audit
	for _, a := range r.store.audits {
		if status != "" && string(a.Status) != status {
			continue
		}
		clone := *a
		audits = append(audits, &clone)
	}
	sort.Slice(audits, func(i, j int) bool {
		return r.store.order[audits[i].ID] > r.store.order[audits[j].ID]
	})

	if offset >= len(audits) {
		return nil, nil
	}
	audits = audits[offset:]
	if limit > 0 && len(audits) > limit {
		audits = audits[:limit]
	}
	return audits, nil
}

func (r *MemoryAuditRepository) ListByDomain(_ context.Context, siteDomain string, limit int) ([]*domain.Audit, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var audits []*domain.Audit
	for _, a := range r.store.audits {
		if a.Domain != siteDomain {
			continue
		}
		clone := *a
		audits = append(audits, &clone)
	}
	sort.Slice(audits, func(i, j int) bool {
		return r.store.order[audits[i].ID] > r.store.order[audits[j].ID]
	})
	if limit > 0 && len(audits) > limit {
		audits = audits[:limit]
	}
	return audits, nil
}

func (r *MemoryAuditRepository) Update(_ context.Context, audit *domain.Audit) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.audits[audit.ID]
	if !ok {
		return database.ErrAuditNotFound
	}

	clone := *audit
	// Progress counters are owned by the increment operations; plain updates
	// never move them backwards, same as the SQL UPDATE column list.
	clone.JobsTotal = stored.JobsTotal
	clone.JobsCompleted = stored.JobsCompleted
	clone.JobsFailed = stored.JobsFailed
	clone.UpdatedAt = time.Now()
	r.store.audits[audit.ID] = &clone
	return nil
}

func (r *MemoryAuditRepository) UpdateIfStatus(_ context.Context, audit *domain.Audit, from domain.Status) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.audits[audit.ID]
	if !ok || stored.Status != from {
		return false, nil
	}

	clone := *audit
	clone.JobsTotal = stored.JobsTotal
	clone.JobsCompleted = stored.JobsCompleted
	clone.JobsFailed = stored.JobsFailed
	clone.UpdatedAt = time.Now()
	r.store.audits[audit.ID] = &clone
	return true, nil
}

func (r *MemoryAuditRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.audits[id]; !ok {
		return database.ErrAuditNotFound
	}
	r.store.deleteChildren(id)
	delete(r.store.audits, id)
	delete(r.store.claimed, id)
	return nil
}

func (r *MemoryAuditRepository) Reset(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	audit, ok := r.store.audits[id]
	if !ok {
		return database.ErrAuditNotFound
	}

	r.store.deleteChildren(id)
	audit.Status = domain.StatusPending
	audit.Score = nil
	audit.PagesCrawled = 0
	audit.JobsTotal = 0
	audit.JobsCompleted = 0
	audit.JobsFailed = 0
	audit.CurrentStep = ""
	audit.ErrorMessage = nil
	audit.StartedAt = nil
	audit.CompletedAt = nil
	audit.UpdatedAt = time.Now()
	r.store.claimed[id] = false
	return nil
}

func (r *MemoryAuditRepository) RegisterJobsTotal(_ context.Context, id string, total int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	audit, ok := r.store.audits[id]
	if !ok {
		return database.ErrAuditNotFound
	}
	audit.JobsTotal = total
	return nil
}

func (r *MemoryAuditRepository) IncrementCompleted(_ context.Context, id, currentStep string) (database.Progress, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	audit, ok := r.store.audits[id]
	if !ok {
		return database.Progress{}, database.ErrAuditNotFound
	}
	audit.JobsCompleted++
	audit.CurrentStep = currentStep
	return database.Progress{
		Total:     audit.JobsTotal,
		Completed: audit.JobsCompleted,
		Failed:    audit.JobsFailed,
	}, nil
}

func (r *MemoryAuditRepository) IncrementFailed(_ context.Context, id, errorMessage string) (database.Progress, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	audit, ok := r.store.audits[id]
	if !ok {
		return database.Progress{}, database.ErrAuditNotFound
	}
	audit.JobsFailed++
	audit.ErrorMessage = &errorMessage
	return database.Progress{
		Total:     audit.JobsTotal,
		Completed: audit.JobsCompleted,
		Failed:    audit.JobsFailed,
	}, nil
}

func (r *MemoryAuditRepository) ClaimAggregation(_ context.Context, id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	audit, ok := r.store.audits[id]
	if !ok {
		return false, database.ErrAuditNotFound
	}
	if r.store.claimed[id] {
		return false, nil
	}
	if audit.JobsTotal == 0 || audit.JobsCompleted+audit.JobsFailed < audit.JobsTotal {
		return false, nil
	}
	r.store.claimed[id] = true
	return true, nil
}

// MemoryPageRepository implements database.PageRepositoryInterface.
type MemoryPageRepository struct {
	store *MemoryStore
}

func (r *MemoryPageRepository) Create(_ context.Context, page *domain.Page) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := *page
	r.store.pages[page.ID] = &clone
	r.store.nextSeq(page.ID)
	return nil
}

func (r *MemoryPageRepository) GetByID(_ context.Context, id string) (*domain.Page, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	page, ok := r.store.pages[id]
	if !ok {
		return nil, database.ErrAuditNotFound
	}
	clone := *page
	return &clone, nil
}

func (r *MemoryPageRepository) ListByAudit(_ context.Context, auditID string) ([]*domain.Page, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var pages []*domain.Page
	for _, p := range r.store.pages {
		if p.AuditID == auditID {
			clone := *p
			pages = append(pages, &clone)
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		return r.store.order[pages[i].ID] < r.store.order[pages[j].ID]
	})
	return pages, nil
}

func (r *MemoryPageRepository) CountByAudit(_ context.Context, auditID string) (int, error) {
	pages, _ := r.ListByAudit(context.Background(), auditID)
	return len(pages), nil
}

func (r *MemoryPageRepository) UpdateMetadata(_ context.Context, page *domain.Page) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.pages[page.ID]
	if !ok {
		return database.ErrAuditNotFound
	}
	stored.Title = page.Title
	stored.MetaDescription = page.MetaDescription
	stored.H1 = page.H1
	stored.ScreenshotPath = page.ScreenshotPath
	stored.HTMLExcerpt = page.HTMLExcerpt
	return nil
}

// MemoryFindingRepository implements database.FindingRepositoryInterface.
type MemoryFindingRepository struct {
	store *MemoryStore
}

func (r *MemoryFindingRepository) Create(_ context.Context, finding *domain.Finding) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := *finding
	r.store.findings[finding.ID] = &clone
	r.store.nextSeq(finding.ID)
	return nil
}

func (r *MemoryFindingRepository) ListByAudit(_ context.Context, auditID string) ([]*domain.Finding, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var findings []*domain.Finding
	for _, f := range r.store.findings {
		if f.AuditID == auditID {
			clone := *f
			findings = append(findings, &clone)
		}
	}
	sort.Slice(findings, func(i, j int) bool {
		return r.store.order[findings[i].ID] < r.store.order[findings[j].ID]
	})
	return findings, nil
}

func (r *MemoryFindingRepository) ListByCategory(ctx context.Context, auditID string, category domain.Category) ([]*domain.Finding, error) {
	all, err := r.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	var findings []*domain.Finding
	for _, f := range all {
		if f.Category == category {
			findings = append(findings, f)
		}
	}
	return findings, nil
}

func (r *MemoryFindingRepository) CountByCategory(ctx context.Context, auditID string) (map[domain.Category]int, error) {
	all, err := r.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Category]int)
	for _, f := range all {
		counts[f.Category]++
	}
	return counts, nil
}

func (r *MemoryFindingRepository) CountBySeverity(ctx context.Context, auditID string) (map[domain.Severity]int, error) {
	all, err := r.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Severity]int)
	for _, f := range all {
		counts[f.Severity]++
	}
	return counts, nil
}

// MemoryLinkRepository implements database.LinkRepositoryInterface.
type MemoryLinkRepository struct {
	store *MemoryStore
}

func (r *MemoryLinkRepository) Create(_ context.Context, link *domain.LinkRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := *link
	r.store.links[link.ID] = &clone
	r.store.nextSeq(link.ID)
	return nil
}

func (r *MemoryLinkRepository) ListByAudit(_ context.Context, auditID string) ([]*domain.LinkRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var links []*domain.LinkRecord
	for _, l := range r.store.links {
		if l.AuditID == auditID {
			clone := *l
			links = append(links, &clone)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		return r.store.order[links[i].ID] < r.store.order[links[j].ID]
	})
	return links, nil
}

func (r *MemoryLinkRepository) CountByAudit(ctx context.Context, auditID string) (total, broken int, err error) {
	links, err := r.ListByAudit(ctx, auditID)
	if err != nil {
		return 0, 0, err
	}
	for _, l := range links {
		total++
		if l.IsBroken {
			broken++
		}
	}
	return total, broken, nil
}

// MemoryPerformanceRepository implements
// database.PerformanceRepositoryInterface.
type MemoryPerformanceRepository struct {
	store *MemoryStore
}

func (r *MemoryPerformanceRepository) Create(_ context.Context, sample *domain.PerformanceSample) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	// Upsert on (page, device type), matching the SQL ON CONFLICT clause.
	for id, existing := range r.store.samples {
		if existing.PageID == sample.PageID && existing.DeviceType == sample.DeviceType {
			delete(r.store.samples, id)
		}
	}
	clone := *sample
	r.store.samples[sample.ID] = &clone
	r.store.nextSeq(sample.ID)
	return nil
}

func (r *MemoryPerformanceRepository) ListByAudit(_ context.Context, auditID string) ([]*domain.PerformanceSample, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var samples []*domain.PerformanceSample
	for _, s := range r.store.samples {
		if s.AuditID == auditID {
			clone := *s
			samples = append(samples, &clone)
		}
	}
	sort.Slice(samples, func(i, j int) bool {
		return r.store.order[samples[i].ID] < r.store.order[samples[j].ID]
	})
	return samples, nil
}

// MemoryCheckoutRepository implements database.CheckoutRepositoryInterface.
type MemoryCheckoutRepository struct {
	store *MemoryStore
}

func (r *MemoryCheckoutRepository) Create(_ context.Context, step *domain.CheckoutStepResult) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := *step
	r.store.steps[step.ID] = &clone
	r.store.nextSeq(step.ID)
	return nil
}

func (r *MemoryCheckoutRepository) ListByAudit(_ context.Context, auditID string) ([]*domain.CheckoutStepResult, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var steps []*domain.CheckoutStepResult
	for _, s := range r.store.steps {
		if s.AuditID == auditID {
			clone := *s
			steps = append(steps, &clone)
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StepNumber < steps[j].StepNumber
	})
	return steps, nil
}
