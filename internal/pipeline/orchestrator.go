package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/goaudit/internal/analysis"
	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/discovery"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/fetcher"
	"github.com/jonesrussell/goaudit/internal/lighthouse"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/internal/scoring"
	"github.com/jonesrussell/goaudit/internal/worker"
)

// unitsPerPage is the fan-out width per discovered page: metadata, two
// performance measurements (mobile and desktop), and link validation. The
// checkout unit is per audit, not per page.
const unitsPerPage = 4

// State-conflict errors returned synchronously from lifecycle operations.
var (
	ErrAlreadyProcessing = errors.New("audit is already being processed")
	ErrAlreadyCompleted  = errors.New("audit has already completed")
	ErrNotProcessing     = errors.New("audit is not being processed")
)

// Orchestrator drives audits through their lifecycle. It owns the dispatch
// decisions; the Tracker owns the fan-in decision.
type Orchestrator struct {
	baseCtx   context.Context
	repos     database.Repositories
	discovery *discovery.Service
	runner    *analysis.Runner
	tracker   *Tracker
	pool      *worker.Pool
	engine    *scoring.Engine
	client    fetcher.Client
	checker   fetcher.StatusChecker
	measurer  lighthouse.Measurer
	cfg       *config.Config
	log       logger.Interface
}

// NewOrchestrator wires the pipeline together. baseCtx bounds all background
// work; request contexts only bound the synchronous parts of each call.
func NewOrchestrator(
	baseCtx context.Context,
	repos database.Repositories,
	discoverySvc *discovery.Service,
	pool *worker.Pool,
	client fetcher.Client,
	checker fetcher.StatusChecker,
	measurer lighthouse.Measurer,
	cfg *config.Config,
	log logger.Interface,
) *Orchestrator {
	return &Orchestrator{
		baseCtx:   baseCtx,
		repos:     repos,
		discovery: discoverySvc,
		runner:    analysis.NewRunner(cfg.Analysis, log),
		tracker:   NewTracker(repos.Audits, log),
		pool:      pool,
		engine:    scoring.NewEngine(cfg.Scoring),
		client:    client,
		checker:   checker,
		measurer:  measurer,
		cfg:       cfg,
		log:       log.WithComponent("pipeline"),
	}
}

// CreateAudit registers a new pending audit for the given URL.
func (o *Orchestrator) CreateAudit(ctx context.Context, rawURL string, maxPages int) (*domain.Audit, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid audit url %q", rawURL)
	}
	if maxPages < 1 {
		maxPages = o.cfg.Crawler.DefaultMaxPages
	}

	now := time.Now()
	audit := &domain.Audit{
		ID:        uuid.New().String(),
		Domain:    parsed.Hostname(),
		URL:       rawURL,
		Status:    domain.StatusPending,
		MaxPages:  maxPages,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.repos.Audits.Create(ctx, audit); err != nil {
		return nil, fmt.Errorf("failed to create audit: %w", err)
	}

	o.log.WithAudit(audit.ID).Info("audit created",
		"domain", audit.Domain,
		"max_pages", audit.MaxPages,
	)
	return audit, nil
}

// Start begins processing a pending audit. It rejects audits that are
// already in flight or already completed, transitions the audit to crawling
// synchronously, and runs the rest of the pipeline in the background.
func (o *Orchestrator) Start(ctx context.Context, auditID string) error {
	audit, err := o.repos.Audits.GetByID(ctx, auditID)
	if err != nil {
		return err
	}

	switch {
	case audit.Status == domain.StatusCompleted:
		return fmt.Errorf("audit %s: %w", auditID, ErrAlreadyCompleted)
	case audit.Status != domain.StatusPending:
		if audit.IsProcessing() {
			return fmt.Errorf("audit %s: %w", auditID, ErrAlreadyProcessing)
		}
		return fmt.Errorf("audit %s is %s; restart it instead", auditID, audit.Status)
	}

	if err := o.transition(ctx, audit, domain.StatusCrawling, "discovery"); err != nil {
		return err
	}
	now := time.Now()
	audit.StartedAt = &now
	ok, err := o.repos.Audits.UpdateIfStatus(ctx, audit, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to persist audit start: %w", err)
	}
	if !ok {
		return fmt.Errorf("audit %s: %w", auditID, ErrAlreadyProcessing)
	}

	go o.runPipeline(o.baseCtx, audit)
	return nil
}

// Cancel marks a processing audit failed. Units already dispatched keep
// running; their writes are accepted for bookkeeping but the audit never
// re-enters completed.
func (o *Orchestrator) Cancel(ctx context.Context, auditID string) error {
	audit, err := o.repos.Audits.GetByID(ctx, auditID)
	if err != nil {
		return err
	}
	if !audit.IsProcessing() {
		return fmt.Errorf("audit %s is %s: %w", auditID, audit.Status, ErrNotProcessing)
	}

	observed := audit.Status
	msg := "audit cancelled by user"
	now := time.Now()
	audit.Status = domain.StatusFailed
	audit.ErrorMessage = &msg
	audit.CompletedAt = &now
	ok, err := o.repos.Audits.UpdateIfStatus(ctx, audit, observed)
	if err != nil {
		return fmt.Errorf("failed to cancel audit: %w", err)
	}
	if !ok {
		return fmt.Errorf("audit %s changed state during cancel: %w", auditID, ErrNotProcessing)
	}

	o.log.WithAudit(auditID).Info("audit cancelled")
	return nil
}

// Restart resets a terminal audit to pristine pending state and starts it
// again. The reset is transactional: either all child data is gone and the
// audit is pending, or nothing changed.
func (o *Orchestrator) Restart(ctx context.Context, auditID string) error {
	audit, err := o.repos.Audits.GetByID(ctx, auditID)
	if err != nil {
		return err
	}
	if audit.IsProcessing() && audit.Status != domain.StatusPending {
		return fmt.Errorf("audit %s: %w", auditID, ErrAlreadyProcessing)
	}

	if err := o.repos.Audits.Reset(ctx, auditID); err != nil {
		return fmt.Errorf("failed to reset audit: %w", err)
	}

	o.log.WithAudit(auditID).Info("audit reset for restart")
	return o.Start(ctx, auditID)
}

// Delete removes an audit and everything hanging off it.
func (o *Orchestrator) Delete(ctx context.Context, auditID string) error {
	if err := o.repos.Audits.Delete(ctx, auditID); err != nil {
		return err
	}
	o.log.WithAudit(auditID).Info("audit deleted")
	return nil
}

// runPipeline is the background half of Start: discovery, fan-out dispatch,
// and (indirectly, through the tracker) aggregation.
func (o *Orchestrator) runPipeline(ctx context.Context, audit *domain.Audit) {
	log := o.log.WithAudit(audit.ID)

	pages, err := o.discovery.Discover(ctx, audit)
	if err != nil {
		// Seed unreachable is pipeline-fatal.
		o.markFailed(ctx, audit.ID, fmt.Sprintf("discovery failed: %v", err))
		return
	}

	audit, err = o.repos.Audits.GetByID(ctx, audit.ID)
	if err != nil {
		log.Error("failed to reload audit after discovery", "error", err)
		return
	}
	if !audit.IsProcessing() {
		log.Info("audit no longer processing after discovery, stopping dispatch")
		return
	}

	total := unitsPerPage*len(pages) + 1
	if err := o.repos.Audits.RegisterJobsTotal(ctx, audit.ID, total); err != nil {
		o.markFailed(ctx, audit.ID, fmt.Sprintf("failed to register fan-out size: %v", err))
		return
	}

	audit.PagesCrawled = len(pages)
	if err := o.transition(ctx, audit, domain.StatusAnalyzing, "analysis"); err != nil {
		o.markFailed(ctx, audit.ID, fmt.Sprintf("failed to enter analysis: %v", err))
		return
	}
	ok, err := o.repos.Audits.UpdateIfStatus(ctx, audit, domain.StatusCrawling)
	if err != nil {
		o.markFailed(ctx, audit.ID, fmt.Sprintf("failed to persist analysis state: %v", err))
		return
	}
	if !ok {
		log.Info("audit left crawling during discovery, stopping dispatch")
		return
	}

	units := o.buildUnits(audit, pages)
	log.Info("dispatching analysis units", "units", len(units), "pages", len(pages))

	for _, unit := range units {
		unit := unit
		task := worker.Task{
			Name: unit.Describe(),
			Run: func(taskCtx context.Context) {
				o.runUnit(taskCtx, audit.ID, unit)
			},
		}
		if err := o.pool.Submit(ctx, worker.LaneDefault, task); err != nil {
			log.Error("failed to dispatch unit", "unit", unit.Describe(), "error", err)
			o.reportOutcome(ctx, audit.ID, unit, fmt.Errorf("dispatch failed: %w", err))
		}
	}
}

// buildUnits constructs the full fan-out set for an audit: four units per
// page plus the single checkout unit.
func (o *Orchestrator) buildUnits(audit *domain.Audit, pages []*domain.Page) []analysis.Unit {
	units := make([]analysis.Unit, 0, unitsPerPage*len(pages)+1)
	for _, page := range pages {
		units = append(units,
			analysis.NewMetadataUnit(page, o.repos.Pages, o.repos.Findings, o.client, o.cfg.Analysis, o.log),
			analysis.NewPerformanceUnit(page, domain.DeviceMobile, o.measurer, o.repos.Performance, o.repos.Findings, o.cfg.Analysis, o.log),
			analysis.NewPerformanceUnit(page, domain.DeviceDesktop, o.measurer, o.repos.Performance, o.repos.Findings, o.cfg.Analysis, o.log),
			analysis.NewLinksUnit(page, o.repos.Links, o.repos.Findings, o.client, o.checker, o.cfg.Analysis, o.log),
		)
	}
	units = append(units,
		analysis.NewCheckoutUnit(audit, o.repos.Checkout, o.repos.Findings, o.client, o.cfg.Analysis, o.log))
	return units
}

// runUnit executes one unit under its retry policy and reports the terminal
// outcome to the tracker.
func (o *Orchestrator) runUnit(ctx context.Context, auditID string, unit analysis.Unit) {
	err := o.runner.Run(ctx, unit)
	o.reportOutcome(ctx, auditID, unit, err)
}

// reportOutcome funnels a terminal unit result through the tracker and, for
// the single claiming reporter, schedules aggregation on the high lane.
func (o *Orchestrator) reportOutcome(ctx context.Context, auditID string, unit analysis.Unit, unitErr error) {
	var (
		claimed bool
		err     error
	)
	if unitErr != nil {
		claimed, err = o.tracker.ReportFailed(ctx, auditID, unitErr.Error())
	} else {
		claimed, err = o.tracker.ReportCompleted(ctx, auditID, unit.Describe())
	}
	if err != nil {
		o.log.WithAudit(auditID).Error("failed to report unit outcome",
			"unit", unit.Describe(),
			"error", err,
		)
		return
	}
	if !claimed {
		return
	}

	task := worker.Task{
		Name: fmt.Sprintf("aggregation of audit %s", auditID),
		Run: func(taskCtx context.Context) {
			o.aggregate(taskCtx, auditID)
		},
	}
	// High lane is a latency hint only; the claim above is what makes
	// aggregation run exactly once.
	if err := o.pool.Submit(o.baseCtx, worker.LaneHigh, task); err != nil {
		o.log.WithAudit(auditID).Warn("high lane unavailable, aggregating inline", "error", err)
		o.aggregate(ctx, auditID)
	}
}

// aggregate scores a fully fanned-in audit and marks it completed. Cancelled
// audits are left alone: their claim is consumed but no score is written.
func (o *Orchestrator) aggregate(ctx context.Context, auditID string) {
	log := o.log.WithAudit(auditID)

	audit, err := o.repos.Audits.GetByID(ctx, auditID)
	if err != nil {
		log.Error("failed to load audit for aggregation", "error", err)
		return
	}
	if audit.Status != domain.StatusAnalyzing {
		log.Info("skipping aggregation, audit no longer analyzing", "status", audit.Status)
		return
	}

	input, err := o.loadScoringInput(ctx, auditID)
	if err != nil {
		o.markFailed(ctx, auditID, fmt.Sprintf("aggregation failed: %v", err))
		return
	}

	result := o.engine.Score(*input)

	now := time.Now()
	audit.Score = &result.Overall
	audit.Status = domain.StatusCompleted
	audit.CurrentStep = "completed"
	audit.CompletedAt = &now
	// Conditional on still analyzing: a cancel landing during scoring wins,
	// and the audit never re-enters completed.
	ok, err := o.repos.Audits.UpdateIfStatus(ctx, audit, domain.StatusAnalyzing)
	if err != nil {
		o.markFailed(ctx, auditID, fmt.Sprintf("failed to persist score: %v", err))
		return
	}
	if !ok {
		log.Info("discarding aggregation result, audit left analyzing during scoring")
		return
	}

	log.Info("audit completed",
		"score", result.Overall,
		"grade", result.Grade,
	)
}

// loadScoringInput gathers everything the scoring engine needs.
func (o *Orchestrator) loadScoringInput(ctx context.Context, auditID string) (*scoring.Input, error) {
	pages, err := o.repos.Pages.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	findings, err := o.repos.Findings.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}
	samples, err := o.repos.Performance.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load performance samples: %w", err)
	}
	links, err := o.repos.Links.ListByAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load link records: %w", err)
	}

	return &scoring.Input{
		Pages:    pages,
		Findings: findings,
		Samples:  samples,
		Links:    links,
	}, nil
}

// transition validates and applies a status change in memory. The caller
// persists it.
func (o *Orchestrator) transition(_ context.Context, audit *domain.Audit, to domain.Status, step string) error {
	if err := domain.ValidateStatusTransition(audit.Status, to); err != nil {
		return err
	}
	audit.Status = to
	audit.CurrentStep = step
	return nil
}

// markFailed records a pipeline-fatal failure. Audits that already reached a
// terminal state (for example cancelled mid-flight) are left untouched.
func (o *Orchestrator) markFailed(ctx context.Context, auditID, message string) {
	audit, err := o.repos.Audits.GetByID(ctx, auditID)
	if err != nil {
		o.log.WithAudit(auditID).Error("failed to load audit for failure marking", "error", err)
		return
	}
	if audit.Status.IsTerminal() {
		return
	}

	observed := audit.Status
	now := time.Now()
	audit.Status = domain.StatusFailed
	audit.ErrorMessage = &message
	audit.CompletedAt = &now
	ok, err := o.repos.Audits.UpdateIfStatus(ctx, audit, observed)
	if err != nil {
		o.log.WithAudit(auditID).Error("failed to mark audit failed", "error", err)
		return
	}
	if !ok {
		// Someone else moved the audit to a terminal state first.
		return
	}

	o.log.WithAudit(auditID).Error("audit failed", "reason", message)
}
