package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/discovery"
	"github.com/jonesrussell/goaudit/internal/fetcher"
	"github.com/jonesrussell/goaudit/internal/lighthouse"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/internal/pipeline"
	"github.com/jonesrussell/goaudit/internal/report"
	"github.com/jonesrussell/goaudit/internal/worker"
)

// app bundles the wired dependencies shared by every subcommand.
type app struct {
	cfg          *config.Config
	log          logger.Interface
	db           *sqlx.DB
	repos        database.Repositories
	pool         *worker.Pool
	orchestrator *pipeline.Orchestrator
	reports      *report.Service
}

// newApp loads configuration, connects to the database, runs migrations and
// wires the pipeline. The worker pool is created but not started; commands
// that dispatch work call a.pool.Start themselves.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	repos := database.Repositories{
		Audits:      database.NewAuditRepository(db),
		Pages:       database.NewPageRepository(db),
		Findings:    database.NewFindingRepository(db),
		Links:       database.NewLinkRepository(db),
		Performance: database.NewPerformanceRepository(db),
		Checkout:    database.NewCheckoutRepository(db),
	}

	pool, err := worker.NewPool(cfg.Worker, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	client := fetcher.NewHTTPClient(cfg.Crawler.RequestTimeout, cfg.Crawler.UserAgent)
	checker := fetcher.NewHTTPStatusChecker(
		cfg.Analysis.LinkCheckTimeout,
		cfg.Analysis.LinkMaxRedirects,
		cfg.Crawler.UserAgent,
	)
	measurer := lighthouse.NewCLIMeasurer(cfg.Lighthouse, log)
	crawler := discovery.NewCollyCrawler(cfg.Crawler, log)
	discoverySvc := discovery.NewService(crawler, repos.Pages, log)

	orchestrator := pipeline.NewOrchestrator(
		ctx, repos, discoverySvc, pool, client, checker, measurer, cfg, log)

	return &app{
		cfg:          cfg,
		log:          log,
		db:           db,
		repos:        repos,
		pool:         pool,
		orchestrator: orchestrator,
		reports:      report.NewService(repos, cfg.Scoring, log),
	}, nil
}

// close releases the app's resources. Safe to call after a partial start.
func (a *app) close() {
	if a.pool != nil && a.pool.State() == worker.PoolStateRunning {
		if err := a.pool.Stop(); err != nil {
			a.log.Warn("failed to stop worker pool", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
