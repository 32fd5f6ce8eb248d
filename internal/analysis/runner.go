package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// retryBackoff is the pause between failed attempts of the same unit.
const retryBackoff = 2 * time.Second

// Runner executes a unit under its kind's retry policy. Each attempt runs
// with the policy's timeout; a unit that exhausts its attempts has its
// failure handler invoked so a diagnostic finding survives the failure.
type Runner struct {
	cfg config.AnalysisConfig
	log logger.Interface
}

// NewRunner creates a runner with the given analysis configuration.
func NewRunner(cfg config.AnalysisConfig, log logger.Interface) *Runner {
	return &Runner{cfg: cfg, log: log.WithComponent("analysis.runner")}
}

// Run executes the unit until it succeeds or its attempt budget is spent.
// A nil return means the unit succeeded; a non-nil return means it failed
// permanently after the failure handler ran. Cancellation stops retries
// immediately.
func (r *Runner) Run(ctx context.Context, unit Unit) error {
	policy := PolicyFor(r.cfg, unit.Kind())

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		lastErr = r.attempt(ctx, unit, policy.Timeout)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		r.log.Warn("unit attempt failed",
			"unit", unit.Describe(),
			"kind", unit.Kind(),
			"attempt", attempt,
			"max_attempts", policy.Attempts,
			"error", lastErr.Error(),
		)

		if attempt < policy.Attempts {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = policy.Attempts
			}
		}
	}

	r.log.Error("unit failed permanently",
		"unit", unit.Describe(),
		"kind", unit.Kind(),
		"error", lastErr.Error(),
	)

	// Record the diagnostic finding with a fresh context so a cancelled
	// pipeline still leaves a trace of what went wrong.
	failCtx := ctx
	if failCtx.Err() != nil {
		var cancel context.CancelFunc
		failCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := unit.HandleFailure(failCtx, lastErr); err != nil {
		r.log.Error("failed to record failure finding",
			"unit", unit.Describe(),
			"error", err.Error(),
		)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", unit.Describe(), policy.Attempts, lastErr)
}

func (r *Runner) attempt(ctx context.Context, unit Unit, timeout time.Duration) (err error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("unit panicked: %v", rec)
		}
	}()

	if err := unit.Run(attemptCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("unit timed out after %s: %w", timeout, err)
		}
		return err
	}
	return nil
}
