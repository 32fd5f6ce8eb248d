// Package domain provides domain models used across the application.
package domain

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of an audit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCrawling  Status = "crawling"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// percentageMultiplier converts a ratio to a percentage.
const percentageMultiplier = 100

// String returns the string representation of a status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status accepts no further forward transitions.
// Restart is not a forward transition; it resets the audit wholesale.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsProcessing returns true while the audit pipeline owns the audit.
func (s Status) IsProcessing() bool {
	return s == StatusPending || s == StatusCrawling || s == StatusAnalyzing
}

// ValidateStatusTransition checks if a status transition is valid.
// Returns an error if the transition is not allowed. Restart bypasses this
// check deliberately: it deletes child data and re-enters pending.
func ValidateStatusTransition(from, to Status) error {
	validTransitions := map[Status][]Status{
		StatusPending: {
			StatusCrawling, // Start invoked
			StatusFailed,   // Cancelled or fatal error before crawling
		},
		StatusCrawling: {
			StatusAnalyzing, // Discovery produced pages, fan-out in flight
			StatusFailed,    // Seed unreachable, or cancelled
		},
		StatusAnalyzing: {
			StatusCompleted, // Aggregation succeeded
			StatusFailed,    // Aggregation failed, or cancelled
		},
		// Terminal states
		StatusCompleted: {},
		StatusFailed:    {},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source status: %s", from)
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return fmt.Errorf("invalid status transition from %s to %s", from, to)
}

// Audit represents one end-to-end evaluation run against a target site.
type Audit struct {
	ID            string     `db:"id" json:"id"`
	Domain        string     `db:"domain" json:"domain"`
	URL           string     `db:"url" json:"url"`
	Status        Status     `db:"status" json:"status"`
	Score         *int       `db:"score" json:"score,omitempty"`
	PagesCrawled  int        `db:"pages_crawled" json:"pages_crawled"`
	MaxPages      int        `db:"max_pages" json:"max_pages"`
	JobsTotal     int        `db:"jobs_total" json:"jobs_total"`
	JobsCompleted int        `db:"jobs_completed" json:"jobs_completed"`
	JobsFailed    int        `db:"jobs_failed" json:"jobs_failed"`
	CurrentStep   string     `db:"current_step" json:"current_step"`
	ErrorMessage  *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt     *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// IsCompleted returns true if the audit finished successfully.
func (a *Audit) IsCompleted() bool {
	return a.Status == StatusCompleted
}

// IsFailed returns true if the audit failed or was cancelled.
func (a *Audit) IsFailed() bool {
	return a.Status == StatusFailed
}

// IsProcessing returns true while the audit is owned by the pipeline.
func (a *Audit) IsProcessing() bool {
	return a.Status.IsProcessing()
}

// ProgressPercentage returns how far the fan-out phase has progressed.
func (a *Audit) ProgressPercentage() int {
	if a.JobsTotal == 0 {
		return 0
	}
	terminal := a.JobsCompleted + a.JobsFailed
	return int(float64(terminal) / float64(a.JobsTotal) * percentageMultiplier)
}

// HasFailedJobs returns true if any analysis unit reported permanent failure.
func (a *Audit) HasFailedJobs() bool {
	return a.JobsFailed > 0
}
