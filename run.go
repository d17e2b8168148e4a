package bench

import (
	"context"
	"time"
)

// Run is one persisted execution of a strategy within a scenario.
type Run struct {
	ID        string
	Scenario  string // "throughput", "caching", "memory"
	Provider  string
	Model     string
	CreatedAt time.Time
	Metrics   RunMetrics
}

// RunFilter narrows ListRuns. Zero values match everything; Limit 0 means
// no limit.
type RunFilter struct {
	Scenario string
	Limit    int
}

// RunStore persists finalized runs.
type RunStore interface {
	// SaveRun stores r, assigning ID and CreatedAt when they are empty.
	SaveRun(ctx context.Context, r *Run) error
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
}

// Report is the outcome of one scenario: its runs in execution order and
// the comparisons between them.
type Report struct {
	Scenario    string
	Runs        []Run
	Comparisons []Comparison
}
