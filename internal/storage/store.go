package storage

import (
	"context"
	"time"
)

// Run is one persisted conversion.
type Run struct {
	ID        string
	CreatedAt time.Time
	Input     string
	Output    string
	// Report is the serialized run report.
	Report []byte
}

// OverrideRecord links a generated override rule to the run whose user
// confirmation produced it.
type OverrideRecord struct {
	RuleID    string
	RunID     string
	CreatedAt time.Time
	// Rule is the serialized rule as appended to the override store.
	Rule []byte
}

// RunStore persists conversion history.
type RunStore interface {
	// SaveRun persists one finished conversion.
	SaveRun(ctx context.Context, run Run) error

	// GetRun retrieves a run by its id.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// SaveOverride records a generated override rule against its run.
	SaveOverride(ctx context.Context, rec OverrideRecord) error

	// ListOverrides returns the override records for one run.
	ListOverrides(ctx context.Context, runID string) ([]OverrideRecord, error)

	Close() error
}
