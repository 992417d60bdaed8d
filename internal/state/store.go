// Package state keeps a local journal of import and clear runs in SQLite.
package state

import (
	"context"
	"time"
)

// RunKind identifies the operation a run performed.
type RunKind string

// Run kinds.
const (
	RunKindImport RunKind = "import"
	RunKindClear  RunKind = "clear"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusAborted   RunStatus = "aborted"
)

// Run is one journaled invocation of import or clear.
type Run struct {
	ID      string    `json:"id"`
	Kind    RunKind   `json:"kind"`
	Status  RunStatus `json:"status"`
	Release string    `json:"release,omitempty"`
	// Filters is a human-readable description of the selection.
	Filters string `json:"filters"`
	DryRun  bool   `json:"dry_run"`

	Total     int64 `json:"total"`
	Pulled    int64 `json:"pulled"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`

	Error   string   `json:"error,omitempty"`
	Samples []string `json:"samples,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store is the run journal.
type Store interface {
	StartRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}
