// Package store persists run history for the runs command.
package store

import (
	"context"

	"github.com/sells-group/persona-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for enrichment run history.
type Store interface {
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	RecordPass(ctx context.Context, stats model.PassStats) error
	ListPasses(ctx context.Context, runID string) ([]model.PassStats, error)

	Migrate(ctx context.Context) error
	Close() error
}
