// Package store persists run summaries and resolved entity graphs. The
// pipeline hands the graph over as plain data; the schema knows only entity
// type names and field names.
package store

import (
	"context"
	"time"

	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the pipeline.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *model.PipelineRun) error
	GetRun(ctx context.Context, runID string) (*model.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error)

	// Entity graphs
	SaveGraph(ctx context.Context, runID string, graph *model.Graph) error
	GetGraph(ctx context.Context, runID string) (*model.Graph, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
