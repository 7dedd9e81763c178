package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusScraping   RunStatus = "scraping"
	RunStatusEnriching  RunStatus = "link_enrichment"
	RunStatusConverting RunStatus = "conversion"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// StageStatus represents the state of a single pipeline stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// StageSummary holds the outcome of one pipeline stage. Partial failures
// (a subset of pages unreachable, a subset of candidates unenrichable) are
// recorded in Counts without failing the stage.
type StageSummary struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Counts   map[string]int `json:"counts,omitempty"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
}

// RunConfig is the configuration accepted by the trigger interface.
type RunConfig struct {
	SeedURLs      []string `json:"seed_urls"`
	MaxCandidates int      `json:"max_candidates,omitempty"`
	Concurrency   int      `json:"concurrency,omitempty"`
	PerHostRPS    float64  `json:"per_host_rps,omitempty"`
	PerHostBurst  int      `json:"per_host_burst,omitempty"`
}

// PipelineRun is process-scoped state for one end-to-end invocation. Created
// at run start, mutated only by the coordinator, handed to persistence at
// run end. It is not the persisted representation of the entity graph.
type PipelineRun struct {
	ID        string         `json:"id"`
	Config    RunConfig      `json:"config"`
	Status    RunStatus      `json:"status"`
	Stages    []StageSummary `json:"stages"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Stage returns the summary for the named stage, or nil if absent.
func (r *PipelineRun) Stage(name string) *StageSummary {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}
