// Package monitoring derives health metrics from persisted run summaries.
package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/MellowMango/apartment-search-sub005/internal/model"
	"github.com/MellowMango/apartment-search-sub005/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal     int     `json:"runs_total"`
	RunsCompleted int     `json:"runs_completed"`
	RunsFailed    int     `json:"runs_failed"`
	RunsActive    int     `json:"runs_active"`
	RunFailRate   float64 `json:"run_fail_rate"`

	// Aggregated stage counters.
	PagesFetched    int `json:"pages_fetched"`
	PagesFailed     int `json:"pages_failed"`
	CandidatesFound int `json:"candidates_found"`
	Associations    int `json:"associations"`

	// Entities produced per type across completed runs.
	EntitiesByType map[string]int `json:"entities_by_type"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		EntitiesByType: map[string]int{},
		LookbackHours:  lookbackHours,
		CollectedAt:    time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			snap.RunsCompleted++
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsActive++
		}

		for _, stage := range r.Stages {
			for key, n := range stage.Counts {
				switch key {
				case "pages_fetched":
					snap.PagesFetched += n
				case "pages_failed":
					snap.PagesFailed += n
				case "candidates_found":
					snap.CandidatesFound += n
				case "associations":
					snap.Associations += n
				default:
					if t, ok := strings.CutPrefix(key, "entities_"); ok {
						snap.EntitiesByType[t] += n
					}
				}
			}
		}
	}

	finished := snap.RunsCompleted + snap.RunsFailed
	if finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	return snap, nil
}
