package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MellowMango/apartment-search-sub005/internal/model"
	"github.com/MellowMango/apartment-search-sub005/internal/store"
)

// stubStore returns canned runs for the collector.
type stubStore struct {
	store.Store
	runs []model.PipelineRun
}

func (s *stubStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.PipelineRun, error) {
	return s.runs, nil
}

func TestCollect(t *testing.T) {
	now := time.Now().UTC()
	st := &stubStore{runs: []model.PipelineRun{
		{
			ID: "run-1", Status: model.RunStatusCompleted,
			Stages: []model.StageSummary{
				{Name: "scraping", Counts: map[string]int{
					"pages_fetched": 5, "pages_failed": 1, "candidates_found": 20,
				}},
				{Name: "conversion", Counts: map[string]int{
					"entities_faculty": 12, "entities_department": 2, "associations": 14,
				}},
			},
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "run-2", Status: model.RunStatusFailed,
			Stages: []model.StageSummary{
				{Name: "scraping", Counts: map[string]int{"pages_failed": 3}},
			},
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "run-3", Status: model.RunStatusScraping,
			CreatedAt: now, UpdatedAt: now,
		},
	}}

	snap, err := NewCollector(st).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsCompleted)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsActive)
	assert.InDelta(t, 0.5, snap.RunFailRate, 1e-9)

	assert.Equal(t, 5, snap.PagesFetched)
	assert.Equal(t, 4, snap.PagesFailed)
	assert.Equal(t, 20, snap.CandidatesFound)
	assert.Equal(t, 14, snap.Associations)
	assert.Equal(t, 12, snap.EntitiesByType["faculty"])
	assert.Equal(t, 2, snap.EntitiesByType["department"])
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollectEmpty(t *testing.T) {
	snap, err := NewCollector(&stubStore{}).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.RunFailRate)
	assert.Empty(t, snap.EntitiesByType)
}
