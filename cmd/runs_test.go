package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

func TestComputeRunStats(t *testing.T) {
	now := time.Now()
	runs := []model.PipelineRun{
		{
			Status:    model.RunStatusCompleted,
			CreatedAt: now.Add(-10 * time.Second),
			UpdatedAt: now,
			Stages: []model.StageSummary{
				{Name: "scraping", Counts: map[string]int{"candidates_found": 8, "pages_failed": 1}},
			},
		},
		{Status: model.RunStatusFailed, CreatedAt: now, UpdatedAt: now},
		{Status: model.RunStatusScraping, CreatedAt: now, UpdatedAt: now},
	}

	s := computeRunStats(runs)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Active)
	assert.Equal(t, 8, s.Candidates)
	assert.Equal(t, 1, s.PagesFailed)
	assert.InDelta(t, 10.0, s.AvgDurSecs, 0.1)
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.PipelineRun{
		{
			ID:        "0123456789abcdef",
			Config:    model.RunConfig{SeedURLs: []string{"https://x.edu/f", "https://y.edu/f"}},
			Status:    model.RunStatusCompleted,
			CreatedAt: now,
			UpdatedAt: now.Add(5 * time.Second),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "01234567") // truncated id
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "2026-08-01 12:00")
	assert.Contains(t, out, "5s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "01234567", truncateID("0123456789abcdef"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "-", formatCounts(nil))
	assert.Contains(t, formatCounts(map[string]int{"pages_fetched": 3}), `"pages_fetched":3`)
}
