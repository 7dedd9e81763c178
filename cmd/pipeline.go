package main

import (
	"github.com/MellowMango/apartment-search-sub005/internal/adapter"
	"github.com/MellowMango/apartment-search-sub005/internal/fetcher"
	"github.com/MellowMango/apartment-search-sub005/internal/pipeline"
	"github.com/MellowMango/apartment-search-sub005/internal/store"
)

// initCoordinator builds a pipeline coordinator from the loaded config.
func initCoordinator(st store.Store) (*pipeline.Coordinator, error) {
	registry, err := adapter.LoadRegistry(cfg.Adapters.RulesPath)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		FetchOptions: fetcher.Options{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      cfg.Fetch.Timeout(),
			MaxAttempts:  cfg.Fetch.MaxAttempts,
			MaxRedirects: cfg.Fetch.MaxRedirects,
			PerHostRPS:   cfg.Fetch.PerHostRPS,
			PerHostBurst: cfg.Fetch.PerHostBurst,
		},
		StageTimeout: cfg.Pipeline.StageTimeout(),
		ExcludePaths: cfg.Pipeline.ExcludePaths,
	}

	coord := pipeline.New(registry, opts)
	if st != nil {
		coord = coord.WithStore(st)
	}
	return coord, nil
}
