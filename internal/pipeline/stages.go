package pipeline

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MellowMango/apartment-search-sub005/internal/adapter"
	"github.com/MellowMango/apartment-search-sub005/internal/enrich"
	"github.com/MellowMango/apartment-search-sub005/internal/extract"
	"github.com/MellowMango/apartment-search-sub005/internal/fetcher"
	"github.com/MellowMango/apartment-search-sub005/internal/model"
	"github.com/MellowMango/apartment-search-sub005/internal/resolve"
)

// scrapeResult carries one seed page's candidates, keyed by seed index so
// discovery order stays deterministic regardless of fetch completion order.
type scrapeResult struct {
	seedIndex  int
	candidates []model.RawCandidate
}

// scrapeStage fetches the discovery frontier in parallel and extracts raw
// candidates. Per-page failures are counted, not fatal; only a frontier
// with zero reachable pages is unrecoverable.
func scrapeStage(ctx context.Context, seeds []string, f *fetcher.Fetcher, reg *adapter.Registry, matcher *adapter.PathMatcher, concurrency, maxCandidates int) ([]model.RawCandidate, map[string]int) {
	counts := map[string]int{
		"pages_fetched":    0,
		"pages_failed":     0,
		"pages_excluded":   0,
		"candidates_found": 0,
	}

	var (
		mu      sync.Mutex
		results []scrapeResult
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, seed := range seeds {
		if matcher != nil && matcher.IsExcluded(seed) {
			counts["pages_excluded"]++
			continue
		}

		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}

			result, err := f.Fetch(gCtx, seed)
			if err != nil {
				zap.L().Warn("pipeline: discovery page failed",
					zap.String("url", seed),
					zap.Error(err),
				)
				mu.Lock()
				counts["pages_failed"]++
				mu.Unlock()
				return nil
			}

			a := reg.Select(result.FinalURL)
			candidates := extract.Extract(result.Body, a, result.FinalURL)

			mu.Lock()
			counts["pages_fetched"]++
			counts["candidates_found"] += len(candidates)
			results = append(results, scrapeResult{seedIndex: i, candidates: candidates})
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	// Flatten in seed order; assign global discovery order.
	sort.Slice(results, func(a, b int) bool {
		return results[a].seedIndex < results[b].seedIndex
	})

	var out []model.RawCandidate
	for _, r := range results {
		for _, c := range r.candidates {
			if maxCandidates > 0 && len(out) >= maxCandidates {
				break
			}
			c.DiscoveryOrder = len(out)
			out = append(out, c)
		}
	}
	if maxCandidates > 0 && counts["candidates_found"] > maxCandidates {
		counts["candidates_truncated"] = counts["candidates_found"] - maxCandidates
		counts["candidates_found"] = maxCandidates
	}

	return out, counts
}

// enrichStage follows each candidate's profile link in parallel. Enrichment
// failures keep the candidate; only counters record the outcome.
func enrichStage(ctx context.Context, candidates []model.RawCandidate, e *enrich.Enricher, concurrency int) ([]model.EnrichedCandidate, map[string]int) {
	counts := map[string]int{
		"enrichments_attempted": 0,
		"enrichments_succeeded": 0,
		"enrichments_failed":    0,
		"not_attempted":         0,
	}

	enriched := make([]model.EnrichedCandidate, len(candidates))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	for i := range candidates {
		g.Go(func() error {
			if gCtx.Err() != nil {
				// Cancelled before dispatch: retain the candidate unenriched.
				enriched[i] = model.EnrichedCandidate{
					RawCandidate: candidates[i],
					Enrichment:   model.EnrichmentNotAttempted,
				}
				mu.Lock()
				counts["not_attempted"]++
				mu.Unlock()
				return nil
			}

			ec := e.Enrich(gCtx, candidates[i])
			enriched[i] = ec

			mu.Lock()
			switch ec.Enrichment {
			case model.EnrichmentSucceeded:
				counts["enrichments_attempted"]++
				counts["enrichments_succeeded"]++
			case model.EnrichmentFailed:
				counts["enrichments_attempted"]++
				counts["enrichments_failed"]++
			default:
				counts["not_attempted"]++
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return enriched, counts
}

// convertStage resolves candidates into the entity graph. Candidates are
// sorted by discovery order first so merge tie-breaks are reproducible.
func convertStage(candidates []model.EnrichedCandidate) (*model.Graph, map[string]int) {
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].DiscoveryOrder < candidates[b].DiscoveryOrder
	})

	graph := resolve.Resolve(candidates)

	counts := map[string]int{
		"associations": len(graph.Associations),
	}
	for t, n := range graph.CountByType() {
		counts["entities_"+string(t)] = n
	}
	return graph, counts
}
