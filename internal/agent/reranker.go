package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/daybook/internal/llm"
	"github.com/hyperengineering/daybook/internal/types"
)

const (
	// rerankBatchSize bounds each prompt's context regardless of total
	// candidate count and limits a failed batch's blast radius to ten
	// activities.
	rerankBatchSize = 10

	// rerankFallbackLimit caps the original-order fallback when every
	// batch failed or the model found nothing relevant.
	rerankFallbackLimit = 15
)

// rerankTimeout bounds each batch call; a stuck batch is treated like a
// failed one rather than stalling the whole rerank.
const rerankTimeout = 30 * time.Second

// Reranker re-scores candidate activities against a query in fixed-size
// batches with per-batch degradation.
type Reranker struct {
	gen Generator
}

// NewReranker creates a Reranker backed by the given generator.
func NewReranker(gen Generator) *Reranker {
	return &Reranker{gen: gen}
}

// Rerank returns a subset of candidates ordered most relevant first.
// Batch results are concatenated in batch order: candidates arrive
// date-descending and each batch is ranked internally, so the result is
// piecewise-ranked rather than globally re-sorted. A failed batch is
// skipped entirely; its candidates are dropped. When the final ranked set
// is empty, the first rerankFallbackLimit candidates are returned in
// original order so downstream synthesis always has material.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []types.Activity) []types.Activity {
	if len(candidates) == 0 {
		return []types.Activity{}
	}

	byID := make(map[string]types.Activity, len(candidates))
	for _, a := range candidates {
		byID[a.ID] = a
	}

	var rankedIDs []string
	for start := 0; start < len(candidates); start += rerankBatchSize {
		end := start + rerankBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		ids, err := r.rerankBatch(ctx, query, batch)
		if err != nil {
			slog.Warn("rerank batch failed, dropping its candidates",
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			continue
		}
		rankedIDs = append(rankedIDs, ids...)
	}

	// Map ids back to activities; stale or invented ids are dropped, and
	// a repeated id is only taken once.
	ranked := make([]types.Activity, 0, len(rankedIDs))
	seen := make(map[string]bool, len(rankedIDs))
	for _, id := range rankedIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if a, ok := byID[id]; ok {
			ranked = append(ranked, a)
		}
	}

	if len(ranked) == 0 {
		limit := rerankFallbackLimit
		if limit > len(candidates) {
			limit = len(candidates)
		}
		return candidates[:limit]
	}

	return ranked
}

func (r *Reranker) rerankBatch(ctx context.Context, query string, batch []types.Activity) ([]string, error) {
	raw, err := r.gen.Generate(ctx, llm.Request{
		Prompt:      llm.RerankPrompt(query, batch),
		Schema:      &llm.RerankSchema,
		Temperature: 0.0,
		Timeout:     rerankTimeout,
	})
	if err != nil {
		return nil, err
	}
	return llm.DecodeRankedIDs(raw)
}
