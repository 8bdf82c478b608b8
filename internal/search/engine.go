// Package search provides exact nearest-neighbor search over the published vector index.
package search

import (
	"context"
	"runtime"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/vector"
	"github.com/hyperjump/shiori/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// cancelCheckEvery is how many rows a scoring loop handles between context checks.
const cancelCheckEvery = 4096

// Engine scores a query vector against every record of an index.
type Engine struct {
	handle            *vector.Handle
	mode              vector.ScoreMode
	defaultK          int
	parallelThreshold int
	workers           int
}

// NewEngine creates a search engine reading the index published through handle.
func NewEngine(handle *vector.Handle, cfg *config.SearchConfig) (*Engine, error) {
	mode, err := vector.ParseScoreMode(cfg.ScoreMode)
	if err != nil {
		return nil, err
	}
	return &Engine{
		handle:            handle,
		mode:              mode,
		defaultK:          cfg.DefaultK,
		parallelThreshold: cfg.ParallelThreshold,
		workers:           runtime.GOMAXPROCS(0),
	}, nil
}

// Mode returns the scoring mode.
func (e *Engine) Mode() vector.ScoreMode {
	return e.mode
}

// Handle returns the handle the engine reads from.
func (e *Engine) Handle() *vector.Handle {
	return e.handle
}

// EffectiveK applies the default to k <= 0.
func (e *Engine) EffectiveK(k int) int {
	if k <= 0 {
		return e.defaultK
	}
	return k
}

// SearchVector ranks the current index against query. It never fails: an empty index,
// an empty query or a cancelled context yield no hits.
func (e *Engine) SearchVector(ctx context.Context, query []float32, k int, minScore *float64) []models.SearchHit {
	hits, err := e.Search(ctx, e.handle.Load(), query, k, minScore)
	if err != nil {
		return []models.SearchHit{}
	}
	return hits
}

// Search ranks idx against query: the first k records by score (ties by position), then,
// when minScore is set, only those scoring at least *minScore. Records whose dimension
// differs from the query score 0. The only error is ctx's.
func (e *Engine) Search(ctx context.Context, idx *vector.Index, query []float32, k int, minScore *float64) ([]models.SearchHit, error) {
	if idx == nil || idx.Len() == 0 || len(query) == 0 {
		return []models.SearchHit{}, nil
	}
	scores, err := e.score(ctx, idx, query)
	if err != nil {
		return nil, err
	}
	best := topK(scores, e.EffectiveK(k))
	hits := make([]models.SearchHit, 0, len(best))
	for _, c := range best {
		if minScore != nil && c.score < *minScore {
			continue
		}
		hits = append(hits, models.SearchHit{
			Record: idx.At(c.pos),
			Score:  c.score,
			Rank:   len(hits) + 1,
		})
	}
	return hits, nil
}

// score computes one score per record. Large indexes are split into contiguous shards
// scored concurrently; each shard writes only its own range of the result.
func (e *Engine) score(ctx context.Context, idx *vector.Index, query []float32) ([]float64, error) {
	n := idx.Len()
	scores := make([]float64, n)
	qNorm := utils.L2Norm(query)

	scoreRange := func(ctx context.Context, from, to int) error {
		for i := from; i < to; i++ {
			if (i-from)%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			scores[i] = vector.Score(e.mode, idx, i, query, qNorm)
		}
		return nil
	}

	if e.parallelThreshold <= 0 || n < e.parallelThreshold || e.workers < 2 {
		if err := scoreRange(ctx, 0, n); err != nil {
			return nil, err
		}
		return scores, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	shard := (n + e.workers - 1) / e.workers
	for from := 0; from < n; from += shard {
		to := min(from+shard, n)
		g.Go(func() error { return scoreRange(gctx, from, to) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}
