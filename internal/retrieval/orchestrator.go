// Package retrieval answers text queries: it embeds the query through the provider,
// ranks the published index and assembles the matched texts into one context block.
//
// Every failure on the way (a short or rejected query, an empty index, a provider
// error or timeout) produces an empty result, never an error.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/search"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

// Orchestrator ties the embedding provider to the search engine.
type Orchestrator struct {
	engine          *search.Engine
	embedder        embedding.Embedder
	guard           *Guard
	embedTimeout    time.Duration
	minQueryChars   int
	defaultMinScore *float64
	separator       string
	logger          *zap.Logger
}

// New creates an orchestrator. embedTimeout bounds each provider call; 0 leaves it to ctx.
func New(engine *search.Engine, embedder embedding.Embedder, cfg *config.SearchConfig, embedTimeout time.Duration, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		engine:          engine,
		embedder:        embedder,
		guard:           NewGuard(cfg.MaxQueryChars),
		embedTimeout:    embedTimeout,
		minQueryChars:   cfg.MinQueryChars,
		defaultMinScore: cfg.DefaultMinScore,
		separator:       cfg.ContextSeparator,
		logger:          utils.OrNop(logger),
	}
}

// Search returns the hits for queryText. A nil minScore uses the configured default.
func (o *Orchestrator) Search(ctx context.Context, queryText string, k int, minScore *float64) []models.SearchHit {
	return o.Query(ctx, queryText, k, minScore).Hits
}

// SearchVector returns the hits for a caller-supplied query vector.
func (o *Orchestrator) SearchVector(ctx context.Context, query []float32, k int, minScore *float64) []models.SearchHit {
	return o.QueryVector(ctx, query, k, minScore).Hits
}

// Retrieve runs Search and joins the hit texts in rank order. Hits that carry the
// no-context text are kept in Hits but left out of Context.
func (o *Orchestrator) Retrieve(ctx context.Context, queryText string, k int, minScore *float64) *models.RetrievalContext {
	resp := o.Query(ctx, queryText, k, minScore)
	parts := make([]string, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		if h.Record.HasContext() {
			parts = append(parts, h.Record.Text)
		}
	}
	return &models.RetrievalContext{
		Query:     resp.Query,
		Hits:      resp.Hits,
		Context:   strings.Join(parts, o.separator),
		QueryTime: resp.QueryTime,
	}
}

// Query is Search with timing and the generation of the index that answered.
func (o *Orchestrator) Query(ctx context.Context, queryText string, k int, minScore *float64) *models.SearchResponse {
	start := time.Now()
	idx := o.engine.Handle().Load()
	trimmed := strings.TrimSpace(queryText)
	resp := &models.SearchResponse{
		Hits:            []models.SearchHit{},
		Query:           trimmed,
		IndexGeneration: idx.Generation(),
	}
	defer func() { resp.QueryTime = time.Since(start).Milliseconds() }()

	if utils.MeaningfulLength(trimmed) < o.minQueryChars {
		o.logger.Debug("query too short", zap.Int("chars", utils.MeaningfulLength(trimmed)))
		return resp
	}
	if idx.Len() == 0 {
		o.logger.Debug("index empty, skipping query")
		return resp
	}
	if err := o.guard.Check(trimmed); err != nil {
		o.logger.Warn("query blocked before embedding", zap.Error(err))
		return resp
	}

	vec, err := o.embed(ctx, trimmed)
	if err != nil {
		o.logger.Warn("query embedding failed",
			zap.String("query", utils.Truncate(trimmed, 80)),
			zap.Error(err),
		)
		return resp
	}
	if idx.Dimension() != len(vec) {
		o.logger.Warn("query dimension differs from index, every record scores 0",
			zap.Int("query_dimension", len(vec)),
			zap.Int("index_dimension", idx.Dimension()),
		)
	}
	hits, err := o.engine.Search(ctx, idx, vec, k, o.threshold(minScore))
	if err != nil {
		o.logger.Debug("search cancelled", zap.Error(err))
		return resp
	}
	resp.Hits = hits
	resp.Total = len(hits)
	return resp
}

// QueryVector is SearchVector with timing and the generation of the index that answered.
func (o *Orchestrator) QueryVector(ctx context.Context, query []float32, k int, minScore *float64) *models.SearchResponse {
	start := time.Now()
	idx := o.engine.Handle().Load()
	resp := &models.SearchResponse{Hits: []models.SearchHit{}, IndexGeneration: idx.Generation()}
	defer func() { resp.QueryTime = time.Since(start).Milliseconds() }()

	hits, err := o.engine.Search(ctx, idx, query, k, o.threshold(minScore))
	if err != nil {
		return resp
	}
	resp.Hits = hits
	resp.Total = len(hits)
	return resp
}

func (o *Orchestrator) threshold(minScore *float64) *float64 {
	if minScore != nil {
		return minScore
	}
	return o.defaultMinScore
}

// embed calls the provider under the per-query timeout and validates its answer.
func (o *Orchestrator) embed(ctx context.Context, text string) ([]float32, error) {
	if o.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.embedTimeout)
		defer cancel()
	}
	vec, err := o.embedder.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, models.ErrProviderFailure) {
			err = fmt.Errorf("%w: %w", models.ErrProviderFailure, err)
		}
		return nil, err
	}
	if err := embedding.Validate(vec, 0); err != nil {
		return nil, err
	}
	return vec, nil
}
