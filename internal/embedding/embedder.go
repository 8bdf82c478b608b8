// Package embedding turns query text into vectors through an external provider,
// with validation, retries and caching around it.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text.
// Errors wrap models.ErrProviderFailure; malformed vectors wrap models.ErrInvalidEmbedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Validate checks that v is a usable embedding. dimensions <= 0 accepts any length.
func Validate(v []float32, dimensions int) error {
	switch {
	case len(v) == 0:
		return fmt.Errorf("%w: empty vector", models.ErrInvalidEmbedding)
	case dimensions > 0 && len(v) != dimensions:
		return fmt.Errorf("%w: got %d dimensions, expected %d", models.ErrInvalidEmbedding, len(v), dimensions)
	case !utils.AllFinite(v):
		return fmt.Errorf("%w: non-finite value", models.ErrInvalidEmbedding)
	}
	return nil
}

// NewFromConfig creates the configured provider, wrapped in a CachedEmbedder when an
// in-memory cache size or a persistent cache is given. persistent may be nil.
func NewFromConfig(cfg *config.EmbeddingConfig, persistent PersistentCache, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	case "openai", "":
		inner, err = NewOpenAIEmbedder(cfg, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, mock)", cfg.Provider)
	}
	if cfg.CacheSize <= 0 && persistent == nil {
		return inner, nil
	}
	return NewCachedEmbedder(inner, cfg.Model, NewEmbeddingCache(cfg.CacheSize), persistent, logger), nil
}
