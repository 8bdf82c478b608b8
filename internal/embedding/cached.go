package embedding

import (
	"context"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PersistentCache is a durable second cache tier, such as storage.EmbeddingStore.
type PersistentCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Put(ctx context.Context, key, model string, vec []float32) error
}

// CachedEmbedder serves repeated texts from an LRU cache and an optional persistent
// tier. Concurrent requests for the same uncached text share one provider call.
type CachedEmbedder struct {
	inner      Embedder
	model      string
	memory     *EmbeddingCache
	persistent PersistentCache
	group      singleflight.Group
	logger     *zap.Logger
}

// NewCachedEmbedder wraps inner. persistent may be nil.
func NewCachedEmbedder(inner Embedder, model string, memory *EmbeddingCache, persistent PersistentCache, logger *zap.Logger) *CachedEmbedder {
	if memory == nil {
		memory = NewEmbeddingCache(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:      inner,
		model:      model,
		memory:     memory,
		persistent: persistent,
		logger:     logger,
	}
}

// Embed returns the cached embedding for text or asks the wrapped provider.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.model, c.inner.Dimensions(), text)
	if v, ok := c.memory.Get(key); ok {
		return slices.Clone(v), nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.lookupPersistent(ctx, key); ok {
			return v, nil
		}
		v, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]float32)), nil
}

// EmbedBatch serves cached texts and sends only the misses to the provider in one batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	dims := c.inner.Dimensions()
	var missing []int
	for i, text := range texts {
		keys[i] = CacheKey(c.model, dims, text)
		if v, ok := c.memory.Get(keys[i]); ok {
			out[i] = slices.Clone(v)
			continue
		}
		if v, ok := c.lookupPersistent(ctx, keys[i]); ok {
			out[i] = slices.Clone(v)
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	vecs, err := c.inner.EmbedBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	for j, i := range missing {
		c.store(ctx, keys[i], vecs[j])
		out[i] = slices.Clone(vecs[j])
	}
	return out, nil
}

func (c *CachedEmbedder) lookupPersistent(ctx context.Context, key string) ([]float32, bool) {
	if c.persistent == nil {
		return nil, false
	}
	v, ok, err := c.persistent.Get(ctx, key)
	if err != nil {
		c.logger.Warn("persistent embedding cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if dims := c.inner.Dimensions(); dims > 0 && len(v) != dims {
		c.logger.Debug("ignoring cached embedding of another dimension",
			zap.Int("cached", len(v)), zap.Int("want", dims))
		return nil, false
	}
	c.memory.Set(key, v)
	return v, true
}

func (c *CachedEmbedder) store(ctx context.Context, key string, v []float32) {
	c.memory.Set(key, v)
	if c.persistent == nil {
		return
	}
	if err := c.persistent.Put(ctx, key, c.model, v); err != nil {
		c.logger.Warn("persistent embedding cache write failed", zap.Error(err))
	}
}

// Dimensions returns the wrapped provider's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the wrapped provider.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}
