// Package status collects a diagnostic report of the engine: the published index,
// the outcome of the last load, the state of the configured sources and the query cache.
package status

import (
	"context"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/loader"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/source"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/internal/vector"
)

// Inspector reports on a source location without reading it.
type Inspector interface {
	Inspect(ctx context.Context, location string) source.Info
}

// Report is the shape of GET /api/v1/status and `shiori status --output json`.
type Report struct {
	Index     *models.IndexStatus `json:"index,omitempty"`
	LastLoad  *loader.Stats       `json:"last_load,omitempty"`
	LoadError string              `json:"load_error,omitempty"`
	Sources   []source.Info       `json:"sources"`
	Cache     *Cache              `json:"cache,omitempty"`
	Config    Settings            `json:"config"`
}

// Settings echoes the options that shape query results.
type Settings struct {
	ScoreMode           string   `json:"score_mode"`
	DefaultK            int      `json:"default_k"`
	MaxK                int      `json:"max_k"`
	DefaultMinScore     *float64 `json:"default_min_score,omitempty"`
	MaxRecords          int      `json:"max_records"`
	EmbeddingProvider   string   `json:"embedding_provider"`
	EmbeddingModel      string   `json:"embedding_model"`
	EmbeddingDimensions int      `json:"embedding_dimensions,omitempty"`
	WatchEnabled        bool     `json:"watch_enabled"`
}

// Cache describes the persistent query embedding cache.
type Cache struct {
	Path           string `json:"path"`
	Entries        int64  `json:"entries"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
	Error          string `json:"error,omitempty"`
}

// Collector gathers a Report. handle, loader and cache are optional.
type Collector struct {
	cfg       *config.Config
	inspector Inspector
	handle    *vector.Handle
	loader    *loader.Loader
	cache     *storage.EmbeddingStore
}

// NewCollector creates a collector over the given components.
func NewCollector(cfg *config.Config, inspector Inspector, handle *vector.Handle, ld *loader.Loader, cache *storage.EmbeddingStore) *Collector {
	return &Collector{cfg: cfg, inspector: inspector, handle: handle, loader: ld, cache: cache}
}

// Collect builds a report. Problems with individual parts are reported inside it.
func (c *Collector) Collect(ctx context.Context) *Report {
	r := &Report{
		Sources: make([]source.Info, 0, 2),
		Config: Settings{
			ScoreMode:           c.cfg.Search.ScoreMode,
			DefaultK:            c.cfg.Search.DefaultK,
			MaxK:                c.cfg.Server.MaxK,
			DefaultMinScore:     c.cfg.Search.DefaultMinScore,
			MaxRecords:          c.cfg.Sources.MaxRecords,
			EmbeddingProvider:   c.cfg.Embedding.Provider,
			EmbeddingModel:      c.cfg.Embedding.Model,
			EmbeddingDimensions: c.cfg.Embedding.Dimensions,
			WatchEnabled:        c.cfg.Watch.Enabled,
		},
	}
	if c.handle != nil {
		st := c.handle.Status()
		r.Index = &st
	}
	if c.loader != nil {
		stats, err := c.loader.LastStats()
		r.LastLoad = stats
		if err != nil {
			r.LoadError = err.Error()
		}
	}
	if c.inspector != nil {
		for _, loc := range []string{c.cfg.Sources.VectorPath, c.cfg.Sources.MetadataPath} {
			r.Sources = append(r.Sources, c.inspector.Inspect(ctx, loc))
		}
	}
	if c.cache != nil {
		r.Cache = c.cacheStatus(ctx)
	}
	return r
}

func (c *Collector) cacheStatus(ctx context.Context) *Cache {
	out := &Cache{Path: c.cache.Path()}
	n, err := c.cache.Count(ctx)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Entries = n
	size, err := storage.DiskUsageBytes(c.cache.Files()...)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.DiskUsageBytes = size
	return out
}
