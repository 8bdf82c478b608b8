package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/loader"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/internal/search"
	"github.com/hyperjump/shiori/internal/source"
	"github.com/hyperjump/shiori/internal/status"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/internal/vector"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger for a command.
func setup(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || opts.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return cfg, logger, nil
}

// Components holds initialized services.
type Components struct {
	Config       *config.Config
	Sources      *source.Store
	Loader       *loader.Loader
	Handle       *vector.Handle
	Cache        *storage.EmbeddingStore
	Status       *status.Collector
	Engine       *search.Engine
	Embedder     embedding.Embedder
	Orchestrator *retrieval.Orchestrator
}

// Close releases the embedder and the persistent cache.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}

// initializeSources builds everything needed to load and inspect the index, but no
// embedding provider, so it works without provider credentials.
func initializeSources(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	sources, err := source.NewStore(&cfg.Sources.S3, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sources: %w", err)
	}
	c := &Components{
		Config:  cfg,
		Sources: sources,
		Loader:  loader.New(sources, &cfg.Sources, loader.WithLogger(logger)),
		Handle:  vector.NewHandle(),
	}
	if cfg.Embedding.CachePath != "" {
		store, err := storage.NewEmbeddingStore(cfg.Embedding.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
		}
		c.Cache = store
		if n, err := store.PruneModel(ctx, cfg.Embedding.Model, cfg.Embedding.Dimensions); err != nil {
			logger.Warn("embedding cache prune failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("pruned cached embeddings of other models or dimensions", zap.Int64("removed", n))
		}
	}
	c.Status = status.NewCollector(cfg, sources, c.Handle, c.Loader, c.Cache)
	return c, nil
}

// initializeComponents builds the full query pipeline.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c, err := initializeSources(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Engine, err = search.NewEngine(c.Handle, &cfg.Search)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize search engine: %w", err)
	}
	var persistent embedding.PersistentCache
	if c.Cache != nil {
		persistent = c.Cache
	}
	c.Embedder, err = embedding.NewFromConfig(&cfg.Embedding, persistent, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Orchestrator = retrieval.New(c.Engine, c.Embedder, &cfg.Search, cfg.Embedding.Timeout, logger)
	logger.Debug("components initialized",
		zap.String("score_mode", string(c.Engine.Mode())),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Bool("persistent_cache", c.Cache != nil),
	)
	return c, nil
}

// localSources returns the configured sources that live on the local filesystem.
func localSources(cfg *config.Config) []string {
	var out []string
	for _, loc := range []string{cfg.Sources.VectorPath, cfg.Sources.MetadataPath} {
		if loc != "" && !source.IsRemote(loc) {
			out = append(out, loc)
		}
	}
	return out
}
