package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/shiori/internal/server"
	"github.com/hyperjump/shiori/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query API",
		Long: `Start the HTTP query API. The index is loaded in the background while the
server starts; queries answer with empty results until it is published.
With watch.enabled, local sources are reloaded when they change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	srv := server.NewServer(
		components.Orchestrator,
		components.Handle,
		components.Status,
		components.Loader,
		&cfg.Server,
		logger,
	)

	if cfg.Watch.Enabled {
		paths := localSources(cfg)
		w := watcher.NewWatcher(paths, func(path string) {
			logger.Info("source changed, reloading", zap.String("path", path))
			_ = components.Loader.Refresh(ctx, components.Handle)
		}, watcher.WithDebounce(cfg.Watch.Debounce), watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
		logger.Info("watching sources", zap.Strings("files", w.Files()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Failures are logged by the loader; the server keeps answering with what is published.
		_ = components.Loader.Refresh(gctx, components.Handle)
		return nil
	})

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(sctx)
	})
	return g.Wait()
}
