// Package server provides the HTTP query API for shiori.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/internal/status"
	"github.com/hyperjump/shiori/internal/vector"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; a vector query of a few thousand floats fits easily.
const maxBodyBytes = 4 << 20

// Reloader rebuilds the index from its sources and publishes it to h.
type Reloader interface {
	Refresh(ctx context.Context, h *vector.Handle) error
}

// Server is the HTTP server for the shiori API.
type Server struct {
	orch     *retrieval.Orchestrator
	handle   *vector.Handle
	status   *status.Collector
	reloader Reloader
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. reloader may be nil,
// in which case POST /api/v1/reload answers 501.
func NewServer(
	orch *retrieval.Orchestrator,
	handle *vector.Handle,
	collector *status.Collector,
	reloader Reloader,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	s := &Server{
		orch:     orch,
		handle:   handle,
		status:   collector,
		reloader: reloader,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API router with its middleware stack.
func (s *Server) Handler() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/search/vector", s.handleSearchVector)
		r.Post("/context", s.handleContext)
		r.Post("/reload", s.handleReload)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
