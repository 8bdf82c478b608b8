package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if !s.decode(w, r, &query) {
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", utils.Truncate(query.Query, 80)), zap.Int("k", query.K))
	s.respondJSON(w, http.StatusOK, s.orch.Query(r.Context(), query.Query, s.limitK(query.K), query.MinScore))
}

func (s *Server) handleSearchVector(w http.ResponseWriter, r *http.Request) {
	var query models.VectorQuery
	if !s.decode(w, r, &query) {
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("vector search request", zap.Int("dimension", len(query.Vector)), zap.Int("k", query.K))
	s.respondJSON(w, http.StatusOK, s.orch.QueryVector(r.Context(), query.Vector, s.limitK(query.K), query.MinScore))
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if !s.decode(w, r, &query) {
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("context request", zap.String("query", utils.Truncate(query.Query, 80)), zap.Int("k", query.K))
	s.respondJSON(w, http.StatusOK, s.orch.Retrieve(r.Context(), query.Query, s.limitK(query.K), query.MinScore))
}

// limitK caps a requested k at server.max_k.
func (s *Server) limitK(k int) int {
	if s.config.MaxK > 0 && k > s.config.MaxK {
		return s.config.MaxK
	}
	return k
}

// handleReload rebuilds the index. The load is detached from the request context so a
// client disconnect cannot leave it half done; the previous index stays on failure.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		s.respondError(w, http.StatusNotImplemented, "reload not available")
		return
	}
	if err := s.reloader.Refresh(context.WithoutCancel(r.Context()), s.handle); err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.handle.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{"index": s.handle.Status()})
		return
	}
	s.respondJSON(w, http.StatusOK, s.status.Collect(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := "loading"
	if s.handle.IsReady() {
		state = "ok"
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": state})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
