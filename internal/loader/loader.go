// Package loader streams a persisted vector collection into an immutable vector index.
//
// The vector file is read in fixed-size chunks and never held in memory as a whole.
// Each accepted vector is paired with the metadata record at the same position; when
// that record has no text, the nearest record with text is used instead.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/metadata"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/source"
	"github.com/hyperjump/shiori/internal/vector"
	"go.uber.org/zap"
)

const (
	defaultChunkSize        = 64 * 1024
	defaultMaxFragmentBytes = 16 * 1024 * 1024
)

// Stats describes one load. Capped means fragments were left unread after the
// record cap was reached.
type Stats struct {
	Fragments       int           `json:"fragments"`
	Accepted        int           `json:"accepted"`
	Malformed       int           `json:"malformed"`
	Oversized       int           `json:"oversized"`
	Repaired        int           `json:"repaired"`
	NoContext       int           `json:"no_context"`
	Capped          bool          `json:"capped"`
	Truncated       bool          `json:"truncated"`
	MetadataRecords int           `json:"metadata_records"`
	MetadataError   string        `json:"metadata_error,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Loader builds vector indexes from the configured sources.
type Loader struct {
	opener           source.Opener
	vectorLocation   string
	metadataLocation string
	maxRecords       int
	chunkSize        int
	maxFragmentBytes int
	logger           *zap.Logger

	refreshMu sync.Mutex
	statsMu   sync.RWMutex
	lastStats *Stats
	lastErr   error
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for load summaries and warnings.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// New creates a loader for the sources in cfg.
func New(opener source.Opener, cfg *config.SourcesConfig, opts ...Option) *Loader {
	l := &Loader{
		opener:           opener,
		vectorLocation:   cfg.VectorPath,
		metadataLocation: cfg.MetadataPath,
		maxRecords:       cfg.MaxRecords,
		chunkSize:        cfg.ChunkSize,
		maxFragmentBytes: cfg.MaxFragmentBytes,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.chunkSize <= 0 {
		l.chunkSize = defaultChunkSize
	}
	if l.maxFragmentBytes <= 0 {
		l.maxFragmentBytes = defaultMaxFragmentBytes
	}
	return l
}

// fragment is the part of a persisted vector record the loader needs.
type fragment struct {
	Embedding []float32 `json:"embedding"`
}

// Load reads the vector collection at location and aligns it with meta.
// A nil meta behaves as an empty store. On an I/O failure the partially read records
// are discarded and the error wraps models.ErrSourceUnavailable.
func (l *Loader) Load(ctx context.Context, location string, meta *metadata.Store) (*vector.Index, Stats, error) {
	start := time.Now()
	var stats Stats
	if meta == nil {
		meta = metadata.Empty()
	}
	if l.maxRecords <= 0 {
		return nil, stats, fmt.Errorf("max records must be positive, got %d", l.maxRecords)
	}

	rc, err := l.opener.Open(ctx, location)
	if err != nil {
		return nil, stats, err
	}
	defer rc.Close()

	var (
		records   []*models.VectorRecord
		dimension int
	)
	emit := func(raw []byte) bool {
		if len(records) >= l.maxRecords {
			stats.Capped = true
			return false
		}
		stats.Fragments++
		var f fragment
		if err := json.Unmarshal(raw, &f); err != nil || len(f.Embedding) == 0 ||
			(dimension != 0 && len(f.Embedding) != dimension) {
			stats.Malformed++
			return true
		}
		if dimension == 0 {
			dimension = len(f.Embedding)
		}
		records = append(records, align(len(records), f.Embedding, meta, &stats))
		return true
	}

	scanner := newFragmentScanner(l.maxFragmentBytes)
	buf := make([]byte, l.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		n, rerr := rc.Read(buf)
		if n > 0 && !scanner.Feed(buf[:n], emit) {
			break
		}
		if errors.Is(rerr, io.EOF) {
			stats.Truncated = scanner.Pending()
			break
		}
		if rerr != nil {
			return nil, stats, models.SourceError("read vectors", location, rerr)
		}
	}

	stats.Oversized = scanner.oversized
	stats.Accepted = len(records)
	stats.MetadataRecords = meta.Len()
	stats.Duration = time.Since(start)
	return vector.NewIndex(records), stats, nil
}

// align builds the record for the n-th accepted vector.
func align(n int, embedding []float32, meta *metadata.Store, stats *Stats) *models.VectorRecord {
	rec := &models.VectorRecord{Position: n, Embedding: embedding, MetadataPosition: -1}
	m, pos, ok := meta.Resolve(n)
	if !ok {
		rec.Text = models.NoContextText
		rec.Repaired = true
		stats.NoContext++
		return rec
	}
	rec.Text = m.Text
	rec.Fields = m.Fields
	rec.MetadataPosition = pos
	if pos != n {
		rec.Repaired = true
		stats.Repaired++
	}
	return rec
}

// LoadSources loads the metadata store and then the vector collection.
// An unavailable metadata source is logged and replaced by an empty store;
// only a vector source failure is returned.
func (l *Loader) LoadSources(ctx context.Context, vectorLocation, metadataLocation string) (*vector.Index, Stats, error) {
	meta, metaErr := metadata.Load(ctx, l.opener, metadataLocation, l.logger)
	if metaErr != nil {
		l.logger.Warn("metadata unavailable, every vector will carry the no-context text",
			zap.String("location", metadataLocation),
			zap.Error(metaErr),
		)
	}
	idx, stats, err := l.Load(ctx, vectorLocation, meta)
	if metaErr != nil {
		stats.MetadataError = metaErr.Error()
	}
	return idx, stats, err
}

// Refresh loads the configured sources and publishes the result to h.
// On failure the previously published index is kept; when nothing has been published
// yet the empty index is published so readiness is still signalled.
func (l *Loader) Refresh(ctx context.Context, h *vector.Handle) error {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	idx, stats, err := l.LoadSources(ctx, l.vectorLocation, l.metadataLocation)
	l.record(&stats, err)
	if err != nil {
		l.logger.Error("vector load failed",
			zap.String("location", l.vectorLocation),
			zap.Bool("keeping_previous", h.IsReady()),
			zap.Error(err),
		)
		if !h.IsReady() {
			h.Publish(vector.Empty())
		}
		return err
	}
	h.Publish(idx)
	l.logger.Info("vector index published",
		zap.String("generation", idx.Generation()),
		zap.Int("records", stats.Accepted),
		zap.Int("dimension", idx.Dimension()),
		zap.Int("fragments", stats.Fragments),
		zap.Int("malformed", stats.Malformed),
		zap.Int("oversized", stats.Oversized),
		zap.Int("repaired", stats.Repaired),
		zap.Int("no_context", stats.NoContext),
		zap.Bool("capped", stats.Capped),
		zap.Duration("duration", stats.Duration),
	)
	return nil
}

func (l *Loader) record(stats *Stats, err error) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	l.lastStats = stats
	l.lastErr = err
}

// LastStats returns the stats and error of the most recent Refresh.
// Stats is nil before the first Refresh.
func (l *Loader) LastStats() (*Stats, error) {
	l.statsMu.RLock()
	defer l.statsMu.RUnlock()
	return l.lastStats, l.lastErr
}

// Locations returns the configured vector and metadata locations.
func (l *Loader) Locations() (vectorLocation, metadataLocation string) {
	return l.vectorLocation, l.metadataLocation
}
