package vector

import (
	"sync"
	"sync/atomic"

	"github.com/hyperjump/shiori/internal/models"
)

// Handle is the single publication point for the current index.
// Readers take a snapshot with Load and keep using it for the whole query,
// so a concurrent Publish never changes results mid-search.
type Handle struct {
	current atomic.Pointer[Index]
	ready   chan struct{}
	once    sync.Once
}

// NewHandle returns a handle holding the empty index.
func NewHandle() *Handle {
	h := &Handle{ready: make(chan struct{})}
	h.current.Store(Empty())
	return h
}

// Load returns the current index. Never nil.
func (h *Handle) Load() *Index {
	return h.current.Load()
}

// Publish replaces the current index. A nil idx publishes the empty index.
func (h *Handle) Publish(idx *Index) {
	if idx == nil {
		idx = Empty()
	}
	h.current.Store(idx)
	h.once.Do(func() { close(h.ready) })
}

// Ready is closed after the first Publish, whether or not that load succeeded.
func (h *Handle) Ready() <-chan struct{} {
	return h.ready
}

// IsReady reports whether a load has been published.
func (h *Handle) IsReady() bool {
	select {
	case <-h.ready:
		return true
	default:
		return false
	}
}

// Status summarizes the current index.
func (h *Handle) Status() models.IndexStatus {
	idx := h.Load()
	return models.IndexStatus{
		Generation: idx.Generation(),
		Size:       idx.Len(),
		Dimension:  idx.Dimension(),
		LoadedAt:   idx.LoadedAt(),
		Ready:      h.IsReady(),
	}
}
