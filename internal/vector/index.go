// Package vector holds the immutable in-memory vector index and the handle it is published through.
package vector

import (
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

// Index is an ordered, read-only collection of vector records sharing one dimension.
// Record i has Position i. An Index is never mutated after NewIndex returns.
type Index struct {
	records    []*models.VectorRecord
	norms      []float64
	dimension  int
	generation string
	loadedAt   time.Time
}

// NewIndex builds an index over records. The dimension is taken from the first record;
// callers are expected to have dropped records of any other length.
func NewIndex(records []*models.VectorRecord) *Index {
	idx := &Index{
		records:    records,
		norms:      make([]float64, len(records)),
		generation: uuid.New().String(),
		loadedAt:   time.Now(),
	}
	if len(records) > 0 {
		idx.dimension = len(records[0].Embedding)
	}
	for i, r := range records {
		idx.norms[i] = utils.L2Norm(r.Embedding)
	}
	return idx
}

// Empty returns an index with no records. It is what queries see before the first load.
func Empty() *Index {
	return &Index{}
}

// Len returns the number of records.
func (idx *Index) Len() int {
	return len(idx.records)
}

// At returns record i. It panics when i is out of range, like a slice index.
func (idx *Index) At(i int) *models.VectorRecord {
	return idx.records[i]
}

// Records returns the records in position order. The slice must not be modified.
func (idx *Index) Records() []*models.VectorRecord {
	return idx.records
}

// Dimension returns the shared embedding length, or 0 for an empty index.
func (idx *Index) Dimension() int {
	return idx.dimension
}

// Generation identifies one load; every published index gets a new one.
func (idx *Index) Generation() string {
	return idx.generation
}

// LoadedAt returns when the index was built. Zero for Empty().
func (idx *Index) LoadedAt() time.Time {
	return idx.loadedAt
}
