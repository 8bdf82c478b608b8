// Package metadata loads the line-oriented record file that carries the text for each vector.
//
// Records are identified only by their line position, so every line keeps its slot:
// a malformed line becomes an empty-text record instead of being dropped.
package metadata

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/source"
	"go.uber.org/zap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store is an immutable, position-indexed sequence of metadata records.
type Store struct {
	records   []models.MetadataRecord
	nonEmpty  *roaring.Bitmap
	malformed int
}

// NewStore builds a store from records already in memory.
func NewStore(records []models.MetadataRecord) *Store {
	s := &Store{records: records, nonEmpty: roaring.New()}
	for i, r := range records {
		if r.HasText() {
			s.nonEmpty.Add(uint32(i))
		}
	}
	return s
}

// Empty returns a store with no records.
func Empty() *Store {
	return NewStore(nil)
}

// Load reads the metadata file at location. On any open or read failure it returns an
// empty, usable store together with an error matching models.ErrSourceUnavailable.
func Load(ctx context.Context, opener source.Opener, location string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rc, err := opener.Open(ctx, location)
	if err != nil {
		return Empty(), err
	}
	defer rc.Close()

	s, err := Parse(rc)
	if err != nil {
		return Empty(), models.SourceError("read metadata", location, err)
	}
	logger.Info("metadata loaded",
		zap.String("location", location),
		zap.Int("records", s.Len()),
		zap.Int("with_text", s.TextCount()),
		zap.Int("malformed", s.malformed),
	)
	return s, nil
}

// Parse decodes one JSON object per line from r.
// Interior blank lines keep their position as empty records; trailing blank lines do not.
func Parse(r io.Reader) (*Store, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var (
		records   []models.MetadataRecord
		pending   int
		malformed int
		first     = true
	)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if first {
				line = bytes.TrimPrefix(line, utf8BOM)
				first = false
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				pending++
			} else {
				for ; pending > 0; pending-- {
					records = append(records, models.MetadataRecord{})
				}
				rec, ok := decodeLine(line)
				if !ok {
					malformed++
				}
				records = append(records, rec)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	s := NewStore(records)
	s.malformed = malformed
	return s, nil
}

// decodeLine returns an empty record and false when the line is not a JSON object
// or its text field is not a string.
func decodeLine(line []byte) (models.MetadataRecord, bool) {
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil || fields == nil {
		return models.MetadataRecord{}, false
	}
	var rec models.MetadataRecord
	if raw, ok := fields["text"]; ok {
		text, isString := raw.(string)
		if !isString && raw != nil {
			return models.MetadataRecord{}, false
		}
		rec.Text = text
		delete(fields, "text")
	}
	if len(fields) > 0 {
		rec.Fields = fields
	}
	return rec, true
}

// Len returns the number of positions, including empty ones.
func (s *Store) Len() int {
	return len(s.records)
}

// TextCount returns the number of positions with non-empty text.
func (s *Store) TextCount() int {
	return int(s.nonEmpty.GetCardinality())
}

// Malformed returns the number of lines that failed to decode.
func (s *Store) Malformed() int {
	return s.malformed
}

// At returns the record at position i, or false when i is out of range.
func (s *Store) At(i int) (models.MetadataRecord, bool) {
	if i < 0 || i >= len(s.records) {
		return models.MetadataRecord{}, false
	}
	return s.records[i], true
}

// Resolve returns the record with non-empty text nearest to position n, searching
// n itself and then forward first, backward second. The returned position is -1 and
// ok is false when no position carries text.
func (s *Store) Resolve(n int) (rec models.MetadataRecord, pos int, ok bool) {
	if n < 0 || s.nonEmpty.IsEmpty() {
		return models.MetadataRecord{}, -1, false
	}
	if n <= math.MaxUint32 {
		it := s.nonEmpty.Iterator()
		it.AdvanceIfNeeded(uint32(n))
		if it.HasNext() {
			p := int(it.Next())
			return s.records[p], p, true
		}
	}
	// Nothing at or after n, so the nearest text before n is the last one in the file.
	p := int(s.nonEmpty.Maximum())
	return s.records[p], p, true
}
