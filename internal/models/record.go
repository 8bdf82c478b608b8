// Package models defines core data structures for metadata records, vector records, and search hits.
package models

// NoContextText is the text attached to a vector record when no metadata position carries text.
const NoContextText = "No context available."

// MetadataRecord is one line of the metadata source. Its identity is its position in the file.
type MetadataRecord struct {
	Text   string         `json:"text"`
	Fields map[string]any `json:"fields,omitempty"`
}

// HasText reports whether the record carries usable text.
func (r MetadataRecord) HasText() bool {
	return r.Text != ""
}

// VectorRecord is one accepted entry of the vector source, merged with its aligned metadata.
type VectorRecord struct {
	Position  int            `json:"position"`
	Embedding []float32      `json:"-"`
	Text      string         `json:"text"`
	Fields    map[string]any `json:"fields,omitempty"`
	// MetadataPosition is the metadata line the text came from, or -1 when none had text.
	MetadataPosition int  `json:"metadata_position"`
	Repaired         bool `json:"repaired,omitempty"`
}

// HasContext reports whether the record resolved to real text rather than the sentinel.
func (r *VectorRecord) HasContext() bool {
	return r.MetadataPosition >= 0
}
