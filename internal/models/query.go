package models

import "strings"

// SearchQuery is a text search request.
type SearchQuery struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
	// MinScore is optional; nil means the configured default threshold.
	MinScore *float64 `json:"min_score,omitempty"`
}

// Validate ensures the search query has valid fields.
// K is left untouched when unset; the engine applies its configured default.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.K < 0 {
		q.K = 0
	}
	return nil
}

// VectorQuery is a search request for callers that already hold a query vector.
type VectorQuery struct {
	Vector   []float32 `json:"vector"`
	K        int       `json:"k,omitempty"`
	MinScore *float64  `json:"min_score,omitempty"`
}

// Validate ensures the vector query carries a vector.
func (q *VectorQuery) Validate() error {
	if len(q.Vector) == 0 {
		return ErrEmptyQuery
	}
	if q.K < 0 {
		q.K = 0
	}
	return nil
}
