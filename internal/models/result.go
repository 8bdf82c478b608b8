package models

import "time"

// SearchHit is a single scored record. Rank is 1-based.
type SearchHit struct {
	Record *VectorRecord `json:"record"`
	Score  float64       `json:"score"`
	Rank   int           `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Hits            []SearchHit `json:"hits"`
	Total           int         `json:"total"`
	QueryTime       int64       `json:"query_time_ms"`
	Query           string      `json:"query,omitempty"`
	IndexGeneration string      `json:"index_generation,omitempty"`
}

// RetrievalContext is the assembled context for a downstream consumer.
// Context joins the hit texts in rank order; hits without context are left out of it.
type RetrievalContext struct {
	Query     string      `json:"query"`
	Hits      []SearchHit `json:"hits"`
	Context   string      `json:"context"`
	QueryTime int64       `json:"query_time_ms"`
}

// IndexStatus describes the published vector index.
type IndexStatus struct {
	Generation string    `json:"generation"`
	Size       int       `json:"size"`
	Dimension  int       `json:"dimension"`
	LoadedAt   time.Time `json:"loaded_at"`
	Ready      bool      `json:"ready"`
}
