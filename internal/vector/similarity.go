package vector

import (
	"fmt"
	"strings"

	"github.com/hyperjump/shiori/pkg/utils"
)

// ScoreMode selects the similarity function used for ranking.
type ScoreMode string

const (
	// ScoreDot ranks by raw inner product. Equal to cosine for unit-length vectors.
	ScoreDot ScoreMode = "dot"
	// ScoreCosine ranks by inner product divided by both norms.
	ScoreCosine ScoreMode = "cosine"
)

// ParseScoreMode parses a configured scoring mode.
func ParseScoreMode(s string) (ScoreMode, error) {
	switch ScoreMode(strings.ToLower(strings.TrimSpace(s))) {
	case ScoreDot:
		return ScoreDot, nil
	case ScoreCosine, "":
		return ScoreCosine, nil
	default:
		return "", fmt.Errorf("unknown score mode: %s (supported: dot, cosine)", s)
	}
}

// InnerProduct returns the inner product of two vectors, or 0 when their lengths differ.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths and zero-norm
// vectors score 0.
func Cosine(a, b []float32) float64 {
	return cosineWithNorms(a, utils.L2Norm(a), b, utils.L2Norm(b))
}

func cosineWithNorms(a []float32, na float64, b []float32, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	return InnerProduct(a, b) / (na * nb)
}

// Score computes the similarity of query against record i of idx.
// queryNorm must be utils.L2Norm(query); it is passed in so callers compute it once per search.
func Score(mode ScoreMode, idx *Index, i int, query []float32, queryNorm float64) float64 {
	emb := idx.records[i].Embedding
	if mode == ScoreDot {
		return InnerProduct(query, emb)
	}
	return cosineWithNorms(query, queryNorm, emb, idx.norms[i])
}
