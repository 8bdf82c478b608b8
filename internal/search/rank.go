package search

import (
	"container/heap"
	"slices"
)

// candidate is a scored index position.
type candidate struct {
	pos   int
	score float64
}

// better orders by score descending, then by position ascending.
// Positions are unique, so this is a total order and every ranking is deterministic.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.pos < b.pos
}

func compareCandidates(a, b candidate) int {
	switch {
	case better(a, b):
		return -1
	case better(b, a):
		return 1
	default:
		return 0
	}
}

// worstFirst is a heap whose root is the weakest kept candidate.
type worstFirst []candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *worstFirst) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// topK returns the k best positions of scores in rank order. The result equals the first
// k entries of a stable descending sort, but only a k-sized heap is kept when k is small.
func topK(scores []float64, k int) []candidate {
	n := len(scores)
	k = min(k, n)
	if k <= 0 {
		return nil
	}
	if k*2 >= n {
		all := make([]candidate, n)
		for i, s := range scores {
			all[i] = candidate{pos: i, score: s}
		}
		slices.SortFunc(all, compareCandidates)
		return all[:k]
	}
	h := make(worstFirst, 0, k)
	for i, s := range scores {
		c := candidate{pos: i, score: s}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if better(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	out := []candidate(h)
	slices.SortFunc(out, compareCandidates)
	return out
}
