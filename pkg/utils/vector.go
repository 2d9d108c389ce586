// Package utils provides small vector math helpers shared by the vector
// store and the retriever.
package utils

import (
	"container/heap"
	"math"
	"sort"
)

// CosineSimilarity returns the cosine similarity of two float32 vectors in
// [-1, 1]. Mismatched lengths, empty vectors, or a zero-magnitude operand
// yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ScoredItem pairs an item with a score for top-K selection.
type ScoredItem[T any] struct {
	Item  T
	Score float64
}

// Min-heap over scores: the weakest kept item sits at the root so a
// candidate only has to beat the root to enter the top K.
type minHeap[T any] []ScoredItem[T]

func (h minHeap[T]) Len() int           { return len(h) }
func (h minHeap[T]) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h minHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap[T]) Push(x any) {
	*h = append(*h, x.(ScoredItem[T]))
}

func (h *minHeap[T]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopKByScore selects the k highest-scoring items in O(n log k) and returns
// them sorted by descending score.
func TopKByScore[T any](items []ScoredItem[T], k int) []ScoredItem[T] {
	if k <= 0 || len(items) == 0 {
		return nil
	}

	if k >= len(items) {
		result := make([]ScoredItem[T], len(items))
		copy(result, items)
		sort.SliceStable(result, func(i, j int) bool { return result[i].Score > result[j].Score })
		return result
	}

	h := make(minHeap[T], 0, k)
	heap.Init(&h)
	for _, item := range items {
		if h.Len() < k {
			heap.Push(&h, item)
		} else if item.Score > h[0].Score {
			heap.Pop(&h)
			heap.Push(&h, item)
		}
	}

	result := make([]ScoredItem[T], h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ScoredItem[T])
	}
	return result
}
