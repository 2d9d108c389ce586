// Package cluster groups embedded passages into themes. The k-means here is
// deliberately deterministic: centroids seed by fixed stride instead of
// random sampling, so the same passages always produce the same themes.
package cluster

import (
	"math"

	"github.com/soundprediction/controlgraph/pkg/utils"
)

const maxIterations = 100

// Result holds one clustering outcome.
type Result struct {
	// Assignments maps each input index to its cluster.
	Assignments []int
	// Centroids are the final cluster centers.
	Centroids [][]float32
	// K is the effective cluster count, which may be lower than requested
	// when fewer inputs exist.
	K int
}

// KMeans clusters vectors into at most k groups. k is clamped to the input
// size; an empty input yields an empty result. All vectors must share one
// dimensionality.
func KMeans(vectors [][]float32, k int) Result {
	n := len(vectors)
	if n == 0 || k <= 0 {
		return Result{}
	}
	if k > n {
		k = n
	}

	// Seed centroids by even stride over the input order.
	dim := len(vectors[0])
	centroids := make([][]float32, k)
	for c := 0; c < k; c++ {
		seed := vectors[c*n/k]
		centroids[c] = make([]float32, dim)
		copy(centroids[c], seed)
	}

	assignments := make([]int, n)
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(v, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids as member means. An emptied cluster keeps its
		// previous centroid rather than being reseeded, preserving
		// determinism.
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d := range v {
				sums[c][d] += float64(v[d])
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}

	return Result{Assignments: assignments, Centroids: centroids, K: k}
}

// nearestCentroid returns the index of the closest centroid by squared
// euclidean distance, ties broken by lower index.
func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		dist := 0.0
		for d := range v {
			diff := float64(v[d]) - float64(centroid[d])
			dist += diff * diff
		}
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best
}

// Representatives returns, per cluster, the input index most similar to the
// cluster centroid by cosine similarity, ties broken by lower index. Empty
// clusters yield -1.
func Representatives(vectors [][]float32, result Result) []int {
	reps := make([]int, result.K)
	bestScores := make([]float64, result.K)
	for c := range reps {
		reps[c] = -1
		bestScores[c] = math.Inf(-1)
	}
	for i, v := range vectors {
		c := result.Assignments[i]
		score := utils.CosineSimilarity(v, result.Centroids[c])
		if score > bestScores[c] {
			bestScores[c] = score
			reps[c] = i
		}
	}
	return reps
}
