package kgraph

import "math"

const (
	pagerankDamping    = 0.85
	pagerankIterations = 50
	pagerankTolerance  = 1e-6
)

// computePageRank runs weighted power iteration over the undirected graph.
// Rank flows along edges in proportion to their weight. Iteration stops when
// the L1 delta between successive rank vectors drops below the tolerance.
func computePageRank(g *KnowledgeGraph) map[string]float64 {
	n := len(g.entities)
	if n == 0 {
		return map[string]float64{}
	}

	rank := make(map[string]float64, n)
	outWeight := make(map[string]float64, n)
	for id := range g.entities {
		rank[id] = 1.0 / float64(n)
		for _, nb := range g.adjacency[id] {
			outWeight[id] += nb.Weight
		}
	}

	base := (1 - pagerankDamping) / float64(n)
	for iter := 0; iter < pagerankIterations; iter++ {
		next := make(map[string]float64, n)

		// Dangling mass is redistributed uniformly so the vector keeps
		// summing to 1.
		dangling := 0.0
		for id := range g.entities {
			if outWeight[id] == 0 {
				dangling += rank[id]
			}
		}
		share := pagerankDamping * dangling / float64(n)

		for id := range g.entities {
			next[id] = base + share
		}
		for id := range g.entities {
			total := outWeight[id]
			if total == 0 {
				continue
			}
			contribution := pagerankDamping * rank[id] / total
			for _, nb := range g.adjacency[id] {
				next[nb.EntityID] += contribution * nb.Weight
			}
		}

		delta := 0.0
		for id := range g.entities {
			delta += math.Abs(next[id] - rank[id])
		}
		rank = next
		if delta < pagerankTolerance {
			break
		}
	}
	return rank
}
