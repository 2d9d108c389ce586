package kgraph

import (
	"container/heap"
	"math"
)

// Path is a shortest path between two entities. Distance is the sum of
// inverse edge weights along the path, so strongly connected pairs are
// closer than weakly connected ones.
type Path struct {
	Entities []string `json:"entities"`
	Distance float64  `json:"distance"`
}

type pathItem struct {
	id   string
	dist float64
}

type pathQueue []pathItem

func (q pathQueue) Len() int            { return len(q) }
func (q pathQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(pathItem)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// ShortestPath runs Dijkstra from source to target over inverse edge
// weights (an edge of weight w costs 1/w to traverse). Returns nil when
// either endpoint is unknown or no path exists. Source equal to target
// yields a single-node path of distance 0.
func (g *KnowledgeGraph) ShortestPath(source, target string) *Path {
	if !g.HasEntity(source) || !g.HasEntity(target) {
		return nil
	}
	if source == target {
		return &Path{Entities: []string{source}}
	}

	dist := map[string]float64{source: 0}
	prev := make(map[string]string)
	done := make(map[string]struct{})

	q := &pathQueue{{id: source}}
	heap.Init(q)

	for q.Len() > 0 {
		item := heap.Pop(q).(pathItem)
		if _, settled := done[item.id]; settled {
			continue
		}
		done[item.id] = struct{}{}
		if item.id == target {
			break
		}

		for _, nb := range g.adjacency[item.id] {
			if nb.Weight <= 0 {
				continue
			}
			alt := item.dist + 1/nb.Weight
			if cur, seen := dist[nb.EntityID]; !seen || alt < cur {
				dist[nb.EntityID] = alt
				prev[nb.EntityID] = item.id
				heap.Push(q, pathItem{id: nb.EntityID, dist: alt})
			}
		}
	}

	total, reached := dist[target]
	if !reached {
		return nil
	}
	if _, settled := done[target]; !settled {
		return nil
	}

	var reversed []string
	for at := target; ; {
		reversed = append(reversed, at)
		if at == source {
			break
		}
		at = prev[at]
	}
	entities := make([]string, len(reversed))
	for i, id := range reversed {
		entities[len(reversed)-1-i] = id
	}
	return &Path{Entities: entities, Distance: total}
}

// Proximity maps graph distance into (0, 1]: adjacent heavy edges approach 1,
// unreachable pairs score 0.
func (g *KnowledgeGraph) Proximity(source, target string) float64 {
	if source == target && g.HasEntity(source) {
		return 1
	}
	p := g.ShortestPath(source, target)
	if p == nil {
		return 0
	}
	if math.IsInf(p.Distance, 1) {
		return 0
	}
	return 1 / (1 + p.Distance)
}
