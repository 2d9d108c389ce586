// Package kgraph builds and queries the knowledge graph over extracted
// entities. The builder accumulates co-occurrence and hierarchy relationships
// and then freezes into an immutable KnowledgeGraph that retrieval and the
// agents can read concurrently without locks.
package kgraph

import (
	"sort"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// Neighbor is one adjacent entity together with the weight of the connecting
// relationship. Parallel edges between the same pair are collapsed to the
// strongest one at build time.
type Neighbor struct {
	EntityID string
	Kind     types.RelationKind
	Weight   float64
}

// KnowledgeGraph is the frozen graph handed off by the builder. It is
// immutable: all accessors return copies or read-only views, and nothing
// mutates internal state after construction, so concurrent readers need no
// synchronization.
type KnowledgeGraph struct {
	entities  map[string]*types.Entity
	adjacency map[string][]Neighbor
	edges     []types.Relationship
	mentions  map[string][]string
	pagerank  map[string]float64
}

// Entity returns the entity with the given id, or nil.
func (g *KnowledgeGraph) Entity(id string) *types.Entity {
	ent, ok := g.entities[id]
	if !ok {
		return nil
	}
	return ent.Clone()
}

// HasEntity reports whether the entity exists in the graph.
func (g *KnowledgeGraph) HasEntity(id string) bool {
	_, ok := g.entities[id]
	return ok
}

// Entities returns all entities sorted by id.
func (g *KnowledgeGraph) Entities() []*types.Entity {
	out := make([]*types.Entity, 0, len(g.entities))
	for _, ent := range g.entities {
		out = append(out, ent.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Relationships returns every edge in the graph. The slice is a copy.
func (g *KnowledgeGraph) Relationships() []types.Relationship {
	out := make([]types.Relationship, len(g.edges))
	copy(out, g.edges)
	return out
}

// Neighbors returns the adjacent entities of id sorted by descending weight,
// ties broken by id. Unknown ids yield nil.
func (g *KnowledgeGraph) Neighbors(id string) []Neighbor {
	adj, ok := g.adjacency[id]
	if !ok {
		return nil
	}
	out := make([]Neighbor, len(adj))
	copy(out, adj)
	return out
}

// KHop returns every entity reachable from start within maxHops edges,
// excluding start itself, sorted by id. maxHops < 1 yields nil.
func (g *KnowledgeGraph) KHop(start string, maxHops int) []string {
	if maxHops < 1 {
		return nil
	}
	if _, ok := g.entities[start]; !ok {
		return nil
	}

	visited := map[string]struct{}{start: {}}
	frontier := []string{start}
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, nb := range g.adjacency[id] {
				if _, seen := visited[nb.EntityID]; seen {
					continue
				}
				visited[nb.EntityID] = struct{}{}
				next = append(next, nb.EntityID)
			}
		}
		frontier = next
	}

	delete(visited, start)
	out := make([]string, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EntitiesInChunk returns the entity ids mentioned in the given chunk.
func (g *KnowledgeGraph) EntitiesInChunk(chunkID string) []string {
	ids, ok := g.mentions[chunkID]
	if !ok {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Centrality returns the PageRank score of the entity, or 0 for unknown ids.
func (g *KnowledgeGraph) Centrality(id string) float64 {
	return g.pagerank[id]
}

// Order returns the number of entities in the graph.
func (g *KnowledgeGraph) Order() int { return len(g.entities) }

// Size returns the number of relationships in the graph.
func (g *KnowledgeGraph) Size() int { return len(g.edges) }

// weightBetween returns the edge weight between two entities, or 0 when no
// edge connects them.
func (g *KnowledgeGraph) weightBetween(a, b string) float64 {
	for _, nb := range g.adjacency[a] {
		if nb.EntityID == b {
			return nb.Weight
		}
	}
	return 0
}
