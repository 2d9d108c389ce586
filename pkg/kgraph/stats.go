package kgraph

import (
	"sort"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// RankedEntity pairs an entity id with its centrality score.
type RankedEntity struct {
	EntityID   string  `json:"entity_id"`
	Name       string  `json:"name"`
	Centrality float64 `json:"centrality"`
}

// Stats summarizes the graph for the API and reports.
type Stats struct {
	Entities      int            `json:"entities"`
	Relationships int            `json:"relationships"`
	ByType        map[string]int `json:"by_type"`
	ByKind        map[string]int `json:"by_kind"`
	AvgDegree     float64        `json:"avg_degree"`
	TopCentral    []RankedEntity `json:"top_central"`
}

// Stats computes summary statistics, including the topN most central
// entities by PageRank.
func (g *KnowledgeGraph) Stats(topN int) Stats {
	s := Stats{
		Entities:      g.Order(),
		Relationships: g.Size(),
		ByType:        make(map[string]int),
		ByKind:        make(map[string]int),
	}
	for _, ent := range g.entities {
		s.ByType[string(ent.Type)]++
	}
	for _, e := range g.edges {
		s.ByKind[string(e.Kind)]++
	}
	if s.Entities > 0 {
		s.AvgDegree = 2 * float64(s.Relationships) / float64(s.Entities)
	}

	ranked := make([]RankedEntity, 0, len(g.entities))
	for id, ent := range g.entities {
		ranked = append(ranked, RankedEntity{
			EntityID:   id,
			Name:       ent.Name,
			Centrality: g.pagerank[id],
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Centrality != ranked[j].Centrality {
			return ranked[i].Centrality > ranked[j].Centrality
		}
		return ranked[i].EntityID < ranked[j].EntityID
	})
	if topN > 0 && topN < len(ranked) {
		ranked = ranked[:topN]
	}
	s.TopCentral = ranked
	return s
}

// TopCentral returns the topN entities by centrality, most central first.
func (g *KnowledgeGraph) TopCentral(topN int) []*types.Entity {
	ranked := g.Stats(topN).TopCentral
	out := make([]*types.Entity, 0, len(ranked))
	for _, r := range ranked {
		if ent := g.Entity(r.EntityID); ent != nil {
			out = append(out, ent)
		}
	}
	return out
}
