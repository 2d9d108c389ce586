package kgraph

import (
	"log/slog"
	"sort"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// hierarchyWeight is the fixed strength of a control-to-family edge. Family
// membership is structural, not evidence-based, so it does not scale with
// mention counts.
const hierarchyWeight = 1.0

// Builder accumulates entities and mention maps and freezes them into a
// KnowledgeGraph. A builder is single-use: after Build it must not be touched
// again.
type Builder struct {
	entities map[string]*types.Entity
	mentions map[string][]string
	ordinals map[string]int
	window   int
	logger   *slog.Logger
	built    bool
}

// NewBuilder creates an empty graph builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		entities: make(map[string]*types.Entity),
		mentions: make(map[string][]string),
		ordinals: make(map[string]int),
		logger:   logger,
	}
}

// SetWindow widens co-occurrence beyond single chunks: entities in chunks
// whose ordinals are at most n apart also co-occur. Zero (the default)
// restricts co-occurrence to shared chunks. Requires chunk ordinals.
func (b *Builder) SetWindow(n int) {
	if n > 0 {
		b.window = n
	}
}

// AddChunkOrdinals records the corpus position of each chunk, used by the
// adjacent-chunk window.
func (b *Builder) AddChunkOrdinals(ordinals map[string]int) {
	for chunkID, ord := range ordinals {
		b.ordinals[chunkID] = ord
	}
}

// AddEntities merges extracted entities into the builder registry. Entities
// sharing an id are merged; the operation is idempotent over identical input.
func (b *Builder) AddEntities(entities []*types.Entity) {
	for _, ent := range entities {
		if ent == nil || ent.ID == "" {
			continue
		}
		if existing, ok := b.entities[ent.ID]; ok {
			existing.Merge(ent)
		} else {
			b.entities[ent.ID] = ent.Clone()
		}
	}
}

// AddMentions records which entities each chunk mentions. Mention lists for a
// chunk id already present are replaced, keeping re-ingestion idempotent.
func (b *Builder) AddMentions(mentions map[string][]string) {
	for chunkID, ids := range mentions {
		dedup := make([]string, 0, len(ids))
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			dedup = append(dedup, id)
		}
		b.mentions[chunkID] = dedup
	}
}

// Build derives the relationship set and freezes the graph. Co-occurrence
// edges connect entity pairs that share at least one chunk, weighted by the
// number of shared chunks. Hierarchy edges connect control entities to a
// synthetic family node with a fixed weight. The returned graph is immutable;
// the builder must not be reused.
func (b *Builder) Build() (*KnowledgeGraph, error) {
	if b.built {
		return nil, types.NewError(types.KindConfiguration, "graph builder already consumed")
	}
	b.built = true

	entities := make(map[string]*types.Entity, len(b.entities))
	for id, ent := range b.entities {
		entities[id] = ent.Clone()
	}

	// Co-occurrence: count shared chunks per unordered pair.
	pairWeights := make(map[[2]string]float64)
	chunkIDs := make([]string, 0, len(b.mentions))
	for chunkID := range b.mentions {
		chunkIDs = append(chunkIDs, chunkID)
	}
	sort.Strings(chunkIDs)
	for _, chunkID := range chunkIDs {
		ids := b.mentions[chunkID]
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, c := ids[i], ids[j]
				if _, ok := entities[a]; !ok {
					continue
				}
				if _, ok := entities[c]; !ok {
					continue
				}
				if c < a {
					a, c = c, a
				}
				pairWeights[[2]string{a, c}]++
			}
		}
	}

	// Adjacent-chunk window: entities in nearby chunks of the same corpus
	// also co-occur, one count per qualifying chunk pair.
	if b.window > 0 && len(b.ordinals) > 0 {
		ordered := make([]string, 0, len(chunkIDs))
		for _, chunkID := range chunkIDs {
			if _, ok := b.ordinals[chunkID]; ok {
				ordered = append(ordered, chunkID)
			}
		}
		sort.Slice(ordered, func(i, j int) bool {
			return b.ordinals[ordered[i]] < b.ordinals[ordered[j]]
		})
		for i := 0; i < len(ordered); i++ {
			for j := i + 1; j < len(ordered); j++ {
				dist := b.ordinals[ordered[j]] - b.ordinals[ordered[i]]
				if dist > b.window {
					break
				}
				if dist == 0 {
					continue
				}
				for _, a := range b.mentions[ordered[i]] {
					if _, ok := entities[a]; !ok {
						continue
					}
					for _, c := range b.mentions[ordered[j]] {
						if _, ok := entities[c]; !ok {
							continue
						}
						if a == c {
							continue
						}
						x, y := a, c
						if y < x {
							x, y = y, x
						}
						pairWeights[[2]string{x, y}]++
					}
				}
			}
		}
	}

	var edges []types.Relationship
	for pair, weight := range pairWeights {
		edges = append(edges, types.Relationship{
			Source: pair[0],
			Target: pair[1],
			Kind:   types.RelationCooccurrence,
			Weight: weight,
		})
	}

	// Hierarchy: every control hangs off a synthetic family node so that
	// siblings in a family stay reachable even without shared chunks.
	families := make(map[string][]string)
	for id, ent := range entities {
		if fam := ent.Family(); fam != "" {
			families[fam] = append(families[fam], id)
		}
	}
	famNames := make([]string, 0, len(families))
	for fam := range families {
		famNames = append(famNames, fam)
	}
	sort.Strings(famNames)
	for _, fam := range famNames {
		members := families[fam]
		if len(members) == 0 {
			continue
		}
		famID := "FAMILY-" + fam
		if _, exists := entities[famID]; !exists {
			entities[famID] = &types.Entity{
				ID:   famID,
				Type: types.EntityConcept,
				Name: "Control Family " + fam,
				Attributes: map[string]string{
					"family": fam,
				},
			}
		}
		sort.Strings(members)
		for _, member := range members {
			edges = append(edges, types.Relationship{
				Source: famID,
				Target: member,
				Kind:   types.RelationHierarchy,
				Weight: hierarchyWeight,
			})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Kind < edges[j].Kind
	})

	adjacency := buildAdjacency(edges)

	mentions := make(map[string][]string, len(b.mentions))
	for chunkID, ids := range b.mentions {
		cp := make([]string, len(ids))
		copy(cp, ids)
		mentions[chunkID] = cp
	}

	g := &KnowledgeGraph{
		entities:  entities,
		adjacency: adjacency,
		edges:     edges,
		mentions:  mentions,
	}
	g.pagerank = computePageRank(g)

	b.logger.Info("knowledge graph built",
		"entities", g.Order(),
		"relationships", g.Size())

	return g, nil
}

// buildAdjacency converts the edge list to a per-node neighbor list. Edges
// are undirected; parallel edges between a pair collapse to the strongest.
func buildAdjacency(edges []types.Relationship) map[string][]Neighbor {
	best := make(map[string]map[string]Neighbor)
	add := func(from, to string, kind types.RelationKind, weight float64) {
		m, ok := best[from]
		if !ok {
			m = make(map[string]Neighbor)
			best[from] = m
		}
		if cur, ok := m[to]; !ok || weight > cur.Weight {
			m[to] = Neighbor{EntityID: to, Kind: kind, Weight: weight}
		}
	}
	for _, e := range edges {
		add(e.Source, e.Target, e.Kind, e.Weight)
		add(e.Target, e.Source, e.Kind, e.Weight)
	}

	adjacency := make(map[string][]Neighbor, len(best))
	for id, m := range best {
		nbs := make([]Neighbor, 0, len(m))
		for _, nb := range m {
			nbs = append(nbs, nb)
		}
		sort.Slice(nbs, func(i, j int) bool {
			if nbs[i].Weight != nbs[j].Weight {
				return nbs[i].Weight > nbs[j].Weight
			}
			return nbs[i].EntityID < nbs[j].EntityID
		})
		adjacency[id] = nbs
	}
	return adjacency
}
