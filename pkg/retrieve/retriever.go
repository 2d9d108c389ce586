// Package retrieve implements graph-enhanced retrieval: vector similarity
// blended with knowledge-graph proximity. Alpha controls the blend; 1 is
// pure vector search, 0 is pure graph traversal, and ties are always broken
// by vector similarity so results stay stable as alpha moves.
package retrieve

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/controlgraph/pkg/embedder"
	"github.com/soundprediction/controlgraph/pkg/extract"
	"github.com/soundprediction/controlgraph/pkg/kgraph"
	"github.com/soundprediction/controlgraph/pkg/types"
	"github.com/soundprediction/controlgraph/pkg/utils"
	"github.com/soundprediction/controlgraph/pkg/vectorstore"
)

const (
	// DefaultAlpha favors vector similarity while letting graph structure
	// reorder near-ties.
	DefaultAlpha = 0.7
	// candidateMultiplier widens the vector candidate pool before blending
	// so graph-strong passages outside the raw top K can surface.
	candidateMultiplier = 3
	// expansionHops bounds graph expansion around query entities.
	expansionHops = 2
)

// Options tunes one retrieval call.
type Options struct {
	TopK  int
	Alpha float64
}

// Result is a retrieval outcome with its graph context.
type Result struct {
	Passages      []*types.ScoredPassage `json:"passages"`
	QueryEntities []string               `json:"query_entities"`
	Paths         []*kgraph.Path         `json:"paths,omitempty"`
}

// Retriever blends vector search over the passage store with proximity in
// the knowledge graph.
type Retriever struct {
	store     vectorstore.Store
	embed     embedder.Client
	graph     *kgraph.KnowledgeGraph
	extractor *extract.Extractor
	logger    *slog.Logger
}

// New creates a retriever. The graph may be nil, in which case retrieval
// degrades to pure vector search regardless of alpha.
func New(store vectorstore.Store, embed embedder.Client, graph *kgraph.KnowledgeGraph, extractor *extract.Extractor, logger *slog.Logger) *Retriever {
	if extractor == nil {
		extractor = extract.NewExtractor(nil, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, embed: embed, graph: graph, extractor: extractor, logger: logger}
}

// Query runs one retrieval. Alpha outside [0, 1] is rejected; topK must be
// positive.
func (r *Retriever) Query(ctx context.Context, query string, opts Options) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.WrapError(types.KindRetrieval, types.ErrEmptyQuery, "query text required")
	}
	if opts.TopK <= 0 {
		return nil, types.WrapError(types.KindRetrieval, types.ErrInvalidTopK, "topK %d", opts.TopK)
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, types.WrapError(types.KindRetrieval, types.ErrInvalidAlpha, "alpha %v", opts.Alpha)
	}

	queryVector, err := r.embed.EmbedSingle(ctx, query)
	if err != nil {
		return nil, types.WrapError(types.KindRetrieval, err, "failed to embed query")
	}

	candidates, err := r.store.Search(ctx, queryVector, opts.TopK*candidateMultiplier)
	if err != nil {
		return nil, err
	}

	queryEntities := r.extractQueryEntities(query)

	// Graph expansion pulls in passages that mention entities near the
	// query entities even when their raw vector score missed the pool.
	if r.graph != nil && opts.Alpha < 1 && len(queryEntities) > 0 {
		expanded, err := r.expand(ctx, queryEntities, candidates, queryVector)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, expanded...)
	}

	r.score(candidates, queryEntities, opts.Alpha)
	sortByBlendedScore(candidates)
	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}

	result := &Result{
		Passages:      candidates,
		QueryEntities: queryEntities,
	}
	if r.graph != nil {
		result.Paths = r.connectingPaths(queryEntities)
	}

	r.logger.Debug("retrieval complete",
		"query_entities", len(queryEntities),
		"results", len(candidates),
		"alpha", opts.Alpha)

	return result, nil
}

// extractQueryEntities runs the recognizer table over the query text and
// keeps entities present in the graph (all of them when no graph is set).
func (r *Retriever) extractQueryEntities(query string) []string {
	cands, err := r.extractor.ExtractChunk(&types.Chunk{ID: "query", Text: query, Source: "query"})
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(cands))
	var out []string
	for _, c := range cands {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		if r.graph != nil && !r.graph.HasEntity(c.ID) {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c.ID)
	}
	sort.Strings(out)
	return out
}

// expand walks up to expansionHops from each query entity and fetches the
// passages those entities appear in, skipping ones already in the pool.
func (r *Retriever) expand(ctx context.Context, queryEntities []string, pool []*types.ScoredPassage, queryVector []float32) ([]*types.ScoredPassage, error) {
	inPool := make(map[string]struct{}, len(pool))
	for _, p := range pool {
		inPool[p.ID] = struct{}{}
	}

	type viaInfo struct {
		via     map[string]struct{}
		matched string
	}
	wanted := make(map[string]*viaInfo)
	note := func(chunkID, via string) {
		if _, dup := inPool[chunkID]; dup {
			return
		}
		info, ok := wanted[chunkID]
		if !ok {
			info = &viaInfo{via: make(map[string]struct{}), matched: via}
			wanted[chunkID] = info
		}
		info.via[via] = struct{}{}
	}

	for _, qe := range queryEntities {
		if ent := r.graph.Entity(qe); ent != nil {
			for _, chunkID := range ent.Chunks {
				note(chunkID, qe)
			}
		}
		for _, nb := range r.graph.KHop(qe, expansionHops) {
			ent := r.graph.Entity(nb)
			if ent == nil {
				continue
			}
			for _, chunkID := range ent.Chunks {
				note(chunkID, nb)
			}
		}
	}

	ids := make([]string, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*types.ScoredPassage
	for _, id := range ids {
		passage, err := r.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if passage == nil {
			continue
		}
		info := wanted[id]
		via := make([]string, 0, len(info.via))
		for v := range info.via {
			via = append(via, v)
		}
		sort.Strings(via)
		sp := &types.ScoredPassage{
			Passage:       *passage,
			FromGraph:     true,
			ViaEntities:   via,
			MatchedEntity: info.matched,
		}
		sp.VectorScore = utils.CosineSimilarity(queryVector, passage.Embedding)
		out = append(out, sp)
	}
	return out, nil
}

// score assigns the blended score to every candidate. Graph proximity for a
// passage is the best proximity between any of its entities and any query
// entity; passages with no graph signal score 0 on the graph axis.
func (r *Retriever) score(candidates []*types.ScoredPassage, queryEntities []string, alpha float64) {
	for _, c := range candidates {
		graphScore := 0.0
		if r.graph != nil && len(queryEntities) > 0 {
			for _, pe := range r.graph.EntitiesInChunk(c.ID) {
				for _, qe := range queryEntities {
					if prox := r.graph.Proximity(qe, pe); prox > graphScore {
						graphScore = prox
					}
				}
			}
		}
		c.GraphScore = graphScore
		c.Score = alpha*c.VectorScore + (1-alpha)*graphScore
	}
}

// connectingPaths returns the shortest path between each pair of query
// entities, ordered by the entity pair.
func (r *Retriever) connectingPaths(queryEntities []string) []*kgraph.Path {
	var paths []*kgraph.Path
	for i := 0; i < len(queryEntities); i++ {
		for j := i + 1; j < len(queryEntities); j++ {
			if p := r.graph.ShortestPath(queryEntities[i], queryEntities[j]); p != nil {
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// sortByBlendedScore orders by blended score, ties by vector similarity,
// then by id for full determinism.
func sortByBlendedScore(passages []*types.ScoredPassage) {
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		if passages[i].VectorScore != passages[j].VectorScore {
			return passages[i].VectorScore > passages[j].VectorScore
		}
		return passages[i].ID < passages[j].ID
	})
}
