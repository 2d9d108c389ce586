package kgraph

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/soundprediction/controlgraph/pkg/types"
)

func control(id string, freq int, chunks ...string) *types.Entity {
	return &types.Entity{ID: id, Type: types.EntityControl, Name: "Control " + id, Frequency: freq, Chunks: chunks}
}

func concept(id string, freq int, chunks ...string) *types.Entity {
	return &types.Entity{ID: id, Type: types.EntityConcept, Name: id, Frequency: freq, Chunks: chunks}
}

func buildTestGraph(t *testing.T, entities []*types.Entity, mentions map[string][]string) *KnowledgeGraph {
	t.Helper()
	b := NewBuilder(nil)
	b.AddEntities(entities)
	b.AddMentions(mentions)
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return g
}

func TestBuilderCooccurrenceWeights(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t,
		[]*types.Entity{concept("a", 3), concept("b", 3), concept("c", 1)},
		map[string][]string{
			"c1": {"a", "b"},
			"c2": {"a", "b"},
			"c3": {"a", "b"},
			"c4": {"b", "c"},
		})

	if w := g.weightBetween("a", "b"); w != 3 {
		t.Errorf("expected a-b weight 3, got %v", w)
	}
	if w := g.weightBetween("b", "c"); w != 1 {
		t.Errorf("expected b-c weight 1, got %v", w)
	}
	if w := g.weightBetween("a", "c"); w != 0 {
		t.Errorf("expected no a-c edge, got weight %v", w)
	}
}

func TestBuilderAdjacentChunkWindow(t *testing.T) {
	t.Parallel()

	entities := []*types.Entity{concept("a", 1), concept("b", 1), concept("c", 1)}
	mentions := map[string][]string{
		"c1": {"a"},
		"c2": {"b"},
		"c3": {"c"},
	}
	ordinals := map[string]int{"c1": 0, "c2": 1, "c3": 2}

	b := NewBuilder(nil)
	b.AddEntities(entities)
	b.AddMentions(mentions)
	b.AddChunkOrdinals(ordinals)
	b.SetWindow(1)
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if w := g.weightBetween("a", "b"); w != 1 {
		t.Errorf("adjacent chunks must co-occur with weight 1, got %v", w)
	}
	if w := g.weightBetween("b", "c"); w != 1 {
		t.Errorf("adjacent chunks must co-occur with weight 1, got %v", w)
	}
	if w := g.weightBetween("a", "c"); w != 0 {
		t.Errorf("chunks beyond the window must not co-occur, got %v", w)
	}
}

func TestBuilderHierarchyEdges(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t,
		[]*types.Entity{control("AC-2", 1, "c1"), control("AC-6", 1, "c2"), concept("mfa", 1, "c1")},
		map[string][]string{"c1": {"AC-2", "mfa"}, "c2": {"AC-6"}})

	if !g.HasEntity("FAMILY-AC") {
		t.Fatal("expected synthetic FAMILY-AC node")
	}
	if w := g.weightBetween("FAMILY-AC", "AC-2"); w != hierarchyWeight {
		t.Errorf("expected hierarchy weight %v, got %v", hierarchyWeight, w)
	}
	// Siblings without shared chunks are reachable through the family node.
	hop2 := g.KHop("AC-2", 2)
	found := false
	for _, id := range hop2 {
		if id == "AC-6" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected AC-6 within 2 hops of AC-2 via family node, got %v", hop2)
	}
	// Concepts never attach to family nodes.
	if w := g.weightBetween("FAMILY-AC", "mfa"); w != 0 {
		t.Errorf("concept must not get hierarchy edge, got weight %v", w)
	}
}

func TestBuilderIdempotent(t *testing.T) {
	t.Parallel()

	entities := []*types.Entity{concept("a", 1, "c1"), concept("b", 1, "c1")}
	mentions := map[string][]string{"c1": {"a", "b"}}

	b := NewBuilder(nil)
	b.AddEntities(entities)
	b.AddMentions(mentions)
	// Re-adding the same mentions replaces, not doubles.
	b.AddMentions(mentions)
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if w := g.weightBetween("a", "b"); w != 1 {
		t.Errorf("re-ingestion must not inflate weights, got %v", w)
	}
	if _, err := b.Build(); err == nil {
		t.Error("second Build on a consumed builder must fail")
	}
}

func TestShortestPathPrefersStrongEdges(t *testing.T) {
	t.Parallel()

	// A-B share 3 chunks, B-C share 1: path A->C goes through B with
	// distance 1/3 + 1/1.
	g := buildTestGraph(t,
		[]*types.Entity{concept("a", 3), concept("b", 4), concept("c", 1)},
		map[string][]string{
			"c1": {"a", "b"},
			"c2": {"a", "b"},
			"c3": {"a", "b"},
			"c4": {"b", "c"},
		})

	p := g.ShortestPath("a", "c")
	if p == nil {
		t.Fatal("expected a path from a to c")
	}
	want := []string{"a", "b", "c"}
	if len(p.Entities) != len(want) {
		t.Fatalf("expected path %v, got %v", want, p.Entities)
	}
	for i := range want {
		if p.Entities[i] != want[i] {
			t.Errorf("path node %d: expected %s, got %s", i, want[i], p.Entities[i])
		}
	}
	wantDist := 1.0/3 + 1.0
	if math.Abs(p.Distance-wantDist) > 1e-9 {
		t.Errorf("expected distance %v, got %v", wantDist, p.Distance)
	}
}

func TestShortestPathDisconnected(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t,
		[]*types.Entity{concept("a", 1), concept("b", 1), concept("x", 1)},
		map[string][]string{"c1": {"a", "b"}})

	if p := g.ShortestPath("a", "x"); p != nil {
		t.Errorf("expected no path to isolated node, got %v", p.Entities)
	}
	if prox := g.Proximity("a", "x"); prox != 0 {
		t.Errorf("unreachable proximity must be 0, got %v", prox)
	}
	if p := g.ShortestPath("a", "missing"); p != nil {
		t.Error("unknown target must yield nil path")
	}
	if p := g.ShortestPath("a", "a"); p == nil || p.Distance != 0 || len(p.Entities) != 1 {
		t.Errorf("self path must be single node at distance 0, got %+v", p)
	}
}

func TestProximityOrdering(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t,
		[]*types.Entity{concept("a", 3), concept("b", 3), concept("c", 1)},
		map[string][]string{
			"c1": {"a", "b"},
			"c2": {"a", "b"},
			"c3": {"a", "b"},
			"c4": {"b", "c"},
		})

	near := g.Proximity("a", "b")
	far := g.Proximity("a", "c")
	if near <= far {
		t.Errorf("stronger connection must score higher: near=%v far=%v", near, far)
	}
	if near <= 0 || near > 1 || far <= 0 || far > 1 {
		t.Errorf("proximity out of (0,1]: near=%v far=%v", near, far)
	}
	if self := g.Proximity("a", "a"); self != 1 {
		t.Errorf("self proximity must be 1, got %v", self)
	}
}

func TestKHop(t *testing.T) {
	t.Parallel()

	// Chain a-b-c-d.
	g := buildTestGraph(t,
		[]*types.Entity{concept("a", 1), concept("b", 1), concept("c", 1), concept("d", 1)},
		map[string][]string{
			"c1": {"a", "b"},
			"c2": {"b", "c"},
			"c3": {"c", "d"},
		})

	one := g.KHop("a", 1)
	if len(one) != 1 || one[0] != "b" {
		t.Errorf("expected 1-hop {b}, got %v", one)
	}
	two := g.KHop("a", 2)
	if len(two) != 2 {
		t.Errorf("expected 2-hop {b c}, got %v", two)
	}
	if got := g.KHop("a", 0); got != nil {
		t.Errorf("maxHops 0 must yield nil, got %v", got)
	}
	if got := g.KHop("missing", 2); got != nil {
		t.Errorf("unknown start must yield nil, got %v", got)
	}
}

func TestPageRankProperties(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t,
		[]*types.Entity{concept("hub", 5), concept("a", 1), concept("b", 1), concept("c", 1), concept("lone", 1)},
		map[string][]string{
			"c1": {"hub", "a"},
			"c2": {"hub", "b"},
			"c3": {"hub", "c"},
		})

	sum := 0.0
	for _, ent := range g.Entities() {
		score := g.Centrality(ent.ID)
		if score <= 0 {
			t.Errorf("centrality of %s must be positive, got %v", ent.ID, score)
		}
		sum += score
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("pagerank vector must sum to 1, got %v", sum)
	}
	if g.Centrality("hub") <= g.Centrality("a") {
		t.Errorf("hub must outrank a leaf: hub=%v a=%v", g.Centrality("hub"), g.Centrality("a"))
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t,
		[]*types.Entity{control("AC-2", 2, "c1"), concept("mfa", 1, "c1")},
		map[string][]string{"c1": {"AC-2", "mfa"}})

	s := g.Stats(2)
	if s.Entities != 3 { // AC-2, mfa, FAMILY-AC
		t.Errorf("expected 3 entities, got %d", s.Entities)
	}
	if s.ByKind[string(types.RelationCooccurrence)] != 1 {
		t.Errorf("expected 1 co-occurrence edge, got %d", s.ByKind[string(types.RelationCooccurrence)])
	}
	if s.ByKind[string(types.RelationHierarchy)] != 1 {
		t.Errorf("expected 1 hierarchy edge, got %d", s.ByKind[string(types.RelationHierarchy)])
	}
	if len(s.TopCentral) != 2 {
		t.Errorf("expected topN to cap the ranking, got %d entries", len(s.TopCentral))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t,
		[]*types.Entity{control("AC-2", 2, "c1", "c2"), concept("mfa", 1, "c1")},
		map[string][]string{"c1": {"AC-2", "mfa"}, "c2": {"AC-2"}})

	path := filepath.Join(t.TempDir(), "graph", "snapshot.json")
	if err := g.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Order() != g.Order() || loaded.Size() != g.Size() {
		t.Errorf("shape differs after round trip: %d/%d vs %d/%d",
			loaded.Order(), loaded.Size(), g.Order(), g.Size())
	}
	if w := loaded.weightBetween("AC-2", "mfa"); w != g.weightBetween("AC-2", "mfa") {
		t.Errorf("edge weight differs after round trip: %v", w)
	}
	if math.Abs(loaded.Centrality("AC-2")-g.Centrality("AC-2")) > 1e-9 {
		t.Error("centrality differs after round trip")
	}
	if got := loaded.EntitiesInChunk("c1"); len(got) != 2 {
		t.Errorf("mentions lost in round trip: %v", got)
	}
}

func TestGraphImmutability(t *testing.T) {
	t.Parallel()

	g := buildTestGraph(t,
		[]*types.Entity{concept("a", 1, "c1"), concept("b", 1, "c1")},
		map[string][]string{"c1": {"a", "b"}})

	ent := g.Entity("a")
	ent.Frequency = 999
	ent.Chunks = append(ent.Chunks, "mutated")
	if g.Entity("a").Frequency == 999 {
		t.Error("mutating a returned entity must not affect the graph")
	}

	nbs := g.Neighbors("a")
	if len(nbs) == 0 {
		t.Fatal("expected neighbors for a")
	}
	nbs[0].Weight = 999
	if g.Neighbors("a")[0].Weight == 999 {
		t.Error("mutating a returned neighbor slice must not affect the graph")
	}
}
