package extract

import (
	"testing"

	"github.com/soundprediction/controlgraph/pkg/types"
)

func chunk(id, text string) *types.Chunk {
	return &types.Chunk{ID: id, Text: text, Source: "test.pdf", Page: 1}
}

func TestExtractChunkControls(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, nil)
	resolved, err := e.ExtractChunk(chunk("c1", "Control AC-2 requires account management; see also AC-3."))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	ids := make([]string, len(resolved))
	for i, c := range resolved {
		ids[i] = c.ID
	}
	want := []string{"AC-2", "AC-3"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("candidate %d: expected %s, got %s", i, want[i], ids[i])
		}
		if resolved[i].Type != types.EntityControl {
			t.Errorf("candidate %s: expected control type, got %s", ids[i], resolved[i].Type)
		}
	}
}

func TestExtractChunkEnhancement(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, nil)
	resolved, err := e.ExtractChunk(chunk("c1", "IA-5(1) strengthens password management."))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(resolved))
	}
	got := resolved[0]
	if got.ID != "IA-5(1)" {
		t.Errorf("expected id IA-5(1), got %s", got.ID)
	}
	if got.Attributes["enhancement"] != "1" {
		t.Errorf("expected enhancement attribute 1, got %q", got.Attributes["enhancement"])
	}
}

func TestExtractChunkPublications(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, nil)
	resolved, err := e.ExtractChunk(chunk("c1", "Guidance appears in nist sp 800-63a and NIST SP 800-53."))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	var pubs []string
	for _, c := range resolved {
		if c.Type == types.EntityPublication {
			pubs = append(pubs, c.ID)
		}
	}
	want := []string{"NIST-SP-800-63A", "NIST-SP-800-53"}
	if len(pubs) != len(want) {
		t.Fatalf("expected publications %v, got %v", want, pubs)
	}
	for i := range want {
		if pubs[i] != want[i] {
			t.Errorf("publication %d: expected %s, got %s", i, want[i], pubs[i])
		}
	}
}

func TestExtractChunkConcepts(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, nil)
	resolved, err := e.ExtractChunk(chunk("c1", "Enable multi-factor authentication and review the audit log weekly."))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	found := make(map[string]bool)
	for _, c := range resolved {
		found[c.ID] = true
	}
	if !found["mfa"] {
		t.Error("expected mfa concept")
	}
	if !found["audit"] {
		t.Error("expected audit concept")
	}
}

func TestResolveOverlapsLongestWins(t *testing.T) {
	t.Parallel()

	// "access control" (dictionary) overlaps a shorter span inside it; the
	// longer span must survive and the shorter one must be dropped.
	candidates := []Candidate{
		{ID: "short", Start: 5, End: 10},
		{ID: "long", Start: 0, End: 14},
		{ID: "after", Start: 20, End: 25},
	}
	kept := resolveOverlaps(candidates)
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept candidates, got %d", len(kept))
	}
	if kept[0].ID != "long" || kept[1].ID != "after" {
		t.Errorf("expected [long after], got [%s %s]", kept[0].ID, kept[1].ID)
	}
}

func TestExtractCorpusMergesAcrossChunks(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, nil)
	chunks := []*types.Chunk{
		chunk("c1", "AC-2 governs account management."),
		chunk("c2", "Review AC-2 alongside AC-6."),
	}
	entities, mentions, err := e.ExtractCorpus(chunks)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	byID := make(map[string]*types.Entity, len(entities))
	for _, ent := range entities {
		byID[ent.ID] = ent
	}
	ac2, ok := byID["AC-2"]
	if !ok {
		t.Fatal("expected AC-2 entity")
	}
	if ac2.Frequency != 2 {
		t.Errorf("expected AC-2 frequency 2, got %d", ac2.Frequency)
	}
	if len(ac2.Chunks) != 2 {
		t.Errorf("expected AC-2 in 2 chunks, got %v", ac2.Chunks)
	}
	if _, ok := byID["AC-6"]; !ok {
		t.Error("expected AC-6 entity")
	}
	if len(mentions["c2"]) != 2 {
		t.Errorf("expected 2 mentions in c2, got %v", mentions["c2"])
	}
}

func TestExtractCorpusDeterministic(t *testing.T) {
	t.Parallel()

	chunks := []*types.Chunk{
		chunk("c1", "AC-2 and encryption requirements per NIST SP 800-53."),
		chunk("c2", "Zero trust architectures demand multi-factor authentication."),
		chunk("c3", "SC-7 boundary protection; see also AC-2."),
	}

	e := NewExtractor(nil, nil)
	first, firstMentions, err := e.ExtractCorpus(chunks)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	second, secondMentions, err := e.ExtractCorpus(chunks)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("entity counts differ between passes: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("entity %d differs: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if first[i].Frequency != second[i].Frequency {
			t.Errorf("frequency for %s differs: %d vs %d", first[i].ID, first[i].Frequency, second[i].Frequency)
		}
	}
	for id, ids := range firstMentions {
		other := secondMentions[id]
		if len(ids) != len(other) {
			t.Fatalf("mentions for %s differ: %v vs %v", id, ids, other)
		}
		for i := range ids {
			if ids[i] != other[i] {
				t.Errorf("mention order for %s differs: %v vs %v", id, ids, other)
			}
		}
	}
}

func TestExtractChunkRejectsInvalid(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, nil)
	_, err := e.ExtractChunk(&types.Chunk{ID: "c1"})
	if err == nil {
		t.Fatal("empty chunk text must be rejected")
	}
	if types.KindOf(err) != types.KindExtraction {
		t.Errorf("expected extraction error kind, got %s", types.KindOf(err))
	}
}
