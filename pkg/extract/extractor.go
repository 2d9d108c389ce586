// Package extract turns raw corpus chunks into canonical typed entities.
//
// Extraction is rule-driven: an ordered table of recognizers (pattern rules,
// dictionary lookups, optionally a GLiNER model) produces candidates per
// chunk, overlapping candidates are resolved longest-match-wins, and
// candidates sharing a normalized label are merged across chunks into one
// canonical entity. The whole stage is a pure function of its input chunk
// set, so re-running over an unchanged corpus yields an identical entity set.
package extract

import (
	"log/slog"
	"sort"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// Extractor applies an ordered recognizer table to chunks and maintains the
// canonical entity registry for one extraction pass.
type Extractor struct {
	recognizers []Recognizer
	logger      *slog.Logger
}

// NewExtractor creates an extractor with the given rule table. A nil or empty
// table falls back to the built-in recognizers.
func NewExtractor(recognizers []Recognizer, logger *slog.Logger) *Extractor {
	if len(recognizers) == 0 {
		recognizers = DefaultRecognizers()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{recognizers: recognizers, logger: logger}
}

// ExtractChunk runs the rule table over one chunk and returns the resolved
// candidates (overlaps already settled). Candidates are returned in text
// order. The chunk is not registered anywhere; use ExtractCorpus for the
// canonical merged view.
func (e *Extractor) ExtractChunk(chunk *types.Chunk) ([]Candidate, error) {
	if err := chunk.Validate(); err != nil {
		return nil, types.WrapError(types.KindExtraction, err, "chunk %q is not extractable", chunk.ID)
	}

	var candidates []Candidate
	for _, rec := range e.recognizers {
		found, err := rec.Recognize(chunk)
		if err != nil {
			return nil, types.WrapError(types.KindExtraction, err, "recognizer %s failed on chunk %q", rec.Name(), chunk.ID)
		}
		for i := range found {
			found[i].ID = types.NormalizeLabel(found[i].ID)
			if found[i].ID == "" {
				continue
			}
			candidates = append(candidates, found[i])
		}
	}

	return resolveOverlaps(candidates), nil
}

// ExtractCorpus extracts every chunk and merges candidates into the canonical
// entity set. The returned map is keyed by chunk id and holds the entity ids
// mentioned in that chunk (post overlap resolution); the slice holds the
// merged entities sorted by id.
func (e *Extractor) ExtractCorpus(chunks []*types.Chunk) ([]*types.Entity, map[string][]string, error) {
	registry := make(map[string]*types.Entity)
	mentions := make(map[string][]string, len(chunks))

	for _, chunk := range chunks {
		resolved, err := e.ExtractChunk(chunk)
		if err != nil {
			return nil, nil, err
		}

		seen := make(map[string]struct{}, len(resolved))
		for _, cand := range resolved {
			entity := &types.Entity{
				ID:         cand.ID,
				Type:       cand.Type,
				Name:       cand.Name,
				Frequency:  1,
				Chunks:     []string{chunk.ID},
				Attributes: cand.Attributes,
			}
			if existing, ok := registry[cand.ID]; ok {
				existing.Merge(entity)
			} else {
				registry[cand.ID] = entity
			}
			if _, dup := seen[cand.ID]; !dup {
				seen[cand.ID] = struct{}{}
				mentions[chunk.ID] = append(mentions[chunk.ID], cand.ID)
			}
		}
	}

	entities := make([]*types.Entity, 0, len(registry))
	for _, entity := range registry {
		entities = append(entities, entity)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	e.logger.Debug("corpus extraction complete",
		"chunks", len(chunks),
		"entities", len(entities))

	return entities, mentions, nil
}

// Close releases recognizers holding native resources.
func (e *Extractor) Close() {
	for _, rec := range e.recognizers {
		if closer, ok := rec.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// resolveOverlaps applies longest-match-wins within one chunk: candidates are
// considered longest span first (ties broken by earlier start, then table
// order, which is the order they arrive in), and a candidate is dropped when
// its span overlaps one already kept.
func resolveOverlaps(candidates []Candidate) []Candidate {
	if len(candidates) <= 1 {
		return candidates
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := candidates[order[a]], candidates[order[b]]
		if ca.spanLen() != cb.spanLen() {
			return ca.spanLen() > cb.spanLen()
		}
		return ca.Start < cb.Start
	})

	var kept []Candidate
	for _, idx := range order {
		cand := candidates[idx]
		blocked := false
		for _, k := range kept {
			if cand.overlaps(k) {
				blocked = true
				break
			}
		}
		if !blocked {
			kept = append(kept, cand)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
