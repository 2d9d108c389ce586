package kgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// Snapshot is the on-disk form of a knowledge graph. Adjacency and centrality
// are derived state and recomputed on load.
type Snapshot struct {
	SavedAt       time.Time            `json:"saved_at"`
	Entities      []*types.Entity      `json:"entities"`
	Relationships []types.Relationship `json:"relationships"`
	Mentions      map[string][]string  `json:"mentions"`
}

// Save writes the graph to path as JSON. The write goes through a temporary
// file and a rename so readers never observe a partial snapshot.
func (g *KnowledgeGraph) Save(path string) error {
	snap := Snapshot{
		SavedAt:       time.Now().UTC(),
		Entities:      g.Entities(),
		Relationships: g.edges,
		Mentions:      g.mentions,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph snapshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from path and reconstructs the frozen graph,
// recomputing adjacency and centrality from the persisted edge list.
func Load(path string) (*KnowledgeGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse graph snapshot: %w", err)
	}

	entities := make(map[string]*types.Entity, len(snap.Entities))
	for _, ent := range snap.Entities {
		if ent == nil || ent.ID == "" {
			continue
		}
		entities[ent.ID] = ent
	}
	for _, e := range snap.Relationships {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("snapshot edge %s->%s invalid: %w", e.Source, e.Target, err)
		}
	}

	g := &KnowledgeGraph{
		entities:  entities,
		adjacency: buildAdjacency(snap.Relationships),
		edges:     snap.Relationships,
		mentions:  snap.Mentions,
	}
	if g.mentions == nil {
		g.mentions = map[string][]string{}
	}
	g.pagerank = computePageRank(g)
	return g, nil
}
