package kgraph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// Neo4jStore mirrors the in-memory graph into a Neo4j database so the graph
// can be inspected with Cypher tooling. The in-memory graph stays the source
// of truth; the store is a projection, rebuilt wholesale on each export.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to a Neo4j instance.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: driver, database: database}, nil
}

// Export replaces the stored projection with the given graph.
func (s *Neo4jStore) Export(ctx context.Context, g *KnowledgeGraph) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (n:Entity) DETACH DELETE n`, nil); err != nil {
			return nil, err
		}

		for _, ent := range g.Entities() {
			_, err := tx.Run(ctx, `
				CREATE (n:Entity {
					id: $id,
					type: $type,
					name: $name,
					frequency: $frequency,
					centrality: $centrality
				})
			`, map[string]any{
				"id":         ent.ID,
				"type":       string(ent.Type),
				"name":       ent.Name,
				"frequency":  ent.Frequency,
				"centrality": g.Centrality(ent.ID),
			})
			if err != nil {
				return nil, err
			}
		}

		for _, edge := range g.Relationships() {
			_, err := tx.Run(ctx, `
				MATCH (a:Entity {id: $source}), (b:Entity {id: $target})
				CREATE (a)-[:RELATES_TO {kind: $kind, weight: $weight}]->(b)
			`, map[string]any{
				"source": edge.Source,
				"target": edge.Target,
				"kind":   string(edge.Kind),
				"weight": edge.Weight,
			})
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to export graph to neo4j: %w", err)
	}
	return nil
}

// Import reads the stored projection back into builder input form. Mentions
// are not stored in Neo4j; callers needing them should load a JSON snapshot
// instead.
func (s *Neo4jStore) Import(ctx context.Context) ([]*types.Entity, []types.Relationship, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		var entities []*types.Entity
		res, err := tx.Run(ctx, `MATCH (n:Entity) RETURN n.id, n.type, n.name, n.frequency`, nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			rec := res.Record()
			ent := &types.Entity{
				ID:   asString(rec.Values[0]),
				Type: types.EntityType(asString(rec.Values[1])),
				Name: asString(rec.Values[2]),
			}
			if freq, ok := rec.Values[3].(int64); ok {
				ent.Frequency = int(freq)
			}
			entities = append(entities, ent)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}

		var edges []types.Relationship
		res, err = tx.Run(ctx, `
			MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity)
			RETURN a.id, b.id, r.kind, r.weight
		`, nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			rec := res.Record()
			edge := types.Relationship{
				Source: asString(rec.Values[0]),
				Target: asString(rec.Values[1]),
				Kind:   types.RelationKind(asString(rec.Values[2])),
			}
			if w, ok := rec.Values[3].(float64); ok {
				edge.Weight = w
			}
			edges = append(edges, edge)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}

		return [2]any{entities, edges}, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to import graph from neo4j: %w", err)
	}

	pair := result.([2]any)
	entities, _ := pair[0].([]*types.Entity)
	edges, _ := pair[1].([]types.Relationship)
	return entities, edges, nil
}

// Close releases the driver connections.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
