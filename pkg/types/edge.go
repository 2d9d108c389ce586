package types

// RelationKind classifies a graph edge.
type RelationKind string

const (
	// RelationCooccurrence links two entities that share a chunk (or fall
	// within the configured adjacent-chunk window). Weight is the number of
	// shared chunks.
	RelationCooccurrence RelationKind = "co-occurrence"
	// RelationHierarchy links a structural parent to a member, e.g. a control
	// family to its controls. Weight is the fixed rule strength.
	RelationHierarchy RelationKind = "hierarchy"
)

// Relationship is a weighted edge between two entities. The graph is a
// multigraph: one pair of entities may be connected by edges of different
// kinds at the same time.
type Relationship struct {
	Source string       `json:"source"`
	Target string       `json:"target"`
	Kind   RelationKind `json:"kind"`
	Weight float64      `json:"weight"`
}

// Validate checks the edge endpoints and weight.
func (r *Relationship) Validate() error {
	if r.Source == "" || r.Target == "" {
		return ErrEmptyID
	}
	if r.Weight <= 0 {
		return ErrInvalidWeight
	}
	return nil
}
