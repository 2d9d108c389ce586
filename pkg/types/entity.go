package types

import (
	"sort"
	"strings"
)

// EntityType classifies an extracted entity. The set is closed: adding a new
// kind of entity means adding a recognizer that emits one of these types or
// extending this list, never branching on shape elsewhere.
type EntityType string

const (
	// EntityControl is a security control identifier (e.g. AC-2, IA-5(1)).
	EntityControl EntityType = "control"
	// EntityConcept is a technical concept matched from the dictionary
	// (e.g. mfa, encryption, zero-trust).
	EntityConcept EntityType = "concept"
	// EntityPublication is a standards publication reference
	// (e.g. NIST SP 800-53).
	EntityPublication EntityType = "publication"
)

// Entity is a canonical, deduplicated concept or identifier extracted from the
// corpus. ID is the normalized label; candidates sharing an ID across chunks
// are merged into one Entity.
type Entity struct {
	ID         string            `json:"id"`
	Type       EntityType        `json:"type"`
	Name       string            `json:"name"`
	Frequency  int               `json:"frequency"`
	Chunks     []string          `json:"chunks,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Validate checks that the entity has the required fields.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// Family returns the identifier family for hierarchical grouping: the prefix
// before the first dash for controls (AC-2 -> AC), empty otherwise.
func (e *Entity) Family() string {
	if e.Type != EntityControl {
		return ""
	}
	if i := strings.IndexByte(e.ID, '-'); i > 0 {
		return e.ID[:i]
	}
	return ""
}

// Merge folds another candidate with the same ID into this entity, summing
// frequency and unioning source-chunk references. Chunk references stay sorted
// and deduplicated so merge order does not affect the result.
func (e *Entity) Merge(other *Entity) {
	if other == nil || other.ID != e.ID {
		return
	}
	e.Frequency += other.Frequency
	e.Chunks = unionSorted(e.Chunks, other.Chunks)
	if e.Attributes == nil && other.Attributes != nil {
		e.Attributes = make(map[string]string, len(other.Attributes))
	}
	for k, v := range other.Attributes {
		if _, ok := e.Attributes[k]; !ok {
			e.Attributes[k] = v
		}
	}
}

// Clone returns a deep copy. The graph hands out clones so callers cannot
// mutate entities owned by an immutable graph.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Chunks = append([]string(nil), e.Chunks...)
	if e.Attributes != nil {
		out.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// NormalizeLabel canonicalizes an entity label: trimmed, with interior
// whitespace collapsed. Control and publication IDs keep their case; concept
// IDs are lowercased by their recognizer before reaching here.
func NormalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
