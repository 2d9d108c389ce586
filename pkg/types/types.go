package types

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrEmptyText    = errors.New("text cannot be empty")
	ErrEmptyQuery   = errors.New("query cannot be empty")
	ErrInvalidTopK  = errors.New("topK must be positive")
	ErrInvalidAlpha = errors.New("alpha must be in [0, 1]")
)

// Chunk is a unit of corpus text with document provenance. Chunks are produced
// by an ingestion collaborator and consumed read-only by the extractor and the
// graph builder. Ordinal is the chunk's position within the corpus and drives
// the adjacent-chunk co-occurrence window.
type Chunk struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Ordinal int    `json:"ordinal"`
}

// Validate checks that the chunk is usable for extraction.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrEmptyID
	}
	if c.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// Passage is a retrievable unit held by the vector store. It carries the same
// provenance as the chunk it was built from plus its embedding vector.
type Passage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Page      int       `json:"page,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Validate checks that the passage can be stored.
func (p *Passage) Validate() error {
	if p.ID == "" {
		return ErrEmptyID
	}
	if p.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ScoredPassage pairs a passage with a retrieval score. For pure vector
// results Score is the embedding similarity; after hybrid ranking Score is the
// combined score and the components are broken out separately.
type ScoredPassage struct {
	Passage       `json:"passage"`
	Score         float64  `json:"score"`
	VectorScore   float64  `json:"vector_score"`
	GraphScore    float64  `json:"graph_score"`
	ViaEntities   []string `json:"via_entities,omitempty"`
	FromGraph     bool     `json:"from_graph"`
	MatchedEntity string   `json:"matched_entity,omitempty"`
}

// Role identifies the author of a language-model message.
type Role string

const (
	// RoleSystem represents a system message.
	RoleSystem Role = "system"
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a language-model conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is a language-model completion.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// FormatProvenance renders a citation string for a passage.
func FormatProvenance(p *Passage) string {
	if p == nil {
		return "unknown"
	}
	if p.Page > 0 {
		return fmt.Sprintf("%s, page %d", p.Source, p.Page)
	}
	return p.Source
}
