package dto

import (
	"errors"
	"strings"
)

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Query string   `json:"query" binding:"required"`
	TopK  int      `json:"top_k,omitempty"`
	Alpha *float64 `json:"alpha,omitempty"`
}

// Validate performs validation on QueryRequest
func (r *QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if r.TopK < 0 {
		return errors.New("top_k cannot be negative")
	}
	if r.Alpha != nil && (*r.Alpha < 0 || *r.Alpha > 1) {
		return errors.New("alpha must be in [0, 1]")
	}
	return nil
}

// PassageResult is one ranked passage in a query response.
type PassageResult struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Source      string   `json:"source"`
	Page        int      `json:"page,omitempty"`
	Score       float64  `json:"score"`
	VectorScore float64  `json:"vector_score"`
	GraphScore  float64  `json:"graph_score"`
	FromGraph   bool     `json:"from_graph"`
	ViaEntities []string `json:"via_entities,omitempty"`
}

// QueryResponse is the body of a successful query.
type QueryResponse struct {
	Query         string          `json:"query"`
	QueryEntities []string        `json:"query_entities,omitempty"`
	Passages      []PassageResult `json:"passages"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
