// Package llm abstracts the chat model used for optional report narration
// and query understanding. Synthesis never depends on an LLM for its core
// output; these clients only decorate deterministic results.
package llm

import (
	"context"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// Client is a chat completion backend.
type Client interface {
	Chat(ctx context.Context, messages []types.Message) (*types.Response, error)
	Close() error
}

// Config holds common chat model settings.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}
