// Package embedder abstracts text embedding backends. Two implementations
// ship: a local go-embedeverything model and an OpenAI-compatible API client.
package embedder

import "context"

// Client generates embeddings for text.
type Client interface {
	// Embed generates embeddings for a batch of texts, one vector per input
	// in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedSingle generates an embedding for one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the embedding dimensionality.
	Dimensions() int
	Close() error
}

// Config holds common embedder settings.
type Config struct {
	Model      string
	Dimensions int
	APIKey     string
	BaseURL    string
}
