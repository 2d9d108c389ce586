package embedder

import (
	"context"
	"fmt"

	embedeverything "github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// LocalClient runs embeddings in-process via go-embedeverything, so a corpus
// can be indexed without any external service.
type LocalClient struct {
	client *embedeverything.Embedder
	config Config
}

// NewLocalClient loads the local embedding model named in the config.
func NewLocalClient(config Config) (*LocalClient, error) {
	client, err := embedeverything.NewEmbedder(config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create local embedder: %w", err)
	}
	return &LocalClient{client: client, config: config}, nil
}

// Embed generates embeddings for the given texts.
func (c *LocalClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	// go-embedeverything does not support context yet
	embeddings, err := c.client.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *LocalClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding dimensionality.
func (c *LocalClient) Dimensions() int {
	return c.config.Dimensions
}

// Close releases the model.
func (c *LocalClient) Close() error {
	c.client.Close()
	return nil
}
