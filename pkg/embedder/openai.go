package embedder

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient embeds via an OpenAI-compatible embeddings endpoint. Setting
// BaseURL points it at a local inference server.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient creates an API-backed embedder.
func NewOpenAIClient(config Config) *OpenAIClient {
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Embed generates embeddings for the given texts in one API call.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.config.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		embeddings[item.Index] = item.Embedding
	}
	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *OpenAIClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
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
func (c *OpenAIClient) Dimensions() int {
	return c.config.Dimensions
}

// Close implements Client.
func (c *OpenAIClient) Close() error {
	return nil
}
