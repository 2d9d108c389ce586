package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/soundprediction/go-rust-bert/pkg/rustbert"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// RustBertClient runs a local text generation model so narration works
// without network access. The model loads lazily on first use.
type RustBertClient struct {
	model *rustbert.TextGenerationModel
	mu    sync.Mutex
}

// NewRustBertClient creates an unloaded local client.
func NewRustBertClient() *RustBertClient {
	return &RustBertClient{}
}

func (c *RustBertClient) load() error {
	if c.model != nil {
		return nil
	}
	m, err := rustbert.NewTextGenerationModel()
	if err != nil {
		return fmt.Errorf("failed to load text generation model: %w", err)
	}
	c.model = m
	return nil
}

// Chat flattens the conversation into a prompt and generates locally. The
// underlying model is not safe for concurrent use.
func (c *RustBertClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var prompt strings.Builder
	for _, m := range messages {
		prompt.WriteString(string(m.Role))
		prompt.WriteString(": ")
		prompt.WriteString(m.Content)
		prompt.WriteString("\n")
	}

	result, err := c.model.Generate(prompt.String(), "")
	if err != nil {
		return nil, fmt.Errorf("text generation failed: %w", err)
	}
	return &types.Response{Content: result, Model: "rust-bert"}, nil
}

// Close releases the model.
func (c *RustBertClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model != nil {
		c.model.Close()
		c.model = nil
	}
	return nil
}
