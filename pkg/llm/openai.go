package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/soundprediction/controlgraph/pkg/types"
)

const defaultChatModel = "gpt-4o-mini"

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient creates an API-backed chat client. A BaseURL override
// points it at any OpenAI-compatible server.
func NewOpenAIClient(config Config) *OpenAIClient {
	if config.Model == "" {
		config.Model = defaultChatModel
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

// Chat sends the conversation and returns the first choice.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    convertMessages(messages),
		Temperature: c.config.Temperature,
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &types.Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}, nil
}

// Close implements Client.
func (c *OpenAIClient) Close() error { return nil }

func convertMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		var role string
		switch m.Role {
		case types.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case types.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
