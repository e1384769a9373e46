package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient abstracts the text-generation capability needed by domain
// services.
type ChatClient interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
	Model() string
}

// OpenAIChatClient adapts the go-openai client to the ChatClient interface.
// The explanation endpoint is OpenAI-compatible, so a custom base URL routes
// the same request shape to any hosted chat-completions provider.
type OpenAIChatClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIChatClient creates a ChatClient for the given endpoint. baseURL
// may be empty to use the default OpenAI API.
func NewOpenAIChatClient(apiKey, baseURL, model string) *OpenAIChatClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIChatClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *OpenAIChatClient) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIChatClient) Model() string {
	return c.model
}
