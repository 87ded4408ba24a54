// Package gateway wraps every model call with budget enforcement, bounded
// retries, cost tracking, and an immutable audit record per attempt.
package gateway

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"llm-trader/internal/errors"
)

// Message is one chat message sent to the model.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// ChatResponse is the provider's reply to a single chat completion.
type ChatResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// ChatClient is the minimal provider surface the gateway depends on.
type ChatClient interface {
	Complete(ctx context.Context, model string, messages []Message, temperature float32, maxTokens int) (*ChatResponse, error)
}

// OpenAIClient implements ChatClient using the OpenAI chat-completions API.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI chat client. baseURL may be empty for
// the default endpoint, or point at any OpenAI-compatible provider.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, model string, messages []Message, temperature float32, maxTokens int) (*ChatResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.ErrEmptyResponse
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Content:          choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		FinishReason:     string(choice.FinishReason),
	}, nil
}
