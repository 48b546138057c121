// Package generation turns an assembled prompt context into an answer via
// an external chat completion capability.
package generation

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the external generation capability. Complete returns the raw
// model output for the prompt.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// OpenAIChatClient calls the OpenAI chat completion API.
type OpenAIChatClient struct {
	api         *openai.Client
	model       string
	temperature float32
}

func NewOpenAIChatClient(apiKey, model string, temperature float32) *OpenAIChatClient {
	return &OpenAIChatClient{
		api:         openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
	}
}

func (c *OpenAIChatClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
