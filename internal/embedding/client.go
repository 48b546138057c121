// Package embedding wraps the external embedding capability with
// batching, caching, and bounded failure handling.
package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the interface for embedding API clients. Implementations
// return one vector per input text, in input order.
type Client interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// OpenAIClient implements Client for the OpenAI embeddings API.
type OpenAIClient struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIClient creates a new OpenAI embedding client. The requested
// dimension is passed through to the API so the returned vectors match
// the index's configured dimension.
func NewOpenAIClient(apiKey, model string, dimensions int) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got: %d", dimensions)
	}

	return &OpenAIClient{
		client:     openai.NewClient(apiKey),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		vec := make([]float32, len(data.Embedding))
		copy(vec, data.Embedding)
		embeddings[data.Index] = vec
	}

	return embeddings, nil
}

// Dimensions returns the dimension of the embeddings.
func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}
