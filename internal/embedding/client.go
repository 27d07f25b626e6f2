// Package embedding turns text into fixed-length dense vectors via the
// OpenAI embeddings API.
package embedding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/model"
	"github.com/personify-ai/chat-platform/pkg/metrics"
)

// Client calls the embedding provider. One outbound call per invocation, no
// caching, no internal retry; callers own retry policy.
type Client struct {
	api        *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
}

// NewClient creates an embedding client.
func NewClient(apiKey, embeddingModel string, dimensions int, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return &Client{
		api:        openai.NewClient(apiKey),
		model:      openai.EmbeddingModel(embeddingModel),
		dimensions: dimensions,
		timeout:    timeout,
	}, nil
}

// Embed returns the embedding vector for text. Whitespace-only input is
// rejected before any network call.
func (c *Client) Embed(ctx context.Context, text string) (model.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.CodeValidation, "text cannot be empty or whitespace")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		metrics.EmbeddingCallsTotal.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.CodeEmbeddingProvider, "failed to vectorize text", err)
	}

	if len(resp.Data) == 0 {
		metrics.EmbeddingCallsTotal.WithLabelValues("empty").Inc()
		return nil, apperr.New(apperr.CodeEmbeddingProvider, "empty embedding response")
	}

	vector := model.Vector(resp.Data[0].Embedding)
	if len(vector) != c.dimensions {
		metrics.EmbeddingCallsTotal.WithLabelValues("bad_dimension").Inc()
		return nil, apperr.Newf(apperr.CodeEmbeddingProvider,
			"unexpected embedding dimension %d, want %d", len(vector), c.dimensions)
	}

	metrics.EmbeddingCallsTotal.WithLabelValues("success").Inc()
	return vector, nil
}
