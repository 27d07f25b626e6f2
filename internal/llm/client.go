// Package llm provides completion provider clients and the globally
// throttled dispatcher in front of them.
package llm

import (
	"context"
	"unicode/utf8"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model            string
	Messages         []ChatMessage
	MaxTokens        int
	Temperature      float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// ChatMessage represents a chat message for the provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for completion providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// EstimateTokens gives a deterministic token count for billing display.
// Roughly four characters per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	count := (n + 3) / 4
	if count < 1 {
		count = 1
	}
	return count
}
