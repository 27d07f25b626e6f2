// Package memory retrieves relevant prior exchanges for a conversation using
// blended lexical and vector relevance.
package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/model"
	"github.com/personify-ai/chat-platform/pkg/metrics"
)

// Embedder produces the query vector for the dense half of the search.
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
}

// Searcher is the storage-side hybrid search procedure.
type Searcher interface {
	HybridSearch(ctx context.Context, conversationID, searchQuery string, queryVector model.Vector,
		pageSize int, lexicalWeight, minScore float64) ([]model.MemoryResult, error)
}

// Options control ranking, pagination and the retrieval deadline.
type Options struct {
	PageSize      int           // 1..100
	LexicalWeight float64       // [0,1]; weight of the full-text score
	MinScore      float64       // >= 0; results below are excluded
	Timeout       time.Duration // > 0; deadline for one retrieval (embed + search)
}

// Retriever blends lexical and vector relevance via the storage collaborator.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	opts     Options
}

// NewRetriever validates options and creates a retriever.
func NewRetriever(embedder Embedder, searcher Searcher, opts Options) (*Retriever, error) {
	if opts.PageSize < 1 || opts.PageSize > 100 {
		return nil, fmt.Errorf("page size must be in [1,100], got %d", opts.PageSize)
	}
	if opts.LexicalWeight < 0 || opts.LexicalWeight > 1 {
		return nil, fmt.Errorf("lexical weight must be in [0,1], got %v", opts.LexicalWeight)
	}
	if opts.MinScore < 0 {
		return nil, fmt.Errorf("min score must be >= 0, got %v", opts.MinScore)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0, got %v", opts.Timeout)
	}
	return &Retriever{embedder: embedder, searcher: searcher, opts: opts}, nil
}

var nonWordOrSpace = regexp.MustCompile(`[^\w\s]`)

// SanitizeTerms strips everything but word characters and whitespace from each
// term and drops the ones left empty.
func SanitizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		clean := strings.TrimSpace(nonWordOrSpace.ReplaceAllString(t, ""))
		if clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

// Retrieve returns labeled memory blocks for the query terms, ranked by
// descending blended score. No terms means no memory: an empty slice and a
// nil error, without touching the embedding provider or the store.
func (r *Retriever) Retrieve(ctx context.Context, conversationID string, terms []string) ([]string, error) {
	clean := SanitizeTerms(terms)
	if len(clean) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	query := strings.Join(clean, " ")
	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.CodeRetrieval, "retrieval timed out", err)
		}
		return nil, err
	}

	results, err := r.searcher.HybridSearch(ctx, conversationID, query, queryVector,
		r.opts.PageSize, r.opts.LexicalWeight, r.opts.MinScore)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Wrap(apperr.CodeRetrieval, "retrieval timed out", err)
		}
		return nil, err
	}

	// The scoring function orders rows by descending blended score; restore
	// the order here so a misbehaving procedure cannot surface memory out of
	// rank. Stable, so recency tiebreaks from the store survive.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	blocks := make([]string, 0, len(results))
	for _, res := range results {
		if res.Score < r.opts.MinScore {
			continue
		}
		if block := renderBlock(res); block != "" {
			blocks = append(blocks, block)
		}
	}

	metrics.RetrievalResults.Observe(float64(len(blocks)))
	return blocks, nil
}

// renderBlock labels the two halves of an exchange so the model can tell the
// user's utterance from the character's.
func renderBlock(res model.MemoryResult) string {
	var parts []string
	if res.UserMessage != "" {
		parts = append(parts, "{{user}}: "+res.UserMessage)
	}
	if res.CharMessage != "" {
		parts = append(parts, "{{char}}: "+res.CharMessage)
	}
	return strings.Join(parts, "\n")
}
