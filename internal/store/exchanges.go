package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/model"
)

// EmbeddingDimensions is the canonical width of every persisted vector.
const EmbeddingDimensions = 1536

// AppendExchange persists a user/assistant message pair with both embeddings.
// Vectors are dimension-checked before any write reaches the database; an
// exchange row is never persisted with a malformed vector.
func (s *Store) AppendExchange(ctx context.Context, ex *model.Exchange) error {
	if len(ex.UserVector) != EmbeddingDimensions || len(ex.CharVector) != EmbeddingDimensions {
		return apperr.Newf(apperr.CodeVectorDimension,
			"expected %d-dimension vectors, got user=%d char=%d",
			EmbeddingDimensions, len(ex.UserVector), len(ex.CharVector))
	}

	if err := s.db.WithContext(ctx).Create(ex).Error; err != nil {
		return apperr.Wrap(apperr.CodePersistence, "failed to store exchange", err)
	}
	return nil
}

// IncrementMessageCount bumps the conversation statistic for one exchange.
// The counter is a statistic, not a ledger; it can be rebuilt from the
// exchanges table.
func (s *Store) IncrementMessageCount(ctx context.Context, conversationID string) error {
	return s.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn("message_count", gorm.Expr("message_count + 1")).Error
}

// HybridSearch invokes the get_filtered_messages procedure, which scores
// exchanges server-side as lexicalWeight*fts + (1-lexicalWeight)*cosine and
// returns rows above minScore ordered by score descending, recency breaking
// ties.
func (s *Store) HybridSearch(
	ctx context.Context,
	conversationID string,
	searchQuery string,
	queryVector model.Vector,
	pageSize int,
	lexicalWeight float64,
	minScore float64,
) ([]model.MemoryResult, error) {
	var rows []struct {
		UserMessage string
		CharMessage string
		Score       float64
		CreatedAt   time.Time
	}

	err := s.db.WithContext(ctx).Raw(
		`SELECT user_message, char_message, score, created_at
		   FROM get_filtered_messages(?, ?, ?::vector, ?, ?, ?)`,
		conversationID, searchQuery, queryVector, pageSize, lexicalWeight, minScore,
	).Scan(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeRetrieval, "message retrieval failed", err)
	}

	results := make([]model.MemoryResult, len(rows))
	for i, r := range rows {
		results[i] = model.MemoryResult{
			UserMessage: r.UserMessage,
			CharMessage: r.CharMessage,
			Score:       r.Score,
			CreatedAt:   r.CreatedAt,
		}
	}
	return results, nil
}
