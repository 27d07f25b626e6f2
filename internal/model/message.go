package model

import (
	"time"
)

// Exchange is one persisted user/assistant message pair with embeddings.
// Rows are append-only and never mutated after insertion; an exchange is only
// written once both vectors are known.
type Exchange struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ConversationID string    `gorm:"index;type:uuid" json:"conversation_id"`
	UserID         string    `gorm:"type:uuid" json:"user_id"`
	UserMessage    string    `json:"user_message"`
	CharMessage    string    `json:"char_message"`
	UserVector     Vector    `gorm:"type:vector(1536)" json:"-"`
	CharVector     Vector    `gorm:"type:vector(1536)" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// MemoryResult is one row returned by the hybrid-search procedure, scored by
// blended lexical and vector relevance. Request-scoped, never persisted.
type MemoryResult struct {
	UserMessage string    `json:"user_message"`
	CharMessage string    `json:"char_message"`
	Score       float64   `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
}
