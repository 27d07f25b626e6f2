package model

import (
	"time"
)

// Conversation binds a user to a character for one chat session.
type Conversation struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	CharacterID  string    `gorm:"index;type:uuid" json:"character_id"`
	UserID       string    `gorm:"index;type:uuid" json:"user_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateConversationRequest is the request to open a new conversation.
type CreateConversationRequest struct {
	CharacterID string `json:"character_id"`
}
