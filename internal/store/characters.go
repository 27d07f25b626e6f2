package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/personify-ai/chat-platform/internal/model"
)

// CreateCharacter inserts a new character.
func (s *Store) CreateCharacter(ctx context.Context, c *model.Character) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// GetCharacter loads a character by id. Returns (nil, nil) when absent.
func (s *Store) GetCharacter(ctx context.Context, id string) (*model.Character, error) {
	var c model.Character
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts a new conversation bound to a character.
func (s *Store) CreateConversation(ctx context.Context, c *model.Conversation) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// GetConversation loads a conversation by id. Returns (nil, nil) when absent.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
