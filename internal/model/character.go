// Package model defines data structures for the character-chat platform.
package model

import (
	"time"
)

// Character is a chat persona. Referenced by many conversations, owned by its
// creator, immutable once bound except via explicit edit.
type Character struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatorID         string    `gorm:"index;type:uuid" json:"creator_id"`
	Name              string    `json:"name"`
	Persona           string    `json:"persona"`
	FirstMessage      string    `json:"first_message"`
	ModelInstructions string    `json:"model_instructions"`
	CreatedAt         time.Time `json:"created_at"`
}

// Complete reports whether every field the instruction template needs is set.
func (c *Character) Complete() bool {
	return c.Name != "" && c.Persona != "" && c.FirstMessage != "" && c.ModelInstructions != ""
}

// CreateCharacterRequest is the request to create a new character.
type CreateCharacterRequest struct {
	Name              string `json:"name"`
	Persona           string `json:"persona"`
	FirstMessage      string `json:"first_message"`
	ModelInstructions string `json:"model_instructions"`
}
