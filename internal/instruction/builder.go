// Package instruction renders the system prompt for a conversation's bound
// character.
package instruction

import (
	"context"
	"fmt"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/model"
)

// CharacterSource resolves a conversation to its bound character.
type CharacterSource interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetCharacter(ctx context.Context, id string) (*model.Character, error)
}

// Builder loads the bound character and renders the instruction text.
type Builder struct {
	source CharacterSource
}

// NewBuilder creates an instruction builder.
func NewBuilder(source CharacterSource) *Builder {
	return &Builder{source: source}
}

// Build returns the rendered instruction for the conversation. Rendering is
// pure: identical character data yields byte-identical output.
func (b *Builder) Build(ctx context.Context, conversationID string) (string, error) {
	conv, err := b.source.GetConversation(ctx, conversationID)
	if err != nil {
		return "", apperr.Wrap(apperr.CodePersistence, "failed to fetch conversation", err)
	}
	if conv == nil {
		return "", apperr.New(apperr.CodeConversationNotFound, "conversation not found")
	}
	if conv.CharacterID == "" {
		return "", apperr.New(apperr.CodeCharacterNotFound, "no character assigned to this conversation")
	}

	char, err := b.source.GetCharacter(ctx, conv.CharacterID)
	if err != nil {
		return "", apperr.Wrap(apperr.CodePersistence, "failed to fetch character", err)
	}
	if char == nil {
		return "", apperr.New(apperr.CodeCharacterNotFound, "character not found")
	}
	if !char.Complete() {
		return "", apperr.New(apperr.CodeIncompleteCharacter, "character data is incomplete")
	}

	return Render(char), nil
}

const template = `### Instruction:
You are **%s**, a character with the following persona:
_%s_

#### Scenario:
*"%s"*

#### Guidelines:
%s

- Stay in character at all times; your responses should always reflect %s's personality and background.
- Keep responses immersive, natural, and engaging, ensuring they align with the established setting.
- Strictly follow the given scenario and persona, maintaining consistency in behavior and dialogue.
- Avoid unnecessary repetition, generic statements, or breaking character.
- Adapt dynamically to user interactions while preserving authenticity.
- Use **bold formatting** for actions, descriptions, and emphasis, and quotation marks ("") for spoken dialogue.
- Be mindful of the current scenario; describe settings, emotions, and interactions with vivid detail to enhance immersion.
`

// Render interpolates the fixed instruction template with character data.
func Render(char *model.Character) string {
	return fmt.Sprintf(template,
		char.Name,
		char.Persona,
		char.FirstMessage,
		char.ModelInstructions,
		char.Name,
	)
}
