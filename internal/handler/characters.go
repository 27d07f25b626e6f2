package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/middleware"
	"github.com/personify-ai/chat-platform/internal/model"
	"github.com/personify-ai/chat-platform/internal/store"
	"github.com/personify-ai/chat-platform/pkg/logger"
)

// CharacterHandler handles character and conversation creation.
type CharacterHandler struct {
	store  *store.Store
	logger *logger.Logger
}

// NewCharacterHandler creates a character handler.
func NewCharacterHandler(st *store.Store, log *logger.Logger) *CharacterHandler {
	return &CharacterHandler{store: st, logger: log}
}

// CreateCharacter handles POST /api/v1/ops/CreateCharacter.
func (h *CharacterHandler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateCharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body")
		return
	}

	char := &model.Character{
		ID:                uuid.Must(uuid.NewV7()).String(),
		CreatorID:         userID,
		Name:              req.Name,
		Persona:           req.Persona,
		FirstMessage:      req.FirstMessage,
		ModelInstructions: req.ModelInstructions,
		CreatedAt:         time.Now(),
	}
	if !char.Complete() {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation,
			"name, persona, first_message and model_instructions are required")
		return
	}

	if err := h.store.CreateCharacter(ctx, char); err != nil {
		h.logger.Error("failed to create character")
		writeError(w, http.StatusInternalServerError, apperr.CodePersistence, "failed to create character")
		return
	}

	writeJSON(w, http.StatusCreated, char)
}

// CreateConversation handles POST /api/v1/ops/CreateConversation.
func (h *CharacterHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body")
		return
	}
	if _, err := uuid.Parse(req.CharacterID); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid character id")
		return
	}

	char, err := h.store.GetCharacter(ctx, req.CharacterID)
	if err != nil {
		h.logger.Error("failed to fetch character")
		writeError(w, http.StatusInternalServerError, apperr.CodePersistence, "failed to fetch character")
		return
	}
	if char == nil {
		writeError(w, http.StatusNotFound, apperr.CodeCharacterNotFound, "character not found")
		return
	}

	conv := &model.Conversation{
		ID:          uuid.Must(uuid.NewV7()).String(),
		CharacterID: char.ID,
		UserID:      userID,
		CreatedAt:   time.Now(),
	}
	if err := h.store.CreateConversation(ctx, conv); err != nil {
		h.logger.Error("failed to create conversation")
		writeError(w, http.StatusInternalServerError, apperr.CodePersistence, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}
