package handler

import (
	"encoding/json"
	"net/http"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/middleware"
	"github.com/personify-ai/chat-platform/internal/model"
	"github.com/personify-ai/chat-platform/internal/quota"
	"github.com/personify-ai/chat-platform/pkg/logger"
)

// UnlockHandler issues ad-unlock tokens.
type UnlockHandler struct {
	gate   *quota.Gate
	logger *logger.Logger
}

// NewUnlockHandler creates an unlock handler.
func NewUnlockHandler(gate *quota.Gate, log *logger.Logger) *UnlockHandler {
	return &UnlockHandler{gate: gate, logger: log}
}

type unlockTokenRequest struct {
	PressedAt string `json:"pressed_at"`
}

// GetUnlockToken handles POST /api/v1/ops/GetUnlockToken. The issued token is
// recorded as the user's pending token and stays redeemable for the fixed
// validity window.
func (h *UnlockHandler) GetUnlockToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req unlockTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body")
		return
	}
	if req.PressedAt == "" {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "pressed_at is required")
		return
	}

	token, err := h.gate.IssueUnlockToken(ctx, userID, req.PressedAt)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.UnlockTokenResponse{
		Success:     true,
		UnlockToken: token,
	})
}
