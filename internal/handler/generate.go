package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/middleware"
	"github.com/personify-ai/chat-platform/internal/model"
	"github.com/personify-ai/chat-platform/internal/service"
	"github.com/personify-ai/chat-platform/pkg/logger"
)

// GenerateHandler handles the Generate operation.
type GenerateHandler struct {
	service *service.GenerationService
	logger  *logger.Logger
}

// NewGenerateHandler creates a generate handler.
func NewGenerateHandler(svc *service.GenerationService, log *logger.Logger) *GenerateHandler {
	return &GenerateHandler{service: svc, logger: log}
}

// Generate handles POST /api/v1/ops/Generate.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body")
		return
	}

	resp, err := h.service.Generate(ctx, userID, &req)
	if err != nil {
		// A reply produced before a persistence failure is still
		// delivered; durability of the response is not traded for the
		// write.
		if resp != nil {
			h.logger.Warn("returning unpersisted reply",
				zap.String("conversation_id", req.ConversationID),
				zap.Error(err),
			)
			writeJSON(w, http.StatusOK, resp)
			return
		}
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
