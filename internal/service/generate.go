// Package service composes the generation pipeline: admission, context
// assembly, dispatch, persistence, response.
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/events"
	"github.com/personify-ai/chat-platform/internal/llm"
	"github.com/personify-ai/chat-platform/internal/model"
	"github.com/personify-ai/chat-platform/pkg/logger"
	"github.com/personify-ai/chat-platform/pkg/metrics"
)

// QuotaGate admits or denies a request and debits the user's allowance.
type QuotaGate interface {
	CheckAndDebit(ctx context.Context, userID, unlockToken string) (remaining int, err error)
}

// InstructionBuilder renders the system prompt for a conversation.
type InstructionBuilder interface {
	Build(ctx context.Context, conversationID string) (string, error)
}

// MemoryRetriever returns relevant prior exchanges as labeled text blocks.
type MemoryRetriever interface {
	Retrieve(ctx context.Context, conversationID string, terms []string) ([]string, error)
}

// Completer dispatches a completion call under the global throttle.
type Completer interface {
	Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
}

// ExchangeWriter persists the message pair and bumps conversation statistics.
type ExchangeWriter interface {
	AppendExchange(ctx context.Context, ex *model.Exchange) error
	IncrementMessageCount(ctx context.Context, conversationID string) error
}

// GenerationService owns the request state machine:
// RECEIVED -> ADMITTED -> CONTEXT_BUILT -> DISPATCHED -> PERSISTED -> RESPONDED,
// with REJECTED and FAILED exits.
type GenerationService struct {
	gate      QuotaGate
	builder   InstructionBuilder
	retriever MemoryRetriever
	completer Completer
	embedder  Embedder
	writer    ExchangeWriter
	events    *events.Publisher
	logger    *logger.Logger
}

// NewGenerationService wires the pipeline.
func NewGenerationService(
	gate QuotaGate,
	builder InstructionBuilder,
	retriever MemoryRetriever,
	completer Completer,
	embedder Embedder,
	writer ExchangeWriter,
	publisher *events.Publisher,
	log *logger.Logger,
) *GenerationService {
	return &GenerationService{
		gate:      gate,
		builder:   builder,
		retriever: retriever,
		completer: completer,
		embedder:  embedder,
		writer:    writer,
		events:    publisher,
		logger:    log,
	}
}

// Generate runs one end-to-end generation for an authenticated user.
//
// The quota debit is final once admission succeeds: a downstream provider or
// persistence failure does not refund it. On a persistence failure the
// assistant reply is still returned alongside the error, so callers can favor
// availability of the response over durability.
func (s *GenerationService) Generate(ctx context.Context, userID string, req *model.GenerateRequest) (*model.GenerateResponse, error) {
	start := time.Now()
	log := s.logger.With(
		zap.String("conversation_id", req.ConversationID),
		zap.String("user_id", userID),
	)

	// RECEIVED
	modelID, err := validateRequest(req)
	if err != nil {
		metrics.RecordGeneration("rejected", time.Since(start).Seconds())
		return nil, err
	}
	userMessage := req.Message.User
	tokenCount := llm.EstimateTokens(userMessage)

	// ADMITTED: the gate runs before any paid external call so denied
	// requests are never billed.
	remaining, err := s.gate.CheckAndDebit(ctx, userID, req.UnlockToken)
	if err != nil {
		metrics.RecordGeneration("rejected", time.Since(start).Seconds())
		return nil, err
	}
	log.Debug("generation admitted", zap.Int("remaining", remaining))
	s.events.Publish(ctx, &events.Event{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: req.ConversationID,
		UserID:         userID,
		Type:           events.TypeAdmitted,
		Engine:         engineOrDefault(req.Engine),
		CreatedAt:      time.Now(),
	})

	// CONTEXT_BUILT: instruction and retrieval are independent reads and
	// run concurrently.
	instructionText, memory, err := s.buildContext(ctx, req.ConversationID, userMessage)
	if err != nil {
		s.fail(ctx, userID, req, err)
		metrics.RecordGeneration("failed", time.Since(start).Seconds())
		return nil, err
	}

	messages := assembleMessages(instructionText, memory, userMessage)

	// DISPATCHED
	completion, err := s.completer.Complete(ctx, &llm.CompletionRequest{
		Model:            modelID,
		Messages:         messages,
		MaxTokens:        req.InferenceSettings.MaxTokens,
		Temperature:      req.InferenceSettings.Temperature,
		FrequencyPenalty: req.InferenceSettings.FrequencyPenalty,
		PresencePenalty:  req.InferenceSettings.PresencePenalty,
	})
	if err != nil {
		s.fail(ctx, userID, req, err)
		metrics.RecordGeneration("failed", time.Since(start).Seconds())
		return nil, err
	}

	resp := &model.GenerateResponse{
		Data:       model.GenerateReply{Role: "character", Content: completion.Content},
		Engine:     engineOrDefault(req.Engine),
		TokenCount: tokenCount,
		Remaining:  remaining,
	}

	// PERSISTED: the reply exists either way, so a failure past this point
	// returns the response together with the error.
	exchangeID, err := s.persist(ctx, userID, req.ConversationID, userMessage, completion.Content)
	if err != nil {
		log.Error("failed to persist exchange", zap.Error(err))
		s.fail(ctx, userID, req, err)
		metrics.RecordGeneration("persist_failed", time.Since(start).Seconds())
		return resp, err
	}
	resp.ExchangeID = exchangeID

	// RESPONDED
	s.events.Publish(ctx, &events.Event{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: req.ConversationID,
		UserID:         userID,
		Type:           events.TypeCompleted,
		Engine:         resp.Engine,
		CreatedAt:      time.Now(),
	})
	metrics.RecordGeneration("completed", time.Since(start).Seconds())
	log.Info("generation completed",
		zap.String("exchange_id", exchangeID),
		zap.Int("tokens_in", completion.TokensIn),
		zap.Int("tokens_out", completion.TokensOut),
		zap.Int64("provider_latency_ms", completion.LatencyMs),
	)
	return resp, nil
}

// buildContext runs the instruction builder and memory retriever in parallel.
func (s *GenerationService) buildContext(ctx context.Context, conversationID, userMessage string) (string, []string, error) {
	var (
		instructionText string
		memory          []string
		buildErr        error
		retrieveErr     error
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		memory, retrieveErr = s.retriever.Retrieve(ctx, conversationID, strings.Fields(userMessage))
	}()

	instructionText, buildErr = s.builder.Build(ctx, conversationID)
	<-done

	if buildErr != nil {
		return "", nil, buildErr
	}
	if retrieveErr != nil {
		return "", nil, retrieveErr
	}
	return instructionText, memory, nil
}

// persist embeds both turns in parallel and appends the exchange. The counter
// bump after a successful insert is best-effort; the insert is not rolled
// back if the statistic update fails.
func (s *GenerationService) persist(ctx context.Context, userID, conversationID, userMessage, charMessage string) (string, error) {
	var (
		userVector model.Vector
		charVector model.Vector
		userErr    error
		charErr    error
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		charVector, charErr = s.embedder.Embed(ctx, charMessage)
	}()
	userVector, userErr = s.embedder.Embed(ctx, userMessage)
	<-done

	if userErr != nil {
		return "", apperr.Wrap(apperr.CodePersistence, "failed to embed user message", userErr)
	}
	if charErr != nil {
		return "", apperr.Wrap(apperr.CodePersistence, "failed to embed assistant message", charErr)
	}

	ex := &model.Exchange{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		UserID:         userID,
		UserMessage:    userMessage,
		CharMessage:    charMessage,
		UserVector:     userVector,
		CharVector:     charVector,
		CreatedAt:      time.Now(),
	}

	if err := s.writer.AppendExchange(ctx, ex); err != nil {
		return "", err
	}
	metrics.ExchangesPersistedTotal.Inc()

	if err := s.writer.IncrementMessageCount(ctx, conversationID); err != nil {
		s.logger.Warn("failed to bump conversation message count",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	return ex.ID, nil
}

func (s *GenerationService) fail(ctx context.Context, userID string, req *model.GenerateRequest, cause error) {
	s.events.Publish(ctx, &events.Event{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: req.ConversationID,
		UserID:         userID,
		Type:           events.TypeFailed,
		Reason:         string(apperr.CodeOf(cause)),
		Engine:         engineOrDefault(req.Engine),
		CreatedAt:      time.Now(),
	})
}

// assembleMessages builds the provider message list: system instruction,
// optional memory block, then the user turn.
func assembleMessages(instructionText string, memory []string, userMessage string) []llm.ChatMessage {
	messages := []llm.ChatMessage{
		{Role: "system", Content: instructionText},
	}
	if block := strings.Join(memory, "\n\n"); block != "" {
		messages = append(messages, llm.ChatMessage{Role: "assistant", Content: block})
	}
	messages = append(messages, llm.ChatMessage{
		Role:    "user",
		Content: "### Instruction:\n" + userMessage + "\n\n### Response:",
	})
	return messages
}

const maxMessageLength = 100000

func validateRequest(req *model.GenerateRequest) (modelID string, err error) {
	if _, parseErr := uuid.Parse(req.ConversationID); parseErr != nil {
		return "", apperr.New(apperr.CodeValidation, "invalid conversation id")
	}
	text := req.Message.User
	if strings.TrimSpace(text) == "" {
		return "", apperr.New(apperr.CodeValidation, "message cannot be empty")
	}
	if len(text) > maxMessageLength {
		return "", apperr.New(apperr.CodeValidation, "message exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return "", apperr.New(apperr.CodeValidation, "message must be valid UTF-8")
	}
	if req.InferenceSettings.Temperature < 0 || req.InferenceSettings.Temperature > 2 {
		return "", apperr.New(apperr.CodeValidation, "temperature must be in [0,2]")
	}
	if req.InferenceSettings.MaxTokens < 0 {
		return "", apperr.New(apperr.CodeValidation, "max_tokens must be >= 0")
	}

	modelID, ok := llm.ResolveEngine(req.Engine)
	if !ok {
		return "", apperr.Newf(apperr.CodeValidation, "unknown engine %q", req.Engine)
	}
	return modelID, nil
}

func engineOrDefault(engine string) string {
	if engine == "" {
		return llm.DefaultEngine
	}
	return engine
}
