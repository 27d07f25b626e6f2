package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/llm"
	"github.com/personify-ai/chat-platform/internal/model"
	"github.com/personify-ai/chat-platform/pkg/logger"
)

const testConversationID = "0190c7a4-22cc-7000-8000-0123456789ab"

type stubGate struct {
	mu        sync.Mutex
	calls     int
	remaining int
	err       error
}

func (g *stubGate) CheckAndDebit(ctx context.Context, userID, unlockToken string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return 0, g.err
	}
	return g.remaining, nil
}

type stubBuilder struct {
	instruction string
	err         error
}

func (b *stubBuilder) Build(ctx context.Context, conversationID string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.instruction, nil
}

type stubRetriever struct {
	mu     sync.Mutex
	calls  int
	blocks []string
	err    error
}

func (r *stubRetriever) Retrieve(ctx context.Context, conversationID string, terms []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.blocks, nil
}

type stubCompleter struct {
	mu      sync.Mutex
	calls   int
	lastReq *llm.CompletionRequest
	resp    *llm.CompletionResponse
	err     error
}

func (c *stubCompleter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastReq = req
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

type stubEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) (model.Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return model.Vector{0.5, 0.5}, nil
}

type stubWriter struct {
	mu        sync.Mutex
	appends   int
	bumps     int
	exchange  *model.Exchange
	appendErr error
	bumpErr   error
}

func (w *stubWriter) AppendExchange(ctx context.Context, ex *model.Exchange) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appends++
	w.exchange = ex
	return w.appendErr
}

func (w *stubWriter) IncrementMessageCount(ctx context.Context, conversationID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bumps++
	return w.bumpErr
}

type fixture struct {
	gate      *stubGate
	builder   *stubBuilder
	retriever *stubRetriever
	completer *stubCompleter
	embedder  *stubEmbedder
	writer    *stubWriter
	svc       *GenerationService
}

func newFixture() *fixture {
	f := &fixture{
		gate:      &stubGate{remaining: 4},
		builder:   &stubBuilder{instruction: "You are **Aria**."},
		retriever: &stubRetriever{},
		completer: &stubCompleter{resp: &llm.CompletionResponse{Content: "Hello, traveler.", TokensIn: 20, TokensOut: 5}},
		embedder:  &stubEmbedder{},
		writer:    &stubWriter{},
	}
	f.svc = NewGenerationService(f.gate, f.builder, f.retriever, f.completer, f.embedder, f.writer, nil, logger.NewNop())
	return f
}

func validGenerateRequest() *model.GenerateRequest {
	return &model.GenerateRequest{
		ConversationID: testConversationID,
		Message:        model.GenerateMessage{User: "Tell me about the old city."},
	}
}

func TestGenerateHappyPath(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if resp.Data.Content != "Hello, traveler." {
		t.Errorf("reply = %q, want %q", resp.Data.Content, "Hello, traveler.")
	}
	if resp.Data.Role != "character" {
		t.Errorf("reply role = %q, want %q", resp.Data.Role, "character")
	}
	if resp.Engine != llm.DefaultEngine {
		t.Errorf("engine = %q, want %q", resp.Engine, llm.DefaultEngine)
	}
	if resp.Remaining != 4 {
		t.Errorf("remaining = %d, want 4", resp.Remaining)
	}
	if resp.ExchangeID == "" {
		t.Errorf("exchange id not set")
	}
	if resp.TokenCount != llm.EstimateTokens("Tell me about the old city.") {
		t.Errorf("token count = %d, want the estimate", resp.TokenCount)
	}

	if f.completer.calls != 1 {
		t.Errorf("completion calls = %d, want 1", f.completer.calls)
	}
	// One embed per persisted turn.
	if f.embedder.calls != 2 {
		t.Errorf("embedding calls = %d, want 2", f.embedder.calls)
	}
	if f.writer.appends != 1 {
		t.Errorf("exchange appends = %d, want 1", f.writer.appends)
	}
	if f.writer.bumps != 1 {
		t.Errorf("message count bumps = %d, want 1", f.writer.bumps)
	}
	if f.writer.exchange.UserMessage != "Tell me about the old city." {
		t.Errorf("persisted user message = %q", f.writer.exchange.UserMessage)
	}
	if f.writer.exchange.CharMessage != "Hello, traveler." {
		t.Errorf("persisted char message = %q", f.writer.exchange.CharMessage)
	}
}

func TestGenerateAssemblesProviderMessages(t *testing.T) {
	f := newFixture()
	f.retriever.blocks = []string{"{{user}}: hi\n{{char}}: hello"}

	if _, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	msgs := f.completer.lastReq.Messages
	if len(msgs) != 3 {
		t.Fatalf("message count = %d, want 3 (system, memory, user)", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "You are **Aria**." {
		t.Errorf("system turn = %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || !strings.Contains(msgs[1].Content, "{{char}}: hello") {
		t.Errorf("memory turn = %+v", msgs[1])
	}
	if msgs[2].Role != "user" {
		t.Errorf("user turn role = %q", msgs[2].Role)
	}
	if want := "### Instruction:\nTell me about the old city.\n\n### Response:"; msgs[2].Content != want {
		t.Errorf("user turn = %q, want %q", msgs[2].Content, want)
	}
	if f.completer.lastReq.Model != "sao10k/l3-lunaris-8b" {
		t.Errorf("model = %q, want the default engine's model", f.completer.lastReq.Model)
	}
}

func TestGenerateNoMemoryOmitsAssistantTurn(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	msgs := f.completer.lastReq.Messages
	if len(msgs) != 2 {
		t.Fatalf("message count = %d, want 2 (system, user)", len(msgs))
	}
}

func TestGenerateQuotaExhaustedSkipsPaidCalls(t *testing.T) {
	f := newFixture()
	f.gate.err = apperr.New(apperr.CodeQuotaExhausted, "message quota exhausted")

	_, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest())
	if apperr.CodeOf(err) != apperr.CodeQuotaExhausted {
		t.Fatalf("error code = %v, want %v", apperr.CodeOf(err), apperr.CodeQuotaExhausted)
	}

	if f.completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0", f.completer.calls)
	}
	if f.embedder.calls != 0 {
		t.Errorf("embedding calls = %d, want 0", f.embedder.calls)
	}
	if f.retriever.calls != 0 {
		t.Errorf("retrieval calls = %d, want 0", f.retriever.calls)
	}
	if f.writer.appends != 0 {
		t.Errorf("exchange appends = %d, want 0", f.writer.appends)
	}
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.GenerateRequest)
	}{
		{"bad conversation id", func(r *model.GenerateRequest) { r.ConversationID = "not-a-uuid" }},
		{"empty message", func(r *model.GenerateRequest) { r.Message.User = "   " }},
		{"oversized message", func(r *model.GenerateRequest) { r.Message.User = strings.Repeat("a", 100001) }},
		{"invalid utf8", func(r *model.GenerateRequest) { r.Message.User = "hi\xff" }},
		{"temperature too high", func(r *model.GenerateRequest) { r.InferenceSettings.Temperature = 2.5 }},
		{"negative max tokens", func(r *model.GenerateRequest) { r.InferenceSettings.MaxTokens = -1 }},
		{"unknown engine", func(r *model.GenerateRequest) { r.Engine = "No Such Engine" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := validGenerateRequest()
			tt.mutate(req)

			_, err := f.svc.Generate(context.Background(), "user-1", req)
			if apperr.CodeOf(err) != apperr.CodeValidation {
				t.Errorf("error code = %v, want %v", apperr.CodeOf(err), apperr.CodeValidation)
			}
			if f.gate.calls != 0 {
				t.Errorf("gate calls = %d, want 0 for invalid input", f.gate.calls)
			}
		})
	}
}

func TestGenerateBuilderFailureAfterDebit(t *testing.T) {
	f := newFixture()
	f.builder.err = apperr.New(apperr.CodeConversationNotFound, "conversation not found")

	_, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest())
	if apperr.CodeOf(err) != apperr.CodeConversationNotFound {
		t.Fatalf("error code = %v, want %v", apperr.CodeOf(err), apperr.CodeConversationNotFound)
	}
	if f.gate.calls != 1 {
		t.Errorf("gate calls = %d, want 1", f.gate.calls)
	}
	if f.completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0", f.completer.calls)
	}
}

func TestGenerateRetrieverFailureAborts(t *testing.T) {
	f := newFixture()
	f.retriever.err = apperr.New(apperr.CodeRetrieval, "hybrid search failed")

	_, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest())
	if apperr.CodeOf(err) != apperr.CodeRetrieval {
		t.Fatalf("error code = %v, want %v", apperr.CodeOf(err), apperr.CodeRetrieval)
	}
	if f.completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0", f.completer.calls)
	}
}

func TestGenerateCompletionFailureNoPersist(t *testing.T) {
	f := newFixture()
	f.completer.err = apperr.New(apperr.CodeCompletionProvider, "provider down")

	resp, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest())
	if apperr.CodeOf(err) != apperr.CodeCompletionProvider {
		t.Fatalf("error code = %v, want %v", apperr.CodeOf(err), apperr.CodeCompletionProvider)
	}
	if resp != nil {
		t.Errorf("response = %+v, want nil when no reply was produced", resp)
	}
	if f.writer.appends != 0 {
		t.Errorf("exchange appends = %d, want 0", f.writer.appends)
	}
}

func TestGeneratePersistFailureStillReturnsReply(t *testing.T) {
	f := newFixture()
	f.writer.appendErr = apperr.New(apperr.CodePersistence, "insert failed")

	resp, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest())
	if err == nil {
		t.Fatalf("Generate() error = nil, want persistence error")
	}
	if resp == nil {
		t.Fatalf("Generate() response = nil, want the reply alongside the error")
	}
	if resp.Data.Content != "Hello, traveler." {
		t.Errorf("reply = %q, want the generated content", resp.Data.Content)
	}
	if resp.ExchangeID != "" {
		t.Errorf("exchange id = %q, want empty for an unpersisted reply", resp.ExchangeID)
	}
}

func TestGenerateEmbedFailureStillReturnsReply(t *testing.T) {
	f := newFixture()
	f.embedder.err = errors.New("embedding provider down")

	resp, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest())
	if err == nil {
		t.Fatalf("Generate() error = nil, want embed failure")
	}
	if apperr.CodeOf(err) != apperr.CodePersistence {
		t.Errorf("error code = %v, want %v", apperr.CodeOf(err), apperr.CodePersistence)
	}
	if resp == nil || resp.Data.Content != "Hello, traveler." {
		t.Errorf("response = %+v, want the reply alongside the error", resp)
	}
}

func TestGenerateBumpFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.writer.bumpErr = errors.New("update failed")

	resp, err := f.svc.Generate(context.Background(), "user-1", validGenerateRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v, want nil when only the counter bump fails", err)
	}
	if resp.ExchangeID == "" {
		t.Errorf("exchange id not set")
	}
}
