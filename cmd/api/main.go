// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/personify-ai/chat-platform/internal/config"
	"github.com/personify-ai/chat-platform/internal/embedding"
	"github.com/personify-ai/chat-platform/internal/events"
	"github.com/personify-ai/chat-platform/internal/handler"
	"github.com/personify-ai/chat-platform/internal/instruction"
	"github.com/personify-ai/chat-platform/internal/llm"
	"github.com/personify-ai/chat-platform/internal/memory"
	"github.com/personify-ai/chat-platform/internal/middleware"
	"github.com/personify-ai/chat-platform/internal/quota"
	"github.com/personify-ai/chat-platform/internal/service"
	"github.com/personify-ai/chat-platform/internal/store"
	"github.com/personify-ai/chat-platform/pkg/logger"
	"github.com/personify-ai/chat-platform/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Storage collaborator
	st, err := store.New(cfg)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		os.Exit(1)
	}

	// Lifecycle event publisher (optional)
	var publisher *events.Publisher
	if cfg.NATSEnabled {
		publisher, err = events.Connect(ctx, cfg.NATSURL, cfg.NATSToken, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer publisher.Close()
	}

	// Embedding client
	embedder, err := embedding.NewClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel,
		cfg.EmbeddingDimensions, cfg.EmbeddingTimeout)
	if err != nil {
		log.Error("failed to create embedding client", zap.Error(err))
		os.Exit(1)
	}

	// Completion provider behind the global dispatcher
	var provider llm.Client
	switch cfg.CompletionProvider {
	case "anthropic":
		provider, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	case "openai":
		provider, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	default:
		provider, err = llm.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL)
	}
	if err != nil {
		log.Error("failed to create completion client", zap.Error(err))
		os.Exit(1)
	}

	dispatcher := llm.NewDispatcher(provider, llm.DispatcherConfig{
		MaxConcurrent: cfg.DispatcherMaxConcurrent,
		MinSpacing:    cfg.DispatcherMinSpacing,
		Timeout:       cfg.DispatcherTimeout,
	}, log)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Pipeline components
	retriever, err := memory.NewRetriever(embedder, st, memory.Options{
		PageSize:      cfg.RetrievalPageSize,
		LexicalWeight: cfg.RetrievalLexicalWeight,
		MinScore:      cfg.RetrievalMinScore,
		Timeout:       cfg.RetrievalTimeout,
	})
	if err != nil {
		log.Error("invalid retrieval options", zap.Error(err))
		os.Exit(1)
	}

	builder := instruction.NewBuilder(st)
	gate := quota.NewGate(st, quota.Config{
		Secret:    cfg.JWTSecret,
		Initial:   cfg.QuotaInitial,
		Replenish: cfg.QuotaReplenish,
		TokenTTL:  cfg.UnlockTokenTTL,
	}, log)

	generationSvc := service.NewGenerationService(
		gate, builder, retriever, dispatcher, embedder, st, publisher, log)

	// Handlers and operation registry
	healthHandler := handler.NewHealthHandler(st, publisher)
	generateHandler := handler.NewGenerateHandler(generationSvc, log)
	unlockHandler := handler.NewUnlockHandler(gate, log)
	characterHandler := handler.NewCharacterHandler(st, log)

	registry := handler.NewRegistry()
	registry.Register("Generate", generateHandler.Generate)
	registry.Register("GetUnlockToken", unlockHandler.GetUnlockToken)
	registry.Register("CreateCharacter", characterHandler.CreateCharacter)
	registry.Register("CreateConversation", characterHandler.CreateConversation)
	log.Info("operations registered", zap.Strings("operations", registry.Operations()))

	// Router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Post("/ops/{operation}", registry.Dispatch)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
