// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Database settings
	DatabaseDSN          string
	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int

	// NATS settings (generation lifecycle events; optional)
	NATSURL     string
	NATSToken   string
	NATSEnabled bool

	// JWT settings (bearer auth and unlock tokens)
	JWTSecret string

	// Provider settings
	CompletionProvider string
	OpenRouterAPIKey   string
	OpenRouterBaseURL  string
	AnthropicAPIKey    string
	OpenAIAPIKey       string

	// Embedding settings
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingTimeout    time.Duration

	// Completion dispatcher settings
	DispatcherMaxConcurrent int
	DispatcherMinSpacing    time.Duration
	DispatcherTimeout       time.Duration

	// Quota settings
	QuotaInitial   int
	QuotaReplenish int
	UnlockTokenTTL time.Duration

	// Retrieval settings
	RetrievalPageSize      int
	RetrievalLexicalWeight float64
	RetrievalMinScore      float64
	RetrievalTimeout       time.Duration

	// Rate limiting (HTTP layer, per client)
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Database
		DatabaseDSN:          getEnv("DATABASE_DSN", "host=localhost user=postgres dbname=chat port=5432 sslmode=disable"),
		DatabaseMaxOpenConns: getIntEnv("DATABASE_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns: getIntEnv("DATABASE_MAX_IDLE_CONNS", 5),

		// NATS
		NATSURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		NATSToken:   getEnv("NATS_TOKEN", ""),
		NATSEnabled: getBoolEnv("NATS_ENABLED", false),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Providers
		CompletionProvider: getEnv("COMPLETION_PROVIDER", "openrouter"),
		OpenRouterAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:  getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),

		// Embeddings
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
		EmbeddingDimensions: getIntEnv("EMBEDDING_DIMENSIONS", 1536),
		EmbeddingTimeout:    getDurationEnv("EMBEDDING_TIMEOUT", 10*time.Second),

		// Dispatcher
		DispatcherMaxConcurrent: getIntEnv("DISPATCHER_MAX_CONCURRENT", 30),
		DispatcherMinSpacing:    getDurationEnv("DISPATCHER_MIN_SPACING", 200*time.Millisecond),
		DispatcherTimeout:       getDurationEnv("DISPATCHER_TIMEOUT", 15*time.Second),

		// Quota
		QuotaInitial:   getIntEnv("QUOTA_INITIAL", 15),
		QuotaReplenish: getIntEnv("QUOTA_REPLENISH", 15),
		UnlockTokenTTL: getDurationEnv("UNLOCK_TOKEN_TTL", 15*time.Second),

		// Retrieval
		RetrievalPageSize:      getIntEnv("RETRIEVAL_PAGE_SIZE", 25),
		RetrievalLexicalWeight: getFloatEnv("RETRIEVAL_LEXICAL_WEIGHT", 0.5),
		RetrievalMinScore:      getFloatEnv("RETRIEVAL_MIN_SCORE", 0.0),
		RetrievalTimeout:       getDurationEnv("RETRIEVAL_TIMEOUT", 10*time.Second),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
