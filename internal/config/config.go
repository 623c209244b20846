// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// Mistral chat + embeddings (OpenAI-compatible wire format).
	MistralAPIKey   string `env:"MISTRAL_API_KEY"`
	MistralBaseURL  string `env:"MISTRAL_BASE_URL" envDefault:"https://api.mistral.ai/v1"`
	ChatModel       string `env:"CHAT_MODEL" envDefault:"mistral-small-latest"`
	EmbeddingsModel string `env:"EMBEDDINGS_MODEL" envDefault:"mistral-embed"`
	ChatMaxTokens   int    `env:"CHAT_MAX_TOKENS" envDefault:"1024"`

	// Vector store.
	QdrantURL       string `env:"QDRANT_URL" envDefault:"http://localhost:6333"`
	QdrantAPIKey    string `env:"QDRANT_API_KEY"`
	EssayCollection string `env:"ESSAY_COLLECTION" envDefault:"task2_essays"`
	VectorSize      int    `env:"VECTOR_SIZE" envDefault:"1024"`

	// Retrieval knobs; the defaults match the original scoring pipeline.
	RetrievalTopK       int     `env:"RETRIEVAL_TOP_K" envDefault:"5"`
	SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD" envDefault:"0.7"`

	// Optional YAML file overriding the built-in scoring rubric descriptions.
	RubricPath string `env:"RUBRIC_PATH"`

	// Dataset ingestion.
	DatasetPath      string        `env:"DATASET_PATH" envDefault:"data/ielts_writing_dataset.csv"`
	IngestBatchSize  int           `env:"INGEST_BATCH_SIZE" envDefault:"16"`
	IngestBatchDelay time.Duration `env:"INGEST_BATCH_DELAY" envDefault:"3s"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"ielts-essay-evaluator"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPRequestTimeout    time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"120s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"150s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }
