package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr  string `envconfig:"ADDR" default:"127.0.0.1:8642"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Session identity is operator-issued; the daemon only verifies it.
	SessionToken string        `envconfig:"SESSION_TOKEN" required:"true"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"30m"`

	// Local OpenAI-compatible endpoint (Ollama serves /v1 natively).
	LLMBaseURL     string        `envconfig:"LLM_BASE_URL" default:"http://127.0.0.1:11434/v1"`
	LLMAPIKey      string        `envconfig:"LLM_API_KEY"`
	LLMModels      string        `envconfig:"LLM_MODELS" default:"qwen3:1.7b,qwen3:8b"`
	LLMTimeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`
	EmbeddingModel string        `envconfig:"EMBEDDING_MODEL" default:"nomic-embed-text"`
	EmbeddingDim   int           `envconfig:"EMBEDDING_DIM" default:"768"`

	// Vector index backend: memory, sqlite, pgvector, or qdrant.
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"sqlite"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"./burrow/index.db"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	QdrantAddr    string `envconfig:"QDRANT_ADDR" default:"127.0.0.1:6334"`
	Collection    string `envconfig:"COLLECTION" default:"burrow_chunks"`

	DataDir         string        `envconfig:"DATA_DIR"`
	ReindexInterval time.Duration `envconfig:"REINDEX_INTERVAL" default:"5m"`
	AuditLogPath    string        `envconfig:"AUDIT_LOG_PATH" default:"./burrow/logs/audit.log"`

	ChunkMaxChars int `envconfig:"CHUNK_MAX_CHARS" default:"800"`
	ChunkOverlap  int `envconfig:"CHUNK_OVERLAP" default:"100"`

	TopKDefault     int `envconfig:"TOP_K_DEFAULT" default:"4"`
	TopKMax         int `envconfig:"TOP_K_MAX" default:"16"`
	MaxQueryChars   int `envconfig:"MAX_QUERY_CHARS" default:"500"`
	MaxContextChars int `envconfig:"MAX_CONTEXT_CHARS" default:"6000"`

	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"10"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`

	AgentMaxIterations int           `envconfig:"AGENT_MAX_ITERATIONS" default:"6"`
	AgentTimeout       time.Duration `envconfig:"AGENT_TIMEOUT" default:"60s"`

	// Telemetry stays off unless a DSN is supplied; the default
	// deployment makes no outbound calls.
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("BURROW", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate enforces cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.ChunkOverlap >= c.ChunkMaxChars {
		return fmt.Errorf("invalid config: CHUNK_OVERLAP (%d) must be smaller than CHUNK_MAX_CHARS (%d)", c.ChunkOverlap, c.ChunkMaxChars)
	}
	if c.ChunkMaxChars <= 0 || c.ChunkOverlap < 0 {
		return fmt.Errorf("invalid config: chunk sizes must be positive")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("invalid config: rate limit max and window must be positive")
	}
	if c.AgentMaxIterations <= 0 || c.AgentTimeout <= 0 {
		return fmt.Errorf("invalid config: agent iteration and time bounds must be positive")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("invalid config: EMBEDDING_DIM must be positive")
	}
	switch c.VectorBackend {
	case "memory", "sqlite", "pgvector", "qdrant":
	default:
		return fmt.Errorf("invalid config: unknown VECTOR_BACKEND %q", c.VectorBackend)
	}
	if c.VectorBackend == "pgvector" && c.DatabaseURL == "" {
		return fmt.Errorf("invalid config: DATABASE_URL is required for the pgvector backend")
	}
	return nil
}

// Models returns the completion model fallback list in priority order.
func (c *Config) Models() []string {
	parts := strings.Split(c.LLMModels, ",")
	models := make([]string, 0, len(parts))
	for _, p := range parts {
		if m := strings.TrimSpace(p); m != "" {
			models = append(models, m)
		}
	}
	return models
}

// HasDataDir reports whether the directory reindex worker should run.
func (c *Config) HasDataDir() bool {
	return c.DataDir != ""
}

// HasSentry reports whether telemetry is configured.
func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
