package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithEnvVars(t *testing.T) {
	os.Setenv("BURROW_SESSION_TOKEN", "test-token")
	os.Setenv("BURROW_ADDR", "127.0.0.1:9090")
	os.Setenv("BURROW_DEBUG", "true")
	os.Setenv("BURROW_VECTOR_BACKEND", "memory")
	os.Setenv("BURROW_LLM_MODELS", "qwen3:8b, llama3.2:3b")
	os.Setenv("BURROW_RATE_LIMIT_MAX", "5")
	defer func() {
		os.Unsetenv("BURROW_SESSION_TOKEN")
		os.Unsetenv("BURROW_ADDR")
		os.Unsetenv("BURROW_DEBUG")
		os.Unsetenv("BURROW_VECTOR_BACKEND")
		os.Unsetenv("BURROW_LLM_MODELS")
		os.Unsetenv("BURROW_RATE_LIMIT_MAX")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.SessionToken)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "memory", cfg.VectorBackend)
	assert.Equal(t, []string{"qwen3:8b", "llama3.2:3b"}, cfg.Models())
	assert.Equal(t, 5, cfg.RateLimitMax)
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("BURROW_SESSION_TOKEN", "test-token")
	defer os.Unsetenv("BURROW_SESSION_TOKEN")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8642", cfg.Addr)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "sqlite", cfg.VectorBackend)
	assert.Equal(t, "http://127.0.0.1:11434/v1", cfg.LLMBaseURL)
	assert.Equal(t, 800, cfg.ChunkMaxChars)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 4, cfg.TopKDefault)
	assert.Equal(t, 10, cfg.RateLimitMax)
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 768, cfg.EmbeddingDim)
	assert.False(t, cfg.HasSentry())
	assert.False(t, cfg.HasDataDir())
}

func TestLoad_RequiredSessionToken(t *testing.T) {
	os.Unsetenv("BURROW_SESSION_TOKEN")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_TOKEN")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			ChunkMaxChars:      800,
			ChunkOverlap:       100,
			RateLimitMax:       10,
			RateLimitWindow:    time.Minute,
			AgentMaxIterations: 6,
			AgentTimeout:       time.Minute,
			EmbeddingDim:       768,
			VectorBackend:      "memory",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"overlap not smaller", func(c *Config) { c.ChunkOverlap = 800 }, "CHUNK_OVERLAP"},
		{"zero window", func(c *Config) { c.RateLimitWindow = 0 }, "rate limit"},
		{"zero iterations", func(c *Config) { c.AgentMaxIterations = 0 }, "agent"},
		{"unknown backend", func(c *Config) { c.VectorBackend = "chroma" }, "VECTOR_BACKEND"},
		{"pgvector needs url", func(c *Config) { c.VectorBackend = "pgvector" }, "DATABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestModels_TrimsAndSkipsEmpty(t *testing.T) {
	cfg := &Config{LLMModels: " qwen3:1.7b ,, qwen3:8b "}
	assert.Equal(t, []string{"qwen3:1.7b", "qwen3:8b"}, cfg.Models())
}
