//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integrationClient(t *testing.T) *Client {
	t.Helper()
	baseURL := os.Getenv("BURROW_LLM_BASE_URL")
	if baseURL == "" {
		t.Skip("BURROW_LLM_BASE_URL not set, skipping integration test")
	}

	client, err := NewClient(Config{
		BaseURL: baseURL,
		Models:  []string{"qwen3:1.7b"},
	})
	require.NoError(t, err)
	return client
}

func TestIntegration_GenerateEmbedding_LocalDaemon(t *testing.T) {
	client := integrationClient(t)

	embedding, err := client.GenerateEmbedding(context.Background(),
		"This is a test document for generating embeddings.")

	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestIntegration_Complete_LocalDaemon(t *testing.T) {
	client := integrationClient(t)

	completion, err := client.Complete(context.Background(),
		"SYSTEM:\nAnswer in one word.\n\nUSER QUESTION:\nWhat color is the sky on a clear day?\n\nFINAL ANSWER:")

	require.NoError(t, err)
	assert.NotEmpty(t, completion.Text)
}
