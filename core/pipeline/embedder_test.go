package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalEmbedder(t *testing.T) {
	// Note: LocalEmbedder uses hugot which requires downloading models
	// These tests may take longer on first run

	t.Run("Create embedder successfully", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping LocalEmbedder test in short mode (requires model download)")
		}

		embedder, err := NewLocalEmbedder("")

		require.NoError(t, err)
		require.NotNil(t, embedder)
		defer embedder.Close()

		assert.Equal(t, 384, embedder.Dimensions(), "all-MiniLM-L6-v2 produces 384-dimensional embeddings")
	})

	t.Run("Generate embedding for text", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping LocalEmbedder test in short mode (requires model download)")
		}

		embedder, err := NewLocalEmbedder("")
		require.NoError(t, err)
		defer embedder.Close()

		embedding, err := embedder.Embed(context.Background(), "This is a test sentence.")

		require.NoError(t, err)
		assert.Equal(t, embedder.Dimensions(), len(embedding))

		// Verify embedding contains non-zero values
		hasNonZero := false
		for _, val := range embedding {
			if val != 0 {
				hasNonZero = true
				break
			}
		}
		assert.True(t, hasNonZero, "Embedding should contain non-zero values")
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping LocalEmbedder test in short mode (requires model download)")
		}

		embedder, err := NewLocalEmbedder("")
		require.NoError(t, err)
		defer embedder.Close()

		embedding1, err1 := embedder.Embed(context.Background(), "Deterministic embedding test")
		require.NoError(t, err1)
		embedding2, err2 := embedder.Embed(context.Background(), "Deterministic embedding test")
		require.NoError(t, err2)

		require.Equal(t, len(embedding1), len(embedding2))
		for i := range embedding1 {
			assert.InDelta(t, embedding1[i], embedding2[i], 0.0001, "Same text should produce same embedding")
		}
	})

	t.Run("Batch keeps input order", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping LocalEmbedder test in short mode (requires model download)")
		}

		embedder, err := NewLocalEmbedder("")
		require.NoError(t, err)
		defer embedder.Close()

		texts := []string{"First input text.", "Second input text.", "Third input text."}
		result, err := embedder.EmbedBatch(context.Background(), texts)

		require.NoError(t, err)
		require.Len(t, result.Embeddings, len(texts))

		single, err := embedder.Embed(context.Background(), texts[1])
		require.NoError(t, err)
		for i := range single {
			assert.InDelta(t, single[i], result.Embeddings[1][i], 0.0001, "Batch embeddings should match single embeddings positionally")
		}
	})

	t.Run("Empty batch skips the model", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping LocalEmbedder test in short mode (requires model download)")
		}

		embedder, err := NewLocalEmbedder("")
		require.NoError(t, err)
		defer embedder.Close()

		result, err := embedder.EmbedBatch(context.Background(), nil)

		require.NoError(t, err)
		assert.Empty(t, result.Embeddings)
		assert.Empty(t, result.Truncated)
	})

	t.Run("Cancelled context is rejected", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping LocalEmbedder test in short mode (requires model download)")
		}

		embedder, err := NewLocalEmbedder("")
		require.NoError(t, err)
		defer embedder.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = embedder.EmbedBatch(ctx, []string{"text"})
		assert.Error(t, err, "Expected cancelled context to be rejected")
	})

	t.Run("Health status reports healthy", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping LocalEmbedder test in short mode (requires model download)")
		}

		embedder, err := NewLocalEmbedder("")
		require.NoError(t, err)
		defer embedder.Close()

		assert.NoError(t, embedder.HealthStatus(context.Background()))
	})
}
