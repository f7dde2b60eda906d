package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpilot/docpilot/model"
)

// fakeEmbedder records batch calls and returns deterministic embeddings
// derived from the input length.
type fakeEmbedder struct {
	batchCalls int
	failWith   error
	dims       int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return result.Embeddings[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) (*BatchResult, error) {
	f.batchCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = []float32{float32(len(text)), float32(i), 0, 0}
	}
	return &BatchResult{Embeddings: embeddings, TotalTokens: len(texts)}, nil
}

func (f *fakeEmbedder) Dimensions() int {
	if f.dims > 0 {
		return f.dims
	}
	return 4
}

func (f *fakeEmbedder) HealthStatus(context.Context) error { return nil }

func (f *fakeEmbedder) Close() error { return nil }

func TestNewPipeline(t *testing.T) {
	embedder := &fakeEmbedder{}
	pipeline := NewPipeline(NewChunker(DefaultChunkOptions()), embedder)

	require.NotNil(t, pipeline)
	assert.NotNil(t, pipeline.Chunker)
	assert.Equal(t, embedder, pipeline.Embedder)
}

func TestPipelineProcess(t *testing.T) {
	t.Run("Chunks get embeddings attached in order", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		pipeline := NewPipeline(NewChunker(ChunkOptions{
			ChunkSize:          120,
			ChunkOverlap:       0,
			PreserveParagraphs: true,
			MinChunkSize:       10,
		}), embedder)

		text := strings.Repeat("first paragraph content ", 4) + "\n\n" + strings.Repeat("second paragraph content ", 4)
		chunks, err := pipeline.Process(context.Background(), text)

		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, 1, embedder.batchCalls, "Expected a single batch call for all chunks")
		for i, chunk := range chunks {
			require.NotEmpty(t, chunk.Embedding, "Expected every chunk to carry an embedding")
			assert.Equal(t, float32(len(chunk.Content)), chunk.Embedding[0], "Expected embeddings attached in chunk order")
			assert.Equal(t, float32(i), chunk.Embedding[1])
		}
	})

	t.Run("Empty input skips the embedder", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		pipeline := NewPipeline(NewChunker(DefaultChunkOptions()), embedder)

		chunks, err := pipeline.Process(context.Background(), "   ")

		require.NoError(t, err)
		assert.Empty(t, chunks)
		assert.Equal(t, 0, embedder.batchCalls, "Expected no batch call for empty input")
	})

	t.Run("Chunker error is returned", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		failing := ChunkFunc(func(string) ([]model.Chunk, error) {
			return nil, fmt.Errorf("bad input")
		})
		pipeline := NewPipeline(failing, embedder)

		_, err := pipeline.Process(context.Background(), "text")

		require.Error(t, err)
		assert.Equal(t, 0, embedder.batchCalls, "Expected embedder untouched on chunker failure")
	})

	t.Run("Embedder error is returned", func(t *testing.T) {
		embedder := &fakeEmbedder{failWith: errors.New("embedding backend down")}
		pipeline := NewPipeline(NewChunker(DefaultChunkOptions()), embedder)

		_, err := pipeline.Process(context.Background(), "some content to embed")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding backend down")
	})
}
