package pipeline

import (
	"context"

	"github.com/docpilot/docpilot/model"
)

// ChunkFunc is a function that splits text into chunks with positions and
// derived metadata. Implementations must return an empty slice, not an
// error, for empty input.
type ChunkFunc func(text string) ([]model.Chunk, error)

// Pipeline combines chunking and embedding into one ingest step
type Pipeline struct {
	Chunker  ChunkFunc
	Embedder Embedder
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder Embedder) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// Process splits text into chunks and embeds them in a single batch call.
// Chunks come back in document order with their embeddings attached.
func (p *Pipeline) Process(ctx context.Context, text string) ([]model.Chunk, error) {
	chunks, err := p.Chunker(text)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []model.Chunk{}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	result, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	for i := range chunks {
		chunks[i].Embedding = result.Embeddings[i]
	}

	return chunks, nil
}
