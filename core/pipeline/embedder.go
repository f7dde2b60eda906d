package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/docpilot/docpilot/helper"
	"github.com/docpilot/docpilot/model"
	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// DefaultEmbeddingModel is the sentence transformer used when no remote
// embedding service is configured. It produces 384-dimensional embeddings.
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// BatchResult is the outcome of a batch embedding call. Truncated lists the
// indexes of inputs that were cut to the maximum input length; truncation is
// reported, never treated as a failure.
type BatchResult struct {
	Embeddings     [][]float32
	TotalTokens    int
	Truncated      []int
	ProcessingTime time.Duration
}

// Embedder generates vector embeddings for text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error)
	Dimensions() int
	HealthStatus(ctx context.Context) error
	Close() error
}

// LocalEmbedder runs a sentence transformer model in-process through hugot
type LocalEmbedder struct {
	session    *hugot.Session
	pipeline   *pipelines.FeatureExtractionPipeline
	dimensions int
}

// NewLocalEmbedder loads the given sentence transformer model and returns an
// embedder backed by it. An empty model name selects the default model.
func NewLocalEmbedder(modelName string) (*LocalEmbedder, error) {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}

	// Prepare model (download if needed)
	modelPath, err := helper.PrepareModel(modelName, "")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	// Create sentence transformers pipeline configuration
	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	embedder := &LocalEmbedder{
		session:  session,
		pipeline: sentencePipeline,
	}

	// Probe once to learn the model's output dimension
	probe, err := sentencePipeline.RunPipeline([]string{"dimension probe"})
	if err != nil || len(probe.Embeddings) == 0 {
		session.Destroy()
		return nil, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	embedder.dimensions = len(probe.Embeddings[0])

	return embedder, nil
}

// Embed generates an embedding for a single text
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding generated")
	}
	return result.Embeddings[0], nil
}

// EmbedBatch generates embeddings for all texts. An empty input returns a
// zero-value result without touching the model.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	if len(texts) == 0 {
		return &BatchResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	return &BatchResult{
		Embeddings:     result.Embeddings,
		ProcessingTime: time.Since(start),
	}, nil
}

// Dimensions returns the embedding dimension of the loaded model
func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

// HealthStatus embeds a probe string and verifies the output dimension
func (e *LocalEmbedder) HealthStatus(ctx context.Context) error {
	embedding, err := e.Embed(ctx, "health probe")
	if err != nil {
		return fmt.Errorf("embedder health check failed: %w", err)
	}
	if len(embedding) != e.dimensions {
		return fmt.Errorf("embedder health check failed: %w: got %d dimensions, expected %d", model.ErrDimensionMismatch, len(embedding), e.dimensions)
	}
	return nil
}

// Close releases the model session
func (e *LocalEmbedder) Close() error {
	return e.session.Destroy()
}
