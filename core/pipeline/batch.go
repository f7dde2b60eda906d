package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values for the remote embedder.
const (
	DefaultRemoteBaseURL     = "https://api.openai.com/v1"
	DefaultRemoteModel       = "text-embedding-3-small"
	DefaultRemoteTimeout     = 60 * time.Second
	DefaultMaxInputChars     = 8000
	DefaultBatchSize         = 100
	DefaultRequestsPerMinute = 60
	maxBatchSize             = 100
)

// Known dimensions for common embedding models.
var remoteModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// RemoteEmbedderConfig holds configuration for an OpenAI-compatible
// embedding endpoint.
type RemoteEmbedderConfig struct {
	// APIKey authenticates against the endpoint (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions overrides the default dimension for the model.
	Dimensions int

	// MaxInputChars is the per-input truncation limit (default: 8000).
	MaxInputChars int

	// BatchSize is the number of inputs per request, capped at 100.
	BatchSize int

	// RequestsPerMinute throttles requests through a shared token bucket
	// (default: 60).
	RequestsPerMinute int
}

// RemoteEmbedder generates embeddings through an OpenAI-compatible API.
// All requests of one embedder share a token-bucket limiter, so concurrent
// batch operations never exceed the configured request rate.
type RemoteEmbedder struct {
	client        *http.Client
	limiter       *rate.Limiter
	baseURL       string
	apiKey        string
	model         string
	dimensions    int
	maxInputChars int
	batchSize     int
}

// embeddingRequest is the OpenAI API request format.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI API response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewRemoteEmbedder creates an embedder backed by an OpenAI-compatible API
func NewRemoteEmbedder(cfg RemoteEmbedderConfig) (*RemoteEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("remote embedder: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRemoteBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRemoteModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		var ok bool
		dimensions, ok = remoteModelDimensions[cfg.Model]
		if !ok {
			dimensions = 1536
		}
	}

	return &RemoteEmbedder{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:       rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		dimensions:    dimensions,
		maxInputChars: cfg.MaxInputChars,
		batchSize:     cfg.BatchSize,
	}, nil
}

// Embed generates an embedding for a single text
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("remote embedder: no embedding returned")
	}
	return result.Embeddings[0], nil
}

// EmbedBatch generates embeddings for all texts. Inputs beyond the
// configured character limit are truncated and reported in the result.
// Batches are sent sequentially; a failing batch aborts the whole
// operation. An empty input returns a zero-value result without any
// network I/O.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	if len(texts) == 0 {
		return &BatchResult{}, nil
	}

	start := time.Now()
	result := &BatchResult{
		Embeddings: make([][]float32, len(texts)),
	}

	prepared := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > e.maxInputChars {
			text = text[:e.maxInputChars]
			result.Truncated = append(result.Truncated, i)
		}
		prepared[i] = text
	}

	for offset := 0; offset < len(prepared); offset += e.batchSize {
		end := offset + e.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("remote embedder: rate limit wait: %w", err)
		}

		embeddings, tokens, err := e.embedRequest(ctx, prepared[offset:end])
		if err != nil {
			return nil, fmt.Errorf("remote embedder: batch starting at %d: %w", offset, err)
		}

		for i, embedding := range embeddings {
			result.Embeddings[offset+i] = embedding
		}
		result.TotalTokens += tokens
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}

func (e *RemoteEmbedder) embedRequest(ctx context.Context, texts []string) ([][]float32, int, error) {
	jsonBody, err := json.Marshal(embeddingRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.baseURL+"/embeddings",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	var embedResp embeddingResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}

	if embedResp.Error != nil {
		return nil, 0, fmt.Errorf("api error: %s", embedResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(embedResp.Data) != len(texts) {
		return nil, 0, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(embedResp.Data), len(texts))
	}

	// Convert float64 to float32 and order by index
	embeddings := make([][]float32, len(texts))
	for _, data := range embedResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, 0, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		embedding := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			embedding[i] = float32(v)
		}
		embeddings[data.Index] = embedding
	}

	return embeddings, embedResp.Usage.TotalTokens, nil
}

// Dimensions returns the embedding vector size
func (e *RemoteEmbedder) Dimensions() int {
	return e.dimensions
}

// HealthStatus embeds a probe string and verifies the output dimension
func (e *RemoteEmbedder) HealthStatus(ctx context.Context) error {
	embedding, err := e.Embed(ctx, "health probe")
	if err != nil {
		return fmt.Errorf("embedder health check failed: %w", err)
	}
	if len(embedding) != e.dimensions {
		return fmt.Errorf("embedder health check failed: got %d dimensions, expected %d", len(embedding), e.dimensions)
	}
	return nil
}

// Close releases resources
func (e *RemoteEmbedder) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
