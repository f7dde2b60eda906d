package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docpilot/docpilot/core/pipeline"
	"github.com/docpilot/docpilot/model"
)

// ChunkStore is the persistence surface the engine searches against
type ChunkStore interface {
	UpsertChunk(chunk *model.Chunk) error
	SelectChunksBySimilarity(embedding []float32, limit int, threshold float64, documentRIDs []uuid.UUID) ([]*model.Chunk, error)
	SearchChunksByText(query string, limit int, documentRIDs []uuid.UUID) ([]*model.Chunk, error)
	DeleteChunksByDocument(documentRID uuid.UUID) (int64, error)
	CountChunks() (int64, error)
}

// Engine provides text, vector and hybrid retrieval over indexed chunks
type Engine struct {
	store    ChunkStore
	embedder pipeline.Embedder
}

// NewEngine creates a new retrieval engine
func NewEngine(store ChunkStore, embedder pipeline.Embedder) *Engine {
	return &Engine{
		store:    store,
		embedder: embedder,
	}
}

// withDefaults fills missing configuration values. A nil config selects the
// default configuration.
func withDefaults(config *model.QueryConfig) *model.QueryConfig {
	defaults := model.DefaultQueryConfig()
	if config == nil {
		return &defaults
	}

	filled := *config
	if filled.TopK <= 0 {
		filled.TopK = defaults.TopK
	}
	if filled.TextWeight <= 0 && filled.VectorWeight <= 0 {
		filled.TextWeight = defaults.TextWeight
		filled.VectorWeight = defaults.VectorWeight
	}
	if filled.TextOnlyBoost <= 0 {
		filled.TextOnlyBoost = defaults.TextOnlyBoost
	}
	return &filled
}

// IndexChunks embeds all chunks of a document in one batch and upserts them.
// Upsert failures are reported per chunk, not as an overall failure; only an
// embedding failure aborts the whole operation.
func (e *Engine) IndexChunks(ctx context.Context, document *model.Document, chunks []model.Chunk) ([]model.IndexResult, error) {
	if len(chunks) == 0 {
		return []model.IndexResult{}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	batch, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunk batch: %w", err)
	}

	results := make([]model.IndexResult, len(chunks))
	for i := range chunks {
		chunk := chunks[i]
		chunk.DocumentID = document.ID
		chunk.DocumentRID = document.RID
		chunk.Embedding = batch.Embeddings[i]

		result := model.IndexResult{ChunkIndex: chunk.Index}
		if err := e.store.UpsertChunk(&chunk); err != nil {
			result.Err = err
		} else {
			result.ChunkID = chunk.ID
		}
		results[i] = result
	}

	return results, nil
}

// TextSearch performs full-text search over chunk content. Rank scores are
// normalized against the best hit of the set, so the top result scores 1.
func (e *Engine) TextSearch(ctx context.Context, query string, config *model.QueryConfig) (*model.SearchResultSet, error) {
	config = withDefaults(config)

	chunks, err := e.store.SearchChunksByText(query, config.TopK, config.DocumentRIDs)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	return &model.SearchResultSet{Results: textResults(chunks)}, nil
}

// VectorSearch embeds the query and performs cosine similarity search.
// Relevance thresholds are left to the caller, so low-similarity hits stay
// visible for routing decisions.
func (e *Engine) VectorSearch(ctx context.Context, query string, config *model.QueryConfig) (*model.SearchResultSet, error) {
	config = withDefaults(config)

	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	chunks, err := e.store.SelectChunksBySimilarity(embedding, config.TopK, 0, config.DocumentRIDs)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]model.SearchResult, len(chunks))
	for i, chunk := range chunks {
		result := searchResult(chunk, model.SearchMethodVector)
		if chunk.Similarity != nil {
			score := *chunk.Similarity
			result.Score = score
			result.VectorScore = &score
		}
		results[i] = result
	}

	return &model.SearchResultSet{Results: results}, nil
}

// hybridHit collects the per-signal scores of one chunk during the union
type hybridHit struct {
	chunk       *model.Chunk
	textScore   *float64
	vectorScore *float64
	highlight   string
}

// HybridSearch runs text and vector search concurrently and blends their
// scores. The combined score is a weighted average normalized over the
// signals that are present; text-only hits are multiplied by the configured
// boost. A vector subsystem failure degrades the set to text-only results
// instead of failing, as long as text search produced matches.
func (e *Engine) HybridSearch(ctx context.Context, query string, config *model.QueryConfig) (*model.SearchResultSet, error) {
	config = withDefaults(config)

	var (
		textChunks   []*model.Chunk
		textErr      error
		vectorChunks []*model.Chunk
		vectorErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		textChunks, textErr = e.store.SearchChunksByText(query, config.TopK, config.DocumentRIDs)
		return nil
	})
	g.Go(func() error {
		embedding, err := e.embedder.Embed(gctx, query)
		if err != nil {
			vectorErr = fmt.Errorf("embedding query: %w", err)
			return nil
		}
		vectorChunks, vectorErr = e.store.SelectChunksBySimilarity(embedding, config.TopK, 0, config.DocumentRIDs)
		return nil
	})
	// Sub-search errors are collected, never returned from the goroutines,
	// so one failing signal cannot cancel the other.
	_ = g.Wait()

	if textErr != nil {
		if vectorErr != nil {
			return nil, fmt.Errorf("hybrid search: text search: %w (vector search: %v)", textErr, vectorErr)
		}
		return nil, fmt.Errorf("hybrid search: text search: %w", textErr)
	}
	if vectorErr != nil {
		// Degraded mode: serve what text search found
		results := textResults(textChunks)
		for i := range results {
			results[i].Method = model.SearchMethodHybrid
		}
		return &model.SearchResultSet{Results: results, Degraded: true}, nil
	}

	// Union both result lists by chunk id, keeping first-seen order
	hits := make(map[int64]*hybridHit)
	var order []int64

	for i, chunk := range textChunks {
		normalized := normalizedTextScore(textChunks, i)
		hits[chunk.ID] = &hybridHit{
			chunk:     chunk,
			textScore: &normalized,
			highlight: chunk.Highlight,
		}
		order = append(order, chunk.ID)
	}
	for _, chunk := range vectorChunks {
		score := 0.0
		if chunk.Similarity != nil {
			score = *chunk.Similarity
		}
		if hit, exists := hits[chunk.ID]; exists {
			hit.vectorScore = &score
			continue
		}
		hits[chunk.ID] = &hybridHit{
			chunk:       chunk,
			vectorScore: &score,
		}
		order = append(order, chunk.ID)
	}

	results := make([]model.SearchResult, 0, len(order))
	for _, id := range order {
		hit := hits[id]
		result := searchResult(hit.chunk, model.SearchMethodHybrid)
		result.TextScore = hit.textScore
		result.VectorScore = hit.vectorScore
		result.Highlight = hit.highlight

		switch {
		case hit.textScore != nil && hit.vectorScore != nil:
			result.Score = (config.TextWeight**hit.textScore + config.VectorWeight**hit.vectorScore) /
				(config.TextWeight + config.VectorWeight)
		case hit.textScore != nil:
			result.Score = *hit.textScore * config.TextOnlyBoost
		case hit.vectorScore != nil:
			result.Score = *hit.vectorScore
		}
		results = append(results, result)
	}

	// Stable sort keeps the first-seen order for equal scores
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > config.TopK {
		results = results[:config.TopK]
	}

	return &model.SearchResultSet{Results: results}, nil
}

// DeleteByDocument removes all indexed chunks of a document and returns the
// number of deleted chunks. Deleting a document without chunks is a no-op.
func (e *Engine) DeleteByDocument(ctx context.Context, documentRID uuid.UUID) (int64, error) {
	deleted, err := e.store.DeleteChunksByDocument(documentRID)
	if err != nil {
		return 0, fmt.Errorf("deleting indexed chunks: %w", err)
	}
	return deleted, nil
}

// CountIndexed returns the number of chunks in the index
func (e *Engine) CountIndexed() (int64, error) {
	return e.store.CountChunks()
}

// HealthStatus verifies the index is reachable by fetching its metadata
func (e *Engine) HealthStatus(ctx context.Context) error {
	if _, err := e.store.CountChunks(); err != nil {
		return fmt.Errorf("search index health check failed: %w", err)
	}
	return nil
}

// searchResult projects a chunk into a search result without scores
func searchResult(chunk *model.Chunk, method model.SearchMethod) model.SearchResult {
	return model.SearchResult{
		ChunkID:     chunk.ID,
		ChunkIndex:  chunk.Index,
		DocumentID:  chunk.DocumentID,
		DocumentRID: chunk.DocumentRID,
		Filename:    chunk.Filename,
		Content:     chunk.Content,
		Method:      method,
	}
}

// textResults converts text search hits into results with normalized scores
func textResults(chunks []*model.Chunk) []model.SearchResult {
	results := make([]model.SearchResult, len(chunks))
	for i, chunk := range chunks {
		result := searchResult(chunk, model.SearchMethodText)
		normalized := normalizedTextScore(chunks, i)
		result.Score = normalized
		result.TextScore = &normalized
		result.Highlight = chunk.Highlight
		results[i] = result
	}
	return results
}

// normalizedTextScore scales the rank of chunks[i] against the best rank of
// the set, so the top hit scores 1 regardless of query length.
func normalizedTextScore(chunks []*model.Chunk, i int) float64 {
	maxRank := 0.0
	for _, chunk := range chunks {
		if chunk.TextRank != nil && *chunk.TextRank > maxRank {
			maxRank = *chunk.TextRank
		}
	}
	if maxRank == 0 || chunks[i].TextRank == nil {
		return 0
	}
	return *chunks[i].TextRank / maxRank
}
