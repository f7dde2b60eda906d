package retrieval

import (
	"context"

	"github.com/docpilot/docpilot/model"
)

// Strategy defines a retrieval strategy
type Strategy interface {
	Search(ctx context.Context, query string, config *model.QueryConfig) (*model.SearchResultSet, error)
}

// TextOnlyStrategy performs pure full-text search
type TextOnlyStrategy struct {
	engine *Engine
}

// NewTextOnlyStrategy creates a new text-only strategy
func NewTextOnlyStrategy(engine *Engine) *TextOnlyStrategy {
	return &TextOnlyStrategy{engine: engine}
}

// Search performs text-only retrieval
func (s *TextOnlyStrategy) Search(ctx context.Context, query string, config *model.QueryConfig) (*model.SearchResultSet, error) {
	return s.engine.TextSearch(ctx, query, config)
}

// VectorOnlyStrategy performs pure vector similarity search
type VectorOnlyStrategy struct {
	engine *Engine
}

// NewVectorOnlyStrategy creates a new vector-only strategy
func NewVectorOnlyStrategy(engine *Engine) *VectorOnlyStrategy {
	return &VectorOnlyStrategy{engine: engine}
}

// Search performs vector-only retrieval
func (s *VectorOnlyStrategy) Search(ctx context.Context, query string, config *model.QueryConfig) (*model.SearchResultSet, error) {
	return s.engine.VectorSearch(ctx, query, config)
}

// HybridStrategy blends text and vector search
type HybridStrategy struct {
	engine *Engine
}

// NewHybridStrategy creates a new hybrid strategy
func NewHybridStrategy(engine *Engine) *HybridStrategy {
	return &HybridStrategy{engine: engine}
}

// Search performs hybrid retrieval
func (s *HybridStrategy) Search(ctx context.Context, query string, config *model.QueryConfig) (*model.SearchResultSet, error) {
	return s.engine.HybridSearch(ctx, query, config)
}

// StrategyFor returns the strategy for a search method. Unknown methods fall
// back to hybrid search.
func StrategyFor(method model.SearchMethod, engine *Engine) Strategy {
	switch method {
	case model.SearchMethodText:
		return NewTextOnlyStrategy(engine)
	case model.SearchMethodVector:
		return NewVectorOnlyStrategy(engine)
	default:
		return NewHybridStrategy(engine)
	}
}
