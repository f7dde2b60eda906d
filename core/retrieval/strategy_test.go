package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpilot/docpilot/model"
)

func TestTextOnlyStrategy(t *testing.T) {
	store := &fakeChunkStore{textChunks: []*model.Chunk{textHit(1, 0, 0.8, "")}}
	strategy := NewTextOnlyStrategy(NewEngine(store, &keywordEmbedder{}))

	resultSet, err := strategy.Search(context.Background(), "match", nil)

	require.NoError(t, err)
	require.Len(t, resultSet.Results, 1)
	assert.Equal(t, model.SearchMethodText, resultSet.Results[0].Method)
	assert.Equal(t, 1, store.textCalls, "Expected only the text index queried")
	assert.Equal(t, 0, store.vectorCalls)
}

func TestVectorOnlyStrategy(t *testing.T) {
	store := &fakeChunkStore{vectorChunks: []*model.Chunk{vectorHit(1, 0, 0.9)}}
	embedder := &keywordEmbedder{}
	strategy := NewVectorOnlyStrategy(NewEngine(store, embedder))

	resultSet, err := strategy.Search(context.Background(), "alpha", nil)

	require.NoError(t, err)
	require.Len(t, resultSet.Results, 1)
	assert.Equal(t, model.SearchMethodVector, resultSet.Results[0].Method)
	assert.Equal(t, 1, store.vectorCalls, "Expected only the vector index queried")
	assert.Equal(t, 0, store.textCalls)
	assert.Equal(t, 1, embedder.embedCalls, "Expected the query embedded once")
}

func TestHybridStrategy(t *testing.T) {
	store := &fakeChunkStore{
		textChunks:   []*model.Chunk{textHit(1, 0, 0.8, "")},
		vectorChunks: []*model.Chunk{vectorHit(2, 1, 0.9)},
	}
	strategy := NewHybridStrategy(NewEngine(store, &keywordEmbedder{}))

	resultSet, err := strategy.Search(context.Background(), "alpha", nil)

	require.NoError(t, err)
	require.Len(t, resultSet.Results, 2)
	assert.Equal(t, 1, store.textCalls, "Expected both indexes queried")
	assert.Equal(t, 1, store.vectorCalls)
	for _, result := range resultSet.Results {
		assert.Equal(t, model.SearchMethodHybrid, result.Method)
	}
}

func TestStrategyFor(t *testing.T) {
	engine := NewEngine(&fakeChunkStore{}, &keywordEmbedder{})

	t.Run("Text method", func(t *testing.T) {
		assert.IsType(t, &TextOnlyStrategy{}, StrategyFor(model.SearchMethodText, engine))
	})

	t.Run("Vector method", func(t *testing.T) {
		assert.IsType(t, &VectorOnlyStrategy{}, StrategyFor(model.SearchMethodVector, engine))
	})

	t.Run("Hybrid method", func(t *testing.T) {
		assert.IsType(t, &HybridStrategy{}, StrategyFor(model.SearchMethodHybrid, engine))
	})

	t.Run("Unknown method falls back to hybrid", func(t *testing.T) {
		assert.IsType(t, &HybridStrategy{}, StrategyFor(model.SearchMethod("graph"), engine))
	})
}
