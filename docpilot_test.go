package docpilot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpilot/docpilot/core/pipeline"
	"github.com/docpilot/docpilot/helper"
	"github.com/docpilot/docpilot/model"
)

const testEmbeddingDim = 4

// staticEmbedder is a deterministic embedder for tests: each dimension
// counts the occurrences of one keyword.
type staticEmbedder struct{}

var embeddingKeywords = []string{"maintenance", "billing", "deployment"}

func (e *staticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, testEmbeddingDim)
	lower := strings.ToLower(text)
	for i, keyword := range embeddingKeywords {
		embedding[i] = float32(strings.Count(lower, keyword))
	}
	embedding[testEmbeddingDim-1] = 0.1
	return embedding, nil
}

func (e *staticEmbedder) EmbedBatch(ctx context.Context, texts []string) (*pipeline.BatchResult, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = embedding
	}
	return &pipeline.BatchResult{Embeddings: embeddings, ProcessingTime: time.Millisecond}, nil
}

func (e *staticEmbedder) Dimensions() int                        { return testEmbeddingDim }
func (e *staticEmbedder) HealthStatus(ctx context.Context) error { return nil }
func (e *staticEmbedder) Close() error                           { return nil }

func initDocpilot(t *testing.T) *Docpilot {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")

	d, err := NewDocpilot(dbConfig, testEmbeddingDim)
	require.NoError(t, err, "failed to create docpilot")
	require.NotNil(t, d, "expected docpilot to be non-nil")

	chunker := pipeline.NewChunker(pipeline.ChunkOptions{
		ChunkSize:          200,
		ChunkOverlap:       0,
		PreserveParagraphs: true,
		MinChunkSize:       10,
	})
	d.SetPipeline(pipeline.NewPipeline(chunker, &staticEmbedder{}))
	d.SetGenerateFunc(func(ctx context.Context, system, prompt string) (string, error) {
		return "generated answer", nil
	})

	t.Cleanup(func() {
		d.Close()
	})

	return d
}

func TestNewDocpilot(t *testing.T) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)

	t.Run("Valid call NewDocpilot", func(t *testing.T) {
		d, err := NewDocpilot(dbConfig, testEmbeddingDim)
		require.NoError(t, err, "Expected NewDocpilot to not return an error")
		require.NotNil(t, d, "Expected NewDocpilot to return a non-nil instance")
		defer d.Close()

		assert.NotNil(t, d.DB, "Expected docpilot to have a database instance")
		assert.NotNil(t, d.Chunks, "Expected docpilot to have a chunks handler")
		assert.NotNil(t, d.Documents, "Expected docpilot to have a documents handler")
		assert.NotNil(t, d.Sessions, "Expected docpilot to have a sessions handler")
		assert.Nil(t, d.Pipeline, "Expected no pipeline before SetPipeline")

		settings := d.Settings()
		assert.InDelta(t, 0.65, settings.DocumentRelevanceThreshold, 0.0001, "Expected the default relevance threshold")
		assert.True(t, settings.UseGeneralKnowledge, "Expected general knowledge enabled by default")
	})
}

func TestIngestDocument(t *testing.T) {
	d := initDocpilot(t)
	ctx := context.Background()

	t.Run("Valid ingest", func(t *testing.T) {
		content := "The maintenance schedule covers the billing service.\n\nEvery deployment is reviewed before rollout."
		result, err := d.IngestDocument(ctx, "handbook.txt", "text/plain", content)
		require.NoError(t, err, "Expected ingest to succeed")
		require.NotNil(t, result, "Expected an ingest result")

		assert.NotEqual(t, uuid.Nil, result.Document.RID, "Expected the document rid to be assigned")
		assert.Greater(t, result.ChunksCreated, 0, "Expected at least one chunk")
		assert.Len(t, result.IndexResults, result.ChunksCreated, "Expected one index result per chunk")
		for _, indexResult := range result.IndexResults {
			assert.NoError(t, indexResult.Err, "Expected every chunk to index")
			assert.NotZero(t, indexResult.ChunkID, "Expected the chunk id to be assigned")
		}

		docs, err := d.ListDocuments()
		require.NoError(t, err, "Expected listing documents to succeed")
		require.Len(t, docs, 1, "Expected exactly one document")
		assert.Equal(t, "handbook.txt", docs[0].Filename, "Expected the filename to be stored")
		assert.Equal(t, result.ChunksCreated, docs[0].ChunkCount, "Expected the chunk count on the document row")

		err = d.DeleteDocument(ctx, result.Document.RID)
		require.NoError(t, err, "Expected delete to succeed")

		docs, err = d.ListDocuments()
		require.NoError(t, err, "Expected listing documents to succeed")
		assert.Empty(t, docs, "Expected no documents after delete")
	})

	t.Run("Empty content rejected", func(t *testing.T) {
		_, err := d.IngestDocument(ctx, "empty.txt", "text/plain", "   \n")
		require.Error(t, err, "Expected empty content to be rejected")
		assert.ErrorIs(t, err, model.ErrEmptyInput, "Expected the empty input sentinel")
	})

	t.Run("Empty filename rejected", func(t *testing.T) {
		_, err := d.IngestDocument(ctx, "", "text/plain", "some content")
		require.Error(t, err, "Expected an empty filename to be rejected")
		assert.ErrorIs(t, err, model.ErrEmptyInput, "Expected the empty input sentinel")
	})
}

func TestAsk(t *testing.T) {
	d := initDocpilot(t)
	ctx := context.Background()

	content := "The maintenance window for the billing service is every Sunday night.\n\nThe payments team owns the billing deployment."
	ingested, err := d.IngestDocument(ctx, "operations.txt", "text/plain", content)
	require.NoError(t, err, "Expected ingest to succeed")

	t.Run("Ask persists the message pair", func(t *testing.T) {
		response, err := d.Ask(ctx, AskRequest{
			Query:         "Who is the maintainer of the billing deployment?",
			EnableTracing: true,
		})
		require.NoError(t, err, "Expected ask to succeed")
		require.NotNil(t, response, "Expected a response")

		assert.NotEqual(t, uuid.Nil, response.SessionRID, "Expected a session to be created")
		assert.Equal(t, "generated answer", response.Answer, "Expected the model answer")
		assert.Equal(t, model.QueryTypeFactual, response.Classification.Type, "Expected a factual classification")
		assert.NotEmpty(t, response.Traces, "Expected traces when tracing is enabled")

		messages, err := d.SessionMessages(response.SessionRID)
		require.NoError(t, err, "Expected reading the session history to succeed")
		require.Len(t, messages, 2, "Expected a user and an assistant message")

		assert.Equal(t, model.RoleUser, messages[0].Role, "Expected the user message first")
		assert.Equal(t, int64(1), messages[0].SequenceNumber, "Expected sequence numbers to start at 1")
		assert.Equal(t, model.RoleAssistant, messages[1].Role, "Expected the assistant message second")
		assert.Equal(t, int64(2), messages[1].SequenceNumber, "Expected consecutive sequence numbers")
		assert.Equal(t, response.Answer, messages[1].Content, "Expected the answer persisted on the assistant message")
		assert.NotEqual(t, uuid.Nil, response.MessageRID, "Expected the assistant message rid in the response")
		assert.Equal(t, messages[1].RID, response.MessageRID, "Expected the response to reference the persisted assistant message")
		require.NotNil(t, messages[1].Classification, "Expected the classification persisted")
		assert.Equal(t, model.QueryTypeFactual, messages[1].Classification.Type, "Expected the classification type persisted")
		assert.NotEmpty(t, messages[1].Traces, "Expected the traces persisted")
	})

	t.Run("Follow-up continues the session", func(t *testing.T) {
		first, err := d.Ask(ctx, AskRequest{Query: "What is the maintenance window for billing?"})
		require.NoError(t, err, "Expected the first ask to succeed")

		second, err := d.Ask(ctx, AskRequest{
			SessionRID: first.SessionRID,
			Query:      "Who owns that deployment?",
		})
		require.NoError(t, err, "Expected the follow-up to succeed")
		assert.Equal(t, first.SessionRID, second.SessionRID, "Expected the follow-up in the same session")

		messages, err := d.SessionMessages(first.SessionRID)
		require.NoError(t, err, "Expected reading the session history to succeed")
		require.Len(t, messages, 4, "Expected four messages after two turns")
		for i, message := range messages {
			assert.Equal(t, int64(i+1), message.SequenceNumber, "Expected gapless sequence numbers")
		}
	})

	t.Run("Unknown session rejected", func(t *testing.T) {
		_, err := d.Ask(ctx, AskRequest{
			SessionRID: uuid.New(),
			Query:      "What is the maintenance window?",
		})
		require.Error(t, err, "Expected an unknown session to be rejected")
		assert.ErrorIs(t, err, model.ErrNotFound, "Expected the not found sentinel")
	})

	t.Run("Empty query rejected without writes", func(t *testing.T) {
		before, err := d.Sessions.SelectAllSessions()
		require.NoError(t, err)

		_, err = d.Ask(ctx, AskRequest{Query: "  "})
		require.Error(t, err, "Expected an empty query to be rejected")
		assert.ErrorIs(t, err, model.ErrEmptyInput, "Expected the empty input sentinel")

		after, err := d.Sessions.SelectAllSessions()
		require.NoError(t, err)
		assert.Len(t, after, len(before), "Expected no session created for a rejected query")
	})

	_ = ingested
}

func TestAskWithoutPipeline(t *testing.T) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)

	d, err := NewDocpilot(dbConfig, testEmbeddingDim)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Ask(context.Background(), AskRequest{Query: "anything"})
	require.Error(t, err, "Expected ask without a pipeline to fail")
	assert.Contains(t, err.Error(), "pipeline not set", "Expected the error to point at SetPipeline")

	_, err = d.IngestDocument(context.Background(), "a.txt", "text/plain", "content")
	require.Error(t, err, "Expected ingest without a pipeline to fail")
}

func TestUpdateSettings(t *testing.T) {
	d := initDocpilot(t)

	t.Run("Invalid threshold rejected", func(t *testing.T) {
		err := d.UpdateSettings(model.Settings{DocumentRelevanceThreshold: 0.99})
		require.Error(t, err, "Expected a threshold above the maximum to be rejected")

		settings := d.Settings()
		assert.InDelta(t, 0.65, settings.DocumentRelevanceThreshold, 0.0001, "Expected the previous settings to survive")
	})

	t.Run("Valid settings applied", func(t *testing.T) {
		err := d.UpdateSettings(model.Settings{
			DocumentRelevanceThreshold: 0.3,
			UseGeneralKnowledge:        false,
		})
		require.NoError(t, err, "Expected valid settings to be accepted")

		settings := d.Settings()
		assert.InDelta(t, 0.3, settings.DocumentRelevanceThreshold, 0.0001, "Expected the new threshold")
		assert.False(t, settings.UseGeneralKnowledge, "Expected general knowledge disabled")
	})
}

func TestHealthStatus(t *testing.T) {
	d := initDocpilot(t)

	status := d.HealthStatus(context.Background())
	assert.Equal(t, "ok", status["database"], "Expected the database to be healthy")
	assert.Equal(t, "ok", status["embedder"], "Expected the embedder to be healthy")
	assert.Contains(t, status["index"], "ok", "Expected the index to be healthy")
}
