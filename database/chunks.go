package database

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/docpilot/docpilot/helper"
	"github.com/docpilot/docpilot/model"
	loadSql "github.com/docpilot/docpilot/sql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	UpsertChunk(chunk *model.Chunk) error
	SelectChunk(id int64) (*model.Chunk, error)
	SelectChunksByDocument(documentRID uuid.UUID) ([]*model.Chunk, error)
	SelectChunksBySimilarity(embedding []float32, limit int, threshold float64, documentRIDs []uuid.UUID) ([]*model.Chunk, error)
	SearchChunksByText(query string, limit int, documentRIDs []uuid.UUID) ([]*model.Chunk, error)
	DeleteChunksByDocument(documentRID uuid.UUID) (int64, error)
	CountChunks() (int64, error)
}

// ChunksDBHandler handles chunk-related database operations
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary extensions and indexes.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Use the SQL init() function to create all tables and indexes
	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// nullVector scans a nullable vector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

func scanChunk(row interface{ Scan(...any) error }, chunk *model.Chunk) error {
	var embedding nullVector
	err := row.Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.DocumentRID,
		&chunk.Index,
		&chunk.Content,
		&chunk.StartPos,
		&chunk.EndPos,
		&embedding,
		&chunk.CharLength,
		&chunk.WordCount,
		&chunk.SentenceCount,
		&chunk.ParagraphIndex,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return err
	}
	if embedding.valid {
		chunk.Embedding = embedding.vec.Slice()
	}
	return nil
}

// UpsertChunk inserts a chunk or replaces the existing chunk with the same
// document and index.
func (h *ChunksDBHandler) UpsertChunk(chunk *model.Chunk) error {
	var embeddingParam any
	if len(chunk.Embedding) > 0 {
		embeddingParam = pgvector.NewVector(chunk.Embedding)
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_chunk($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		chunk.DocumentID,
		chunk.Index,
		chunk.Content,
		chunk.StartPos,
		chunk.EndPos,
		embeddingParam,
		chunk.CharLength,
		chunk.WordCount,
		chunk.SentenceCount,
		chunk.ParagraphIndex,
		chunk.Metadata,
	)

	err := scanChunk(row, chunk)
	if errors.Is(err, dbsql.ErrNoRows) {
		// upsert_chunk returns no row when the parent document is missing
		return helper.NewError("upsert chunk", model.ErrNotFound)
	}
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectChunk retrieves a chunk by ID
func (h *ChunksDBHandler) SelectChunk(id int64) (*model.Chunk, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	chunk := &model.Chunk{}
	err := scanChunk(row, chunk)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, helper.NewError("select chunk", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// SelectChunksByDocument retrieves all chunks for a document, ordered by index
func (h *ChunksDBHandler) SelectChunksByDocument(documentRID uuid.UUID) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_document($1)`,
		documentRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := scanChunk(rows, chunk)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// SelectChunksBySimilarity performs vector similarity search.
// If documentRIDs is nil or empty, searches across all documents.
func (h *ChunksDBHandler) SelectChunksBySimilarity(embedding []float32, limit int, threshold float64, documentRIDs []uuid.UUID) ([]*model.Chunk, error) {
	embeddingVector := pgvector.NewVector(embedding)

	// Convert documentRIDs to PostgreSQL UUID array format
	var documentRIDsParam any
	if len(documentRIDs) > 0 {
		documentRIDsParam = pq.Array(documentRIDs)
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3, $4)`,
		embeddingVector,
		limit,
		threshold,
		documentRIDsParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.DocumentRID,
			&chunk.Index,
			&chunk.Content,
			&chunk.StartPos,
			&chunk.EndPos,
			&chunk.CharLength,
			&chunk.WordCount,
			&chunk.SentenceCount,
			&chunk.ParagraphIndex,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.Filename,
			&chunk.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// SearchChunksByText performs full-text search over chunk contents.
// If documentRIDs is nil or empty, searches across all documents.
func (h *ChunksDBHandler) SearchChunksByText(query string, limit int, documentRIDs []uuid.UUID) ([]*model.Chunk, error) {
	var documentRIDsParam any
	if len(documentRIDs) > 0 {
		documentRIDsParam = pq.Array(documentRIDs)
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM search_chunks_by_text($1, $2, $3)`,
		query,
		limit,
		documentRIDsParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.DocumentRID,
			&chunk.Index,
			&chunk.Content,
			&chunk.StartPos,
			&chunk.EndPos,
			&chunk.CharLength,
			&chunk.WordCount,
			&chunk.SentenceCount,
			&chunk.ParagraphIndex,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.Filename,
			&chunk.TextRank,
			&chunk.Highlight,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// DeleteChunksByDocument deletes all chunks of a document and returns the
// number of deleted rows
func (h *ChunksDBHandler) DeleteChunksByDocument(documentRID uuid.UUID) (int64, error) {
	var deleted int64
	err := h.db.Instance.QueryRow(
		`SELECT delete_chunks_by_document($1)`,
		documentRID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("exec", err)
	}
	return deleted, nil
}

// CountChunks returns the total number of chunks
func (h *ChunksDBHandler) CountChunks() (int64, error) {
	var count int64
	err := h.db.Instance.QueryRow(`SELECT count_chunks()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}
