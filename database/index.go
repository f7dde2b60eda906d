package database

import (
	"context"
	"fmt"
	"time"

	"github.com/docpilot/docpilot/helper"
)

// Vector index types supported by pgvector.
const (
	IndexTypeHNSW    = "hnsw"
	IndexTypeIVFFlat = "ivfflat"
)

// IndexOptions tunes vector index creation. Zero values fall back to the
// pgvector defaults (HNSW: m=16, ef_construction=64; IVFFlat: lists=100).
type IndexOptions struct {
	M              int
	EfConstruction int
	Lists          int
}

// ChangeIndexType drops the chunk embedding index and recreates it as the
// given type. The rebuild scans the whole chunks table, so it runs under a
// generous timeout.
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType string, opts IndexOptions) error {
	createIndexSQL, err := buildIndexSQL(indexType, opts)
	if err != nil {
		return helper.NewError("change index type", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = h.db.Instance.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info(fmt.Sprintf("Recreated vector index as %s", indexType))

	return nil
}

func buildIndexSQL(indexType string, opts IndexOptions) (string, error) {
	switch indexType {
	case IndexTypeHNSW:
		m := opts.M
		if m <= 0 {
			m = 16
		}
		efConstruction := opts.EfConstruction
		if efConstruction <= 0 {
			efConstruction = 64
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		), nil
	case IndexTypeIVFFlat:
		lists := opts.Lists
		if lists <= 0 {
			lists = 100
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		), nil
	default:
		return "", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType)
	}
}
