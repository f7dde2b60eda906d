package model

import "github.com/google/uuid"

// SearchMethod identifies how a result was retrieved.
type SearchMethod string

const (
	SearchMethodText   SearchMethod = "text"
	SearchMethodVector SearchMethod = "vector"
	SearchMethodHybrid SearchMethod = "hybrid"
)

// SearchResult is a read-only projection of one retrieved chunk.
// TextScore and VectorScore are set when the respective sub-search
// contributed to the combined Score.
type SearchResult struct {
	ChunkID     int64        `json:"chunk_id"`
	ChunkIndex  int          `json:"chunk_index"`
	DocumentID  int64        `json:"document_id"`
	DocumentRID uuid.UUID    `json:"document_rid"`
	Filename    string       `json:"filename"`
	Content     string       `json:"content"`
	Score       float64      `json:"score"`
	TextScore   *float64     `json:"text_score,omitempty"`
	VectorScore *float64     `json:"vector_score,omitempty"`
	Highlight   string       `json:"highlight,omitempty"`
	Method      SearchMethod `json:"method"`
}

// SearchResultSet wraps ranked results with degradation state. Degraded is
// true when the vector subsystem was unavailable and the set contains
// text-only results of reduced quality.
type SearchResultSet struct {
	Results  []SearchResult `json:"results"`
	Degraded bool           `json:"degraded"`
}

// IndexResult reports the outcome of indexing a single chunk. Err is nil on
// success; batch callers should inspect each item rather than expecting an
// all-or-nothing result.
type IndexResult struct {
	ChunkIndex int   `json:"chunk_index"`
	ChunkID    int64 `json:"chunk_id"`
	Err        error `json:"-"`
}

// Source is the response-contract projection of a retrieved chunk that
// backed an answer.
type Source struct {
	DocumentID uuid.UUID `json:"documentId"`
	ChunkID    int64     `json:"chunkId"`
	Filename   string    `json:"filename"`
	Excerpt    string    `json:"excerpt"`
	Score      float64   `json:"score"`
}
