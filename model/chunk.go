package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk represents a bounded slice of a document's text, the unit of
// embedding and retrieval. Chunks are created once at ingest time and never
// mutated; they are deleted together with their parent document.
type Chunk struct {
	ID          int64     `json:"id"`
	DocumentID  int64     `json:"document_id"`
	DocumentRID uuid.UUID `json:"document_rid"`
	Index       int       `json:"chunk_index"`
	Content     string    `json:"content"`
	StartPos    int       `json:"start_pos"`
	EndPos      int       `json:"end_pos"`
	Embedding   []float32 `json:"embedding,omitempty"`
	// Derived metadata, computed by the chunker.
	CharLength     int       `json:"char_length"`
	WordCount      int       `json:"word_count"`
	SentenceCount  int       `json:"sentence_count"`
	ParagraphIndex *int      `json:"paragraph_index,omitempty"`
	Metadata       Metadata  `json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	// Result-only fields, populated by search queries.
	Similarity *float64 `json:"similarity,omitempty"`
	TextRank   *float64 `json:"text_rank,omitempty"`
	Filename   string   `json:"filename,omitempty"`
	Highlight  string   `json:"highlight,omitempty"`
}
