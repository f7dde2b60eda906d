package model

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded source document. The raw content is only
// carried through ingest; the database stores metadata and the derived
// chunks. Deleting a document cascades to its chunks.
type Document struct {
	ID          int64     `json:"id"`
	RID         uuid.UUID `json:"rid"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	ByteSize    int64     `json:"byte_size"`
	ChunkCount  int       `json:"chunk_count"`
	Content     string    `json:"content,omitempty" db:"-"` // Temporary field for processing, not stored in DB
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewDocumentFromFile reads a file and creates a Document with the file
// content. The filename defaults to the file's base name.
func NewDocumentFromFile(filePath string, contentType string, metadata Metadata) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = "text/plain"
	}

	return &Document{
		Filename:    filepath.Base(filePath),
		ContentType: contentType,
		ByteSize:    int64(len(content)),
		Content:     string(content),
		Metadata:    metadata,
	}, nil
}
