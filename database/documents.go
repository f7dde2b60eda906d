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
	"github.com/docpilot/docpilot/sql"
	"github.com/google/uuid"
)

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertDocument(doc *model.Document) error
	SelectDocument(id int64) (*model.Document, error)
	SelectDocumentByRID(rid uuid.UUID) (*model.Document, error)
	SelectAllDocuments() ([]*model.Document, error)
	UpdateDocumentChunkCount(doc *model.Document, chunkCount int) error
	DeleteDocument(rid uuid.UUID) error
	CountDocuments() (int64, error)
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := sql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Use the SQL init() function to create all tables and indexes
	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

func scanDocument(row interface{ Scan(...any) error }, doc *model.Document) error {
	return row.Scan(
		&doc.ID,
		&doc.RID,
		&doc.Filename,
		&doc.ContentType,
		&doc.ByteSize,
		&doc.ChunkCount,
		&doc.Metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
}

// InsertDocument inserts a new document
func (h *DocumentsDBHandler) InsertDocument(doc *model.Document) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_document($1, $2, $3, $4)`,
		doc.Filename,
		doc.ContentType,
		doc.ByteSize,
		doc.Metadata,
	)

	err := scanDocument(row, doc)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDocument retrieves a document by internal ID
func (h *DocumentsDBHandler) SelectDocument(id int64) (*model.Document, error) {
	doc := &model.Document{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_document($1)`,
		id,
	)

	err := scanDocument(row, doc)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, helper.NewError("select document", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// SelectDocumentByRID retrieves a document by RID
func (h *DocumentsDBHandler) SelectDocumentByRID(rid uuid.UUID) (*model.Document, error) {
	doc := &model.Document{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_document_by_rid($1)`,
		rid,
	)

	err := scanDocument(row, doc)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, helper.NewError("select document by rid", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// SelectAllDocuments retrieves all documents, newest first
func (h *DocumentsDBHandler) SelectAllDocuments() ([]*model.Document, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_documents()`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var documents []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		err := scanDocument(rows, doc)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		documents = append(documents, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}

// UpdateDocumentChunkCount updates the stored chunk count of a document
func (h *DocumentsDBHandler) UpdateDocumentChunkCount(doc *model.Document, chunkCount int) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_document_chunk_count($1, $2)`,
		doc.ID,
		chunkCount,
	)

	err := scanDocument(row, doc)
	if errors.Is(err, dbsql.ErrNoRows) {
		return helper.NewError("update document chunk count", model.ErrNotFound)
	}
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteDocument deletes a document by RID. Chunks are removed by the
// foreign key cascade.
func (h *DocumentsDBHandler) DeleteDocument(rid uuid.UUID) error {
	var deleted int64
	err := h.db.Instance.QueryRow(
		`SELECT delete_document($1)`,
		rid,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if deleted == 0 {
		return helper.NewError("delete document", model.ErrNotFound)
	}
	return nil
}

// CountDocuments returns the total number of documents
func (h *DocumentsDBHandler) CountDocuments() (int64, error) {
	var count int64
	err := h.db.Instance.QueryRow(`SELECT count_documents()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}
