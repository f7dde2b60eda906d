package docpilot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/docpilot/docpilot/core/agents"
	"github.com/docpilot/docpilot/core/classifier"
	"github.com/docpilot/docpilot/core/llm"
	"github.com/docpilot/docpilot/core/pipeline"
	"github.com/docpilot/docpilot/core/retrieval"
	"github.com/docpilot/docpilot/database"
	"github.com/docpilot/docpilot/helper"
	"github.com/docpilot/docpilot/model"
	loadSql "github.com/docpilot/docpilot/sql"
)

// Docpilot provides a unified interface to ingestion, retrieval and the
// question answering pipeline.
type Docpilot struct {
	DB        *helper.Database
	Chunks    *database.ChunksDBHandler
	Documents *database.DocumentsDBHandler
	Sessions  *database.SessionsDBHandler
	Pipeline  *pipeline.Pipeline // Optional chunking pipeline
	Engine    *retrieval.Engine  // Retrieval engine for hybrid search

	orchestrator *agents.Orchestrator
	classifier   *classifier.Classifier
	generate     llm.GenerateFunc

	// Per-request settings snapshot
	settingsMu sync.RWMutex
	settings   model.Settings

	// Per-document serialization of indexing against deletion
	docLocksMu sync.Mutex
	docLocks   map[uuid.UUID]*sync.Mutex

	log *slog.Logger
}

// IngestResult reports the outcome of ingesting one document.
type IngestResult struct {
	Document      *model.Document     `json:"document"`
	ChunksCreated int                 `json:"chunks_created"`
	IndexResults  []model.IndexResult `json:"index_results"`
}

// AskRequest is one question against the ingested documents. A zero
// SessionRID starts a new session; ClientKey reconciles retried session
// creation into the same row.
type AskRequest struct {
	SessionRID    uuid.UUID
	ClientKey     string
	Query         string
	TopK          int
	DocumentRIDs  []uuid.UUID
	EnableTracing bool
}

// AskResponse is the assembled answer for one question.
type AskResponse struct {
	SessionRID     uuid.UUID                 `json:"session_rid"`
	MessageRID     uuid.UUID                 `json:"message_rid"`
	Answer         string                    `json:"answer"`
	ResponseType   model.ResponseType        `json:"response_type"`
	Classification model.QueryClassification `json:"classification"`
	Sources        []model.Source            `json:"sources"`
	Traces         []model.AgentTrace        `json:"traces,omitempty"`
	Degraded       bool                      `json:"degraded,omitempty"`
	ExecutionMs    int64                     `json:"execution_ms"`
}

// NewDocpilot creates a new Docpilot instance with all handlers initialized
func NewDocpilot(config *helper.DatabaseConfiguration, embeddingDim int) (*Docpilot, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("docpilot", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (documents first, then chunks)
	// force=false to not reload if functions already exist
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	sessions, err := database.NewSessionsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create sessions handler", err)
	}

	return &Docpilot{
		DB:         db,
		Chunks:     chunks,
		Documents:  documents,
		Sessions:   sessions,
		classifier: classifier.New(classifier.Config{}),
		settings:   model.DefaultSettings(),
		docLocks:   map[uuid.UUID]*sync.Mutex{},
		log:        logger,
	}, nil
}

// Close closes the database connection
func (d *Docpilot) Close() error {
	if d.Pipeline != nil && d.Pipeline.Embedder != nil {
		if err := d.Pipeline.Embedder.Close(); err != nil {
			d.log.Warn("Closing embedder failed", slog.String("error", err.Error()))
		}
	}
	if d.DB != nil && d.DB.Instance != nil {
		return d.DB.Instance.Close()
	}
	return nil
}

// SetPipeline sets the chunking pipeline and rebuilds the retrieval engine
// and orchestrator on top of its embedder.
func (d *Docpilot) SetPipeline(p *pipeline.Pipeline) {
	d.Pipeline = p
	d.Engine = retrieval.NewEngine(d.Chunks, p.Embedder)
	d.orchestrator = agents.NewOrchestrator(d.classifier, d.Engine, d.Documents, d.generate, d.log)
}

// UseDefaultPipeline sets up the default chunking and embedding pipeline:
// paragraph-preserving chunks of up to 1000 characters and the local
// all-MiniLM-L6-v2 embedding model (384 dimensions).
func (d *Docpilot) UseDefaultPipeline() error {
	embedder, err := pipeline.NewLocalEmbedder("")
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	d.SetPipeline(pipeline.NewPipeline(pipeline.NewChunker(pipeline.DefaultChunkOptions()), embedder))
	return nil
}

// SetGenerateFunc sets the language model used by the terminal agents. A nil
// function keeps the extractive fallback.
func (d *Docpilot) SetGenerateFunc(generate llm.GenerateFunc) {
	d.generate = generate
	if d.Engine != nil {
		d.orchestrator = agents.NewOrchestrator(d.classifier, d.Engine, d.Documents, d.generate, d.log)
	}
}

// Settings returns the current orchestration settings.
func (d *Docpilot) Settings() model.Settings {
	d.settingsMu.RLock()
	defer d.settingsMu.RUnlock()
	return d.settings
}

// UpdateSettings validates and replaces the orchestration settings. Running
// queries keep the snapshot they started with.
func (d *Docpilot) UpdateSettings(settings model.Settings) error {
	if err := settings.Validate(); err != nil {
		return helper.NewError("validate settings", err)
	}
	d.settingsMu.Lock()
	d.settings = settings
	d.settingsMu.Unlock()
	return nil
}

// documentLock returns the mutex serializing index and delete operations for
// one document.
func (d *Docpilot) documentLock(rid uuid.UUID) *sync.Mutex {
	d.docLocksMu.Lock()
	defer d.docLocksMu.Unlock()
	lock, ok := d.docLocks[rid]
	if !ok {
		lock = &sync.Mutex{}
		d.docLocks[rid] = lock
	}
	return lock
}

// IngestDocument chunks the content, stores the document metadata and indexes
// every chunk with its embedding. The content itself is not stored, only its
// chunks.
func (d *Docpilot) IngestDocument(ctx context.Context, filename, contentType, content string) (*IngestResult, error) {
	if d.Pipeline == nil {
		return nil, helper.NewError("ingest document", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}
	if strings.TrimSpace(filename) == "" {
		return nil, helper.NewError("ingest document", model.ErrEmptyInput)
	}
	if strings.TrimSpace(content) == "" {
		return nil, helper.NewError("ingest document", model.ErrEmptyInput)
	}

	chunks, err := d.Pipeline.Chunker(content)
	if err != nil {
		return nil, helper.NewError("chunk document", err)
	}

	doc := &model.Document{
		Filename:    filename,
		ContentType: contentType,
		ByteSize:    int64(len(content)),
	}
	if err := d.Documents.InsertDocument(doc); err != nil {
		return nil, helper.NewError("insert document", err)
	}

	lock := d.documentLock(doc.RID)
	lock.Lock()
	defer lock.Unlock()

	d.log.Info("Inserted document", slog.String("document_id", doc.RID.String()), slog.String("filename", doc.Filename))

	indexResults, err := d.Engine.IndexChunks(ctx, doc, chunks)
	if err != nil {
		return nil, helper.NewError("index chunks", err)
	}

	indexed := 0
	for _, result := range indexResults {
		if result.Err == nil {
			indexed++
		}
	}
	if err := d.Documents.UpdateDocumentChunkCount(doc, indexed); err != nil {
		return nil, helper.NewError("update chunk count", err)
	}

	d.log.Info("Indexed document", slog.Int("num_chunks", indexed), slog.String("document_id", doc.RID.String()))

	return &IngestResult{
		Document:      doc,
		ChunksCreated: indexed,
		IndexResults:  indexResults,
	}, nil
}

// DeleteDocument removes a document and all of its indexed chunks.
func (d *Docpilot) DeleteDocument(ctx context.Context, rid uuid.UUID) error {
	lock := d.documentLock(rid)
	lock.Lock()
	defer lock.Unlock()

	if d.Engine != nil {
		if _, err := d.Engine.DeleteByDocument(ctx, rid); err != nil {
			return helper.NewError("delete chunks", err)
		}
	}
	if err := d.Documents.DeleteDocument(rid); err != nil {
		return helper.NewError("delete document", err)
	}

	d.docLocksMu.Lock()
	delete(d.docLocks, rid)
	d.docLocksMu.Unlock()

	return nil
}

// ListDocuments returns all document metadata rows.
func (d *Docpilot) ListDocuments() ([]*model.Document, error) {
	return d.Documents.SelectAllDocuments()
}

// Ask answers a question against the ingested documents and persists the
// user and assistant messages to the session. Messages are written only once
// the turn has completed, so a crashed query leaves no partial history.
func (d *Docpilot) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if d.orchestrator == nil {
		return nil, helper.NewError("ask", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, helper.NewError("ask", model.ErrEmptyInput)
	}

	result, err := d.orchestrator.Ask(ctx, agents.Request{
		Query:         req.Query,
		DocumentRIDs:  req.DocumentRIDs,
		TopK:          req.TopK,
		Settings:      d.Settings(),
		EnableTracing: req.EnableTracing,
	})
	if err != nil {
		return nil, err
	}

	session, err := d.resolveSession(req)
	if err != nil {
		return nil, err
	}

	userMsg := &model.Message{
		SessionID: session.ID,
		Role:      model.RoleUser,
		Content:   req.Query,
	}
	if err := d.Sessions.InsertMessage(userMsg); err != nil {
		return nil, helper.NewError("insert user message", err)
	}

	assistantMsg := &model.Message{
		SessionID:      session.ID,
		Role:           model.RoleAssistant,
		Content:        result.Answer,
		ResponseType:   result.ResponseType,
		Classification: &result.Classification,
		Sources:        result.Sources,
		Traces:         result.Traces,
		ExecutionMs:    result.ExecutionTime.Milliseconds(),
	}
	if err := d.Sessions.InsertMessage(assistantMsg); err != nil {
		return nil, helper.NewError("insert assistant message", err)
	}

	return &AskResponse{
		SessionRID:     session.RID,
		MessageRID:     assistantMsg.RID,
		Answer:         result.Answer,
		ResponseType:   result.ResponseType,
		Classification: result.Classification,
		Sources:        result.Sources,
		Traces:         result.Traces,
		Degraded:       result.Degraded,
		ExecutionMs:    result.ExecutionTime.Milliseconds(),
	}, nil
}

// resolveSession loads the requested session or creates a new one.
func (d *Docpilot) resolveSession(req AskRequest) (*model.Session, error) {
	if req.SessionRID != uuid.Nil {
		session, err := d.Sessions.SelectSession(req.SessionRID)
		if err != nil {
			return nil, helper.NewError("select session", err)
		}
		return session, nil
	}

	session := &model.Session{ClientKey: req.ClientKey}
	if err := d.Sessions.InsertSession(session); err != nil {
		return nil, helper.NewError("create session", err)
	}
	return session, nil
}

// SessionMessages returns the full history of a session in sequence order.
func (d *Docpilot) SessionMessages(sessionRID uuid.UUID) ([]*model.Message, error) {
	return d.Sessions.SelectMessagesBySession(sessionRID)
}

// ReconcileSessions merges one session into another, typically a temporary
// client-side session into the authenticated one. Messages are resequenced
// in the target and deduped by client key; the source session is deleted.
// Returns the number of messages moved.
func (d *Docpilot) ReconcileSessions(fromRID uuid.UUID, toRID uuid.UUID) (int64, error) {
	return d.Sessions.ReconcileSessions(fromRID, toRID)
}

// HealthStatus reports the health of every component. The returned map has
// one entry per component, "ok" or the failure message.
func (d *Docpilot) HealthStatus(ctx context.Context) map[string]string {
	status := map[string]string{}

	if err := d.DB.Instance.PingContext(ctx); err != nil {
		status["database"] = err.Error()
	} else {
		status["database"] = "ok"
	}

	if d.Pipeline == nil || d.Pipeline.Embedder == nil {
		status["embedder"] = "not configured"
	} else if err := d.Pipeline.Embedder.HealthStatus(ctx); err != nil {
		status["embedder"] = err.Error()
	} else {
		status["embedder"] = "ok"
	}

	if d.Engine == nil {
		status["index"] = "not configured"
	} else if count, err := d.Engine.CountIndexed(); err != nil {
		status["index"] = err.Error()
	} else {
		status["index"] = fmt.Sprintf("ok (%d chunks)", count)
	}

	return status
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (d *Docpilot) ChangeIndexType(ctx context.Context, indexType string, opts database.IndexOptions) error {
	return d.Chunks.ChangeIndexType(ctx, indexType, opts)
}
