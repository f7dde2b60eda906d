package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docpilot/docpilot"
	"github.com/docpilot/docpilot/model"
)

// Service is the slice of the docpilot facade the API layer consumes.
type Service interface {
	Ask(ctx context.Context, req docpilot.AskRequest) (*docpilot.AskResponse, error)
	IngestDocument(ctx context.Context, filename, contentType, content string) (*docpilot.IngestResult, error)
	DeleteDocument(ctx context.Context, rid uuid.UUID) error
	ListDocuments() ([]*model.Document, error)
	SessionMessages(sessionRID uuid.UUID) ([]*model.Message, error)
	Settings() model.Settings
	UpdateSettings(settings model.Settings) error
	HealthStatus(ctx context.Context) map[string]string
}

// Handler holds API route handlers.
type Handler struct {
	svc Service
	log *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, log: logger}
}

// Query handles POST /query. A pipeline that degrades or fails still answers
// with status 200 and its response type; only invalid input and unavailable
// backends map to error statuses.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	askReq := docpilot.AskRequest{
		Query:         req.Query,
		ClientKey:     req.ClientKey,
		TopK:          req.TopK,
		EnableTracing: req.IncludeTraces,
	}
	if req.SessionID != "" {
		sessionRID, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("sessionId must be a valid UUID"))
			return
		}
		askReq.SessionRID = sessionRID
	}
	for _, id := range req.DocumentIDs {
		rid, err := uuid.Parse(id)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("documentIds must be valid UUIDs"))
			return
		}
		askReq.DocumentRIDs = append(askReq.DocumentRIDs, rid)
	}

	resp, err := h.svc.Ask(r.Context(), askReq)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrEmptyInput):
			writeJSON(w, http.StatusBadRequest, errorBody("query must not be empty"))
		case errors.Is(err, model.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		default:
			h.log.Error("query failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, retryBody("backend unavailable, retry later"))
		}
		return
	}

	writeJSON(w, http.StatusOK, queryResponseFrom(resp))
}

// IngestDocument handles POST /documents.
func (h *Handler) IngestDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	result, err := h.svc.IngestDocument(r.Context(), req.Filename, req.ContentType, req.Content)
	if err != nil {
		if errors.Is(err, model.ErrEmptyInput) {
			writeJSON(w, http.StatusBadRequest, errorBody("document content must not be empty"))
			return
		}
		h.log.Error("ingest failed", slog.String("filename", req.Filename), slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, retryBody("ingestion unavailable, retry later"))
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{
		DocumentID:    result.Document.RID.String(),
		Filename:      result.Document.Filename,
		ChunksCreated: result.ChunksCreated,
	})
}

// ListDocuments handles GET /documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments()
	if err != nil {
		h.log.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, retryBody("backend unavailable, retry later"))
		return
	}

	items := make([]DocumentItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, DocumentItem{
			DocumentID:  doc.RID.String(),
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			ByteSize:    doc.ByteSize,
			ChunkCount:  doc.ChunkCount,
			CreatedAt:   doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: len(items)})
}

// DeleteDocument handles DELETE /documents/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	rid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("document id must be a valid UUID"))
		return
	}

	if err := h.svc.DeleteDocument(r.Context(), rid); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("document not found"))
			return
		}
		h.log.Error("delete document failed", slog.String("id", rid.String()), slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, retryBody("backend unavailable, retry later"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SessionMessages handles GET /sessions/{id}/messages.
func (h *Handler) SessionMessages(w http.ResponseWriter, r *http.Request) {
	rid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("session id must be a valid UUID"))
		return
	}

	messages, err := h.svc.SessionMessages(rid)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("session not found"))
			return
		}
		h.log.Error("session messages failed", slog.String("id", rid.String()), slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, retryBody("backend unavailable, retry later"))
		return
	}
	if messages == nil {
		messages = []*model.Message{}
	}

	writeJSON(w, http.StatusOK, MessageListResponse{Messages: messages, Total: len(messages)})
}

// GetSettings handles GET /settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.svc.Settings()
	writeJSON(w, http.StatusOK, SettingsResponse{
		DocumentRelevanceThreshold: settings.DocumentRelevanceThreshold,
		UseGeneralKnowledge:        settings.UseGeneralKnowledge,
	})
}

// UpdateSettings handles PUT /settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	if err := h.svc.UpdateSettings(settings); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, SettingsResponse{
		DocumentRelevanceThreshold: settings.DocumentRelevanceThreshold,
		UseGeneralKnowledge:        settings.UseGeneralKnowledge,
	})
}

// Health handles GET /health. Any unhealthy component turns the overall
// status degraded and the response code 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components := h.svc.HealthStatus(r.Context())

	status := http.StatusOK
	overall := "ok"
	for _, state := range components {
		if !strings.HasPrefix(state, "ok") {
			status = http.StatusServiceUnavailable
			overall = "degraded"
			break
		}
	}

	writeJSON(w, status, HealthResponse{Status: overall, Components: components})
}
