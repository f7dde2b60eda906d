package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc Service, logger *slog.Logger) chi.Router {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()

	r.Post("/query", h.Query)

	r.Post("/documents", h.IngestDocument)
	r.Get("/documents", h.ListDocuments)
	r.Delete("/documents/{id}", h.DeleteDocument)

	r.Get("/sessions/{id}/messages", h.SessionMessages)

	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	r.Get("/health", h.Health)

	return r
}
