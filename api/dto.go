package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/docpilot/docpilot"
	"github.com/docpilot/docpilot/model"
)

// QueryRequest is the request body for answering a question.
type QueryRequest struct {
	SessionID     string   `json:"sessionId,omitempty"`
	ClientKey     string   `json:"clientKey,omitempty"`
	Query         string   `json:"query"`
	TopK          int      `json:"topK,omitempty"`
	DocumentIDs   []string `json:"documentIds,omitempty"`
	IncludeTraces bool     `json:"includeTraces,omitempty"`
}

// Validate validates the query request.
func (r QueryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required, validation.Length(1, 4000)),
		validation.Field(&r.TopK, validation.Min(0), validation.Max(50)),
	)
}

// QueryResponse is the answer contract.
type QueryResponse struct {
	SessionID      string                    `json:"sessionId"`
	MessageID      string                    `json:"messageId"`
	Answer         string                    `json:"answer"`
	ResponseType   model.ResponseType        `json:"responseType"`
	Classification model.QueryClassification `json:"classification"`
	Sources        []model.Source            `json:"sources"`
	Traces         []model.AgentTrace        `json:"traces,omitempty"`
	Degraded       bool                      `json:"degraded,omitempty"`
	ExecutionMs    int64                     `json:"executionMs"`
}

func queryResponseFrom(resp *docpilot.AskResponse) QueryResponse {
	sources := resp.Sources
	if sources == nil {
		sources = []model.Source{}
	}
	return QueryResponse{
		SessionID:      resp.SessionRID.String(),
		MessageID:      resp.MessageRID.String(),
		Answer:         resp.Answer,
		ResponseType:   resp.ResponseType,
		Classification: resp.Classification,
		Sources:        sources,
		Traces:         resp.Traces,
		Degraded:       resp.Degraded,
		ExecutionMs:    resp.ExecutionMs,
	}
}

// IngestRequest is the request body for uploading a document.
type IngestRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Content     string `json:"content"`
}

// Validate validates the ingest request.
func (r IngestRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Filename, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.Content, validation.Required),
	)
}

// IngestResponse reports one ingested document.
type IngestResponse struct {
	DocumentID    string `json:"documentId"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunksCreated"`
}

// DocumentItem is one document in a listing.
type DocumentItem struct {
	DocumentID  string `json:"documentId"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	ByteSize    int64  `json:"byteSize"`
	ChunkCount  int    `json:"chunkCount"`
	CreatedAt   string `json:"createdAt"`
}

// DocumentListResponse wraps a document listing.
type DocumentListResponse struct {
	Documents []DocumentItem `json:"documents"`
	Total     int            `json:"total"`
}

// MessageListResponse wraps a session history.
type MessageListResponse struct {
	Messages []*model.Message `json:"messages"`
	Total    int              `json:"total"`
}

// SettingsResponse mirrors the stored settings.
type SettingsResponse struct {
	DocumentRelevanceThreshold float64 `json:"documentRelevanceThreshold"`
	UseGeneralKnowledge        bool    `json:"useGeneralKnowledge"`
}

// HealthResponse reports per-component health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}
