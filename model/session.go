package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole distinguishes user queries from assistant answers.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Session is an ordered log of messages. ClientKey is a stable
// client-generated id used to reconcile a temporary session into a real one.
type Session struct {
	ID        int64     `json:"id"`
	RID       uuid.UUID `json:"rid"`
	ClientKey string    `json:"client_key,omitempty"`
	Title     string    `json:"title,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn in a session. SequenceNumber is allocated atomically
// per session and is the authoritative order for history reconstruction.
// Classification, sources and traces are only set on assistant messages.
type Message struct {
	ID             int64                `json:"id"`
	SessionID      int64                `json:"session_id"`
	RID            uuid.UUID            `json:"rid"`
	ClientKey      string               `json:"client_key,omitempty"`
	Role           MessageRole          `json:"role"`
	Content        string               `json:"content"`
	SequenceNumber int64                `json:"sequence_number"`
	ResponseType   ResponseType         `json:"response_type,omitempty"`
	Classification *QueryClassification `json:"classification,omitempty"`
	Sources        []Source             `json:"sources,omitempty"`
	Traces         []AgentTrace         `json:"traces,omitempty"`
	ExecutionMs    int64                `json:"execution_ms,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}
