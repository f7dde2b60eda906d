package model

import "github.com/google/uuid"

// QueryConfig represents configuration for one retrieval/orchestration run.
type QueryConfig struct {
	// Vector/text search parameters
	TopK               int     `json:"top_k"`
	RelevanceThreshold float64 `json:"relevance_threshold"`

	// Document filtering
	DocumentRIDs []uuid.UUID `json:"document_rids,omitempty"` // Filter by specific documents

	// Hybrid ranking parameters
	TextWeight    float64 `json:"text_weight"`     // Weight for the lexical score
	VectorWeight  float64 `json:"vector_weight"`   // Weight for the similarity score
	TextOnlyBoost float64 `json:"text_only_boost"` // Multiplier for text-only hits

	// Orchestration parameters
	UseGeneralKnowledge bool `json:"use_general_knowledge"`
	EnableTracing       bool `json:"enable_tracing"`
}

// DefaultQueryConfig returns a sensible default configuration.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:                5,
		RelevanceThreshold:  0.65,
		TextWeight:          0.5,
		VectorWeight:        0.5,
		TextOnlyBoost:       1.0,
		UseGeneralKnowledge: true,
		EnableTracing:       true,
	}
}
