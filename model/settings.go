package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Settings holds the user-tunable knobs the orchestrator reads per request.
type Settings struct {
	DocumentRelevanceThreshold float64 `json:"documentRelevanceThreshold" yaml:"document_relevance_threshold"`
	UseGeneralKnowledge        bool    `json:"useGeneralKnowledge" yaml:"use_general_knowledge"`
}

// DefaultSettings returns the default orchestration settings.
func DefaultSettings() Settings {
	return Settings{
		DocumentRelevanceThreshold: 0.65,
		UseGeneralKnowledge:        true,
	}
}

// Validate validates the settings.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.DocumentRelevanceThreshold, validation.Required, validation.Min(0.1), validation.Max(0.95)),
	)
}
