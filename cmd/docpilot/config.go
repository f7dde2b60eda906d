package main

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/docpilot/docpilot/core/pipeline"
	"github.com/docpilot/docpilot/helper"
	"github.com/docpilot/docpilot/model"
)

// Embedding modes.
const (
	EmbeddingModeLocal  = "local"
	EmbeddingModeRemote = "remote"
)

// Config represents the server configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Database  DatabaseConfig    `yaml:"database"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	LLM       LLMConfig         `yaml:"llm"`
	Chunking  ChunkingConfig    `yaml:"chunking"`
	Retrieval RetrievalConfig   `yaml:"retrieval"`
}

// NewDefaultConfig returns a config with sensible local defaults.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP:     HTTPConfig{Port: 8080},
		},
		Embedding: EmbeddingConfig{
			Mode:       EmbeddingModeLocal,
			Dimensions: 384,
		},
		Chunking: ChunkingConfig{
			ChunkSize:          1000,
			ChunkOverlap:       200,
			PreserveParagraphs: true,
			MinChunkSize:       100,
			MaxChunkSize:       2000,
		},
		Retrieval: RetrievalConfig{
			RelevanceThreshold:  0.65,
			UseGeneralKnowledge: true,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	return c.Retrieval.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DatabaseConfig holds the Postgres connection parameters. Empty fields fall
// back to the DB_* environment variables.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// Resolve merges the YAML section with the environment configuration.
func (c *DatabaseConfig) Resolve() (*helper.DatabaseConfiguration, error) {
	config, err := helper.NewDatabaseConfiguration()
	if err != nil && c.User == "" && c.Name == "" {
		return nil, err
	}
	if config == nil {
		config = &helper.DatabaseConfiguration{Host: "localhost", Port: "5432", SSLMode: "disable"}
	}

	if c.Host != "" {
		config.Host = c.Host
	}
	if c.Port != "" {
		config.Port = c.Port
	}
	if c.User != "" {
		config.User = c.User
	}
	if c.Password != "" {
		config.Password = c.Password
	}
	if c.Name != "" {
		config.DBName = c.Name
	}
	if c.SSLMode != "" {
		config.SSLMode = c.SSLMode
	}

	if config.User == "" || config.DBName == "" {
		return nil, fmt.Errorf("database user and name must be set via config or DB_* environment variables")
	}
	return config, nil
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Mode       string `yaml:"mode"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	BatchSize  int    `yaml:"batch_size"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(EmbeddingModeLocal, EmbeddingModeRemote)),
		validation.Field(&c.Dimensions, validation.Required, validation.Min(1)),
		validation.Field(&c.APIKey, validation.Required.When(c.Mode == EmbeddingModeRemote).Error("api_key is required for remote embedding")),
	)
}

// LLMConfig configures the optional chat model. An empty API key leaves the
// extractive fallback in place.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ChunkingConfig configures the document chunker.
type ChunkingConfig struct {
	ChunkSize          int  `yaml:"chunk_size"`
	ChunkOverlap       int  `yaml:"chunk_overlap"`
	PreserveParagraphs bool `yaml:"preserve_paragraphs"`
	MinChunkSize       int  `yaml:"min_chunk_size"`
	MaxChunkSize       int  `yaml:"max_chunk_size"`
}

// Validate validates the chunking configuration.
func (c *ChunkingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(1)),
		validation.Field(&c.ChunkOverlap, validation.Min(0), validation.Max(c.ChunkSize-1)),
	)
}

// RetrievalConfig holds the initial query-time retrieval settings. They can
// be changed at runtime through the settings endpoint.
type RetrievalConfig struct {
	RelevanceThreshold  float64 `yaml:"relevance_threshold"`
	UseGeneralKnowledge bool    `yaml:"use_general_knowledge"`
}

// Validate validates the retrieval configuration.
func (c *RetrievalConfig) Validate() error {
	return c.Settings().Validate()
}

// Settings returns the retrieval settings for this configuration.
func (c *RetrievalConfig) Settings() model.Settings {
	return model.Settings{
		DocumentRelevanceThreshold: c.RelevanceThreshold,
		UseGeneralKnowledge:        c.UseGeneralKnowledge,
	}
}

// Options returns the chunker options for this configuration.
func (c *ChunkingConfig) Options() pipeline.ChunkOptions {
	return pipeline.ChunkOptions{
		ChunkSize:          c.ChunkSize,
		ChunkOverlap:       c.ChunkOverlap,
		PreserveParagraphs: c.PreserveParagraphs,
		MinChunkSize:       c.MinChunkSize,
		MaxChunkSize:       c.MaxChunkSize,
	}
}
