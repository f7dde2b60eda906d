package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate(), "Expected the default config to be valid")
	assert.Equal(t, ":8080", cfg.App.HTTP.Address(), "Expected the default address")
	assert.Equal(t, EmbeddingModeLocal, cfg.Embedding.Mode, "Expected local embedding by default")
	assert.Equal(t, 384, cfg.Embedding.Dimensions, "Expected the local model dimensions")
}

func TestConfigValidation(t *testing.T) {
	t.Run("Remote embedding requires api key", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Embedding.Mode = EmbeddingModeRemote
		err := cfg.Validate()
		require.Error(t, err, "Expected remote mode without an api key to be rejected")
		assert.Contains(t, err.Error(), "api_key", "Expected the error to name the missing key")
	})

	t.Run("Unknown embedding mode rejected", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Embedding.Mode = "gpu"
		require.Error(t, cfg.Validate(), "Expected an unknown embedding mode to be rejected")
	})

	t.Run("Overlap must be smaller than chunk size", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Chunking.ChunkSize = 100
		cfg.Chunking.ChunkOverlap = 100
		require.Error(t, cfg.Validate(), "Expected an overlap equal to the chunk size to be rejected")
	})

	t.Run("Invalid port rejected", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.App.HTTP.Port = 0
		require.Error(t, cfg.Validate(), "Expected port 0 to be rejected")
	})

	t.Run("Relevance threshold out of range rejected", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Retrieval.RelevanceThreshold = 0.99
		require.Error(t, cfg.Validate(), "Expected a threshold above 0.95 to be rejected")
	})
}

func TestRetrievalSettings(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Retrieval.RelevanceThreshold = 0.3
	cfg.Retrieval.UseGeneralKnowledge = false

	settings := cfg.Retrieval.Settings()
	assert.InDelta(t, 0.3, settings.DocumentRelevanceThreshold, 0.001, "Expected the threshold to carry over")
	assert.False(t, settings.UseGeneralKnowledge, "Expected the general knowledge flag to carry over")
}

func TestDatabaseConfigResolve(t *testing.T) {
	t.Run("YAML section wins over environment", func(t *testing.T) {
		t.Setenv("DB_USER", "envuser")
		t.Setenv("DB_NAME", "envdb")
		t.Setenv("DB_HOST", "envhost")

		cfg := DatabaseConfig{Host: "confighost", User: "configuser"}
		resolved, err := cfg.Resolve()
		require.NoError(t, err, "Expected the merged config to resolve")
		assert.Equal(t, "confighost", resolved.Host, "Expected the YAML host to win")
		assert.Equal(t, "configuser", resolved.User, "Expected the YAML user to win")
		assert.Equal(t, "envdb", resolved.DBName, "Expected the env name as fallback")
	})

	t.Run("Missing user and name rejected", func(t *testing.T) {
		t.Setenv("DB_USER", "")
		t.Setenv("DB_NAME", "")

		cfg := DatabaseConfig{Host: "localhost"}
		_, err := cfg.Resolve()
		require.Error(t, err, "Expected a config without user and name to be rejected")
	})
}

func TestChunkingOptions(t *testing.T) {
	cfg := ChunkingConfig{
		ChunkSize:          500,
		ChunkOverlap:       50,
		PreserveParagraphs: true,
		MinChunkSize:       20,
	}
	opts := cfg.Options()
	assert.Equal(t, 500, opts.ChunkSize, "Expected the chunk size mapped")
	assert.Equal(t, 50, opts.ChunkOverlap, "Expected the overlap mapped")
	assert.True(t, opts.PreserveParagraphs, "Expected paragraph preservation mapped")
}
