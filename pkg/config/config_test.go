package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  model: "gpt-4o"
  embedding_model: "text-embedding-3-small"
  max_tokens: 1000
  temperature: 0
  timeout_secs: 45

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_passages"
  vector_dim: 1536
  batch_size: 32

retrieval:
  top_k: 3

ingest:
  docs_dir: "guidelines"
  chunk_size: 500
  chunk_overlap: 100
  rate_limit: 2.5

server:
  addr: ":9090"
  streaming: true
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", config.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", config.LLM.EmbeddingModel)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, float64(0), config.LLM.Temperature)
	assert.Equal(t, 45, config.LLM.TimeoutSecs)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_passages", config.Database.TableName)
	assert.Equal(t, 3, config.Retrieval.TopK)
	assert.Equal(t, "guidelines", config.Ingest.DocsDir)
	assert.Equal(t, 500, config.Ingest.ChunkSize)
	assert.Equal(t, ":9090", config.Server.Addr)
	assert.True(t, config.Server.Streaming)

	// Unset values fall back to defaults
	assert.Equal(t, 3, config.Retry.MaxAttempts)
	assert.Equal(t, 100, config.Ingest.MinChunkLength)
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("{}"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", config.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", config.LLM.EmbeddingModel)
	assert.Equal(t, "guideline_passages", config.Database.TableName)
	assert.Equal(t, 1536, config.Database.VectorDim)
	assert.Equal(t, 2, config.Retrieval.TopK)
	assert.Equal(t, 1000, config.Ingest.ChunkSize)
	assert.Equal(t, ":8080", config.Server.Addr)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := Config{}
		applyDefaults(&c)
		c.LLM.APIKey = "sk-test"
		c.Database.URL = "postgres://localhost:5432/test"
		return c
	}

	t.Run("valid config", func(t *testing.T) {
		c := valid()
		assert.Empty(t, c.Validate())
	})

	t.Run("missing credential is a configuration error", func(t *testing.T) {
		c := valid()
		c.LLM.APIKey = ""

		errs := c.Validate()
		require.Len(t, errs, 1)
		assert.Equal(t, "llm.api_key", errs[0].Field)
		assert.Contains(t, errs[0].Error(), "OPENAI_API_KEY")
	})

	t.Run("missing database url", func(t *testing.T) {
		c := valid()
		c.Database.URL = ""

		errs := c.Validate()
		require.Len(t, errs, 1)
		assert.Equal(t, "database.url", errs[0].Field)
	})

	t.Run("out of range values", func(t *testing.T) {
		c := valid()
		c.LLM.MaxTokens = 5000
		c.LLM.Temperature = 3.0
		c.Database.VectorDim = -1
		c.Retrieval.TopK = 0
		c.Ingest.ChunkOverlap = c.Ingest.ChunkSize

		errs := c.Validate()
		fields := make([]string, 0, len(errs))
		for _, e := range errs {
			fields = append(fields, e.Field)
		}
		assert.Contains(t, fields, "llm.max_tokens")
		assert.Contains(t, fields, "llm.temperature")
		assert.Contains(t, fields, "database.vector_dim")
		assert.Contains(t, fields, "retrieval.top_k")
		assert.Contains(t, fields, "ingest.chunk_overlap")
	})
}
