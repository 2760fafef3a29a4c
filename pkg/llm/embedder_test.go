package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderWithConfig(t *testing.T) {
	t.Run("missing API key", func(t *testing.T) {
		_, err := NewEmbedderWithConfig(EmbedderConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key")
	})

	t.Run("defaults applied", func(t *testing.T) {
		e, err := NewEmbedderWithConfig(EmbedderConfig{APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, "text-embedding-3-small", e.Model())
		assert.Equal(t, 5.0, e.config.RateLimit)
		assert.Equal(t, 30*time.Second, e.config.Timeout)
	})
}

func TestEmbedEmptyInput(t *testing.T) {
	e, err := NewEmbedderWithConfig(EmbedderConfig{APIKey: "sk-test"})
	require.NoError(t, err)

	_, err = e.EmbedPassages(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty input")
}
