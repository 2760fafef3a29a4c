package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// EmbedderConfig represents the configuration for the embedding client.
type EmbedderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	RateLimit float64 // embedding requests per second
	Timeout   time.Duration
	Retry     RetryPolicy
}

// Embedder computes fixed-dimension vectors through the hosted embedding
// API. Calls are rate limited client-side so bulk ingestion stays inside
// the provider's request budget.
type Embedder struct {
	config  EmbedderConfig
	client  *openai.LLM
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("embedder: API key is required")
	}
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5.0
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Model returns the embedding model identifier. The store tags every
// passage with it and rejects queries made with a different model.
func (e *Embedder) Model() string {
	return e.config.Model
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts)
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("cannot embed empty input")
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var vectors [][]float32
	err := retryTransient(ctx, e.config.Retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		out, err := e.client.CreateEmbedding(callCtx, texts)
		if err != nil {
			return fmt.Errorf("embedding request: %w", err)
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(vectors), len(texts))
	}

	return vectors, nil
}
