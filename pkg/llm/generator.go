package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mberat/sonoreport/internal/models"
)

// GeneratorConfig represents the configuration for the generation client.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Retry       RetryPolicy
}

// Generator calls the hosted chat model. Exactly one completion request is
// issued per report; transient failures are retried within the configured
// budget, everything else surfaces as a generation error.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
}

func NewGeneratorWithConfig(config GeneratorConfig) (*Generator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("generator: API key is required")
	}
	if config.Model == "" {
		config.Model = "gpt-4o"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1500
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation client: %w", err)
	}

	return &Generator{
		config: config,
		llm:    client,
	}, nil
}

// Generate produces the raw report text for a finding and its retrieved
// guideline passages.
func (g *Generator) Generate(ctx context.Context, finding models.Finding, passages []models.ScoredPassage) (string, error) {
	prompt := BuildReportPrompt(finding, passages, time.Now())

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	return g.complete(ctx, content, nil)
}

// GenerateStream is Generate with chunks forwarded to onChunk as they
// arrive. The assembled full text is returned once the stream ends.
func (g *Generator) GenerateStream(ctx context.Context, finding models.Finding, passages []models.ScoredPassage, onChunk func(string)) (string, error) {
	prompt := BuildReportPrompt(finding, passages, time.Now())

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	return g.complete(ctx, content, onChunk)
}

// Translate renders an English report into German, preserving structure.
func (g *Generator) Translate(ctx context.Context, report string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, translateSystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, BuildTranslatePrompt(report)),
	}

	return g.complete(ctx, content, nil)
}

func (g *Generator) complete(ctx context.Context, content []llms.MessageContent, onChunk func(string)) (string, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(g.config.Temperature),
		llms.WithMaxTokens(g.config.MaxTokens),
	}
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			onChunk(string(chunk))
			return nil
		}))
	}

	var text string
	err := retryTransient(ctx, g.config.Retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()

		response, err := g.llm.GenerateContent(callCtx, content, opts...)
		if err != nil {
			return fmt.Errorf("generation request: %w", err)
		}
		if response == nil || len(response.Choices) == 0 || response.Choices[0].Content == "" {
			return fmt.Errorf("empty response from generation service")
		}
		text = response.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", err
	}

	return text, nil
}
