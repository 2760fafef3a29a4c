package types

import (
	"context"

	"github.com/mberat/sonoreport/internal/models"
)

// Embedder turns text into fixed-dimension vectors through a hosted API.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// VectorStore persists guideline passages and answers similarity queries.
// Passages and vectors are aligned by index.
type VectorStore interface {
	Ingest(ctx context.Context, passages []models.Passage, vectors [][]float32) error
	Search(ctx context.Context, embedding []float32, topK int) ([]models.ScoredPassage, error)
	Close()
}

// Generator produces report text from a finding and its retrieved context.
type Generator interface {
	Generate(ctx context.Context, finding models.Finding, passages []models.ScoredPassage) (string, error)
	GenerateStream(ctx context.Context, finding models.Finding, passages []models.ScoredPassage, onChunk func(string)) (string, error)
	Translate(ctx context.Context, report string) (string, error)
}

// Chunker splits guideline documents into passages for indexing.
type Chunker interface {
	Process(docs []models.GuidelineDocument) ([]models.ProcessedDocument, error)
}
