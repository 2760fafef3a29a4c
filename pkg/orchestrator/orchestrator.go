package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mberat/sonoreport/internal/models"
	"github.com/mberat/sonoreport/internal/types"
	"github.com/mberat/sonoreport/pkg/report"
)

// ErrInvalidFinding marks boundary validation failures: the submitted
// finding does not satisfy the required field set.
var ErrInvalidFinding = errors.New("invalid finding")

// Orchestrator runs the single-pass report pipeline: embed the finding
// query, retrieve guideline passages, generate once, split into sections.
// Each call is stateless; the only shared state is the read-only store
// handle it was constructed with.
type Orchestrator struct {
	embedder  types.Embedder
	store     types.VectorStore
	generator types.Generator
	topK      int
}

func New(embedder types.Embedder, store types.VectorStore, generator types.Generator, topK int) *Orchestrator {
	if topK <= 0 {
		topK = 2
	}

	return &Orchestrator{
		embedder:  embedder,
		store:     store,
		generator: generator,
		topK:      topK,
	}
}

// Generate produces a report for one structured finding. Retrieval failure
// aborts the request before the generation call: an ungrounded report is
// worse than no report.
func (o *Orchestrator) Generate(ctx context.Context, finding models.Finding) (*models.Report, error) {
	return o.generate(ctx, finding, nil)
}

// GenerateStream is Generate with raw text chunks forwarded to onChunk.
func (o *Orchestrator) GenerateStream(ctx context.Context, finding models.Finding, onChunk func(string)) (*models.Report, error) {
	return o.generate(ctx, finding, onChunk)
}

func (o *Orchestrator) generate(ctx context.Context, finding models.Finding, onChunk func(string)) (*models.Report, error) {
	if err := validateFinding(finding); err != nil {
		return nil, err
	}

	queryEmbedding, err := o.embedder.EmbedQuery(ctx, finding.QueryText())
	if err != nil {
		return nil, fmt.Errorf("embedding finding query: %w", err)
	}

	passages, err := o.store.Search(ctx, queryEmbedding, o.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving guideline passages: %w", err)
	}

	var raw string
	if onChunk != nil {
		raw, err = o.generator.GenerateStream(ctx, finding, passages, onChunk)
	} else {
		raw, err = o.generator.Generate(ctx, finding, passages)
	}
	if err != nil {
		return nil, fmt.Errorf("generating report: %w", err)
	}

	return &models.Report{
		Raw:         raw,
		Sections:    report.ExtractSections(raw),
		BIRADS:      report.ExtractBIRADS(raw),
		Sources:     uniqueSources(passages),
		GeneratedAt: time.Now(),
	}, nil
}

// Translate renders a generated report into German.
func (o *Orchestrator) Translate(ctx context.Context, reportText string) (string, error) {
	if reportText == "" {
		return "", fmt.Errorf("nothing to translate")
	}
	return o.generator.Translate(ctx, reportText)
}

func validateFinding(f models.Finding) error {
	required := []struct {
		field string
		value string
	}{
		{"lesion_type", f.LesionType},
		{"shape", f.Shape},
		{"margin", f.Margin},
		{"echo_pattern", f.EchoPattern},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: missing required field %s", ErrInvalidFinding, r.field)
		}
	}
	return nil
}

func uniqueSources(passages []models.ScoredPassage) []string {
	var sources []string
	seen := make(map[string]bool)

	for _, p := range passages {
		if !seen[p.Source] {
			sources = append(sources, p.Source)
			seen[p.Source] = true
		}
	}

	return sources
}
