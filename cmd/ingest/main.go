package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/mberat/sonoreport/internal/models"
	cfgPkg "github.com/mberat/sonoreport/pkg/config"
	"github.com/mberat/sonoreport/pkg/llm"
	"github.com/mberat/sonoreport/pkg/loader"
	"github.com/mberat/sonoreport/pkg/processor"
	"github.com/mberat/sonoreport/pkg/store"
)

type flags struct {
	configPath string
	docsDir    string
	replace    bool
}

func main() {
	_ = godotenv.Load()

	f := parseFlags()

	config, err := cfgPkg.LoadConfig(f.configPath)
	if err != nil {
		log.Fatal(err)
	}
	if f.docsDir != "" {
		config.Ingest.DocsDir = f.docsDir
	}

	// Configuration errors are fatal before any network call is made.
	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %v", e)
		}
		log.Fatal("invalid configuration")
	}

	if err := run(config, f.replace); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.StringVar(&f.docsDir, "docs", "", "Guideline document directory (overrides config)")
	flag.BoolVar(&f.replace, "replace", false, "Drop existing passages before ingesting")
	flag.Parse()

	return f
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("passages"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config *cfgPkg.Config, replace bool) error {
	ctx := context.Background()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		APIKey:    config.LLM.APIKey,
		BaseURL:   config.LLM.BaseURL,
		Model:     config.LLM.EmbeddingModel,
		RateLimit: config.Ingest.RateLimit,
		Timeout:   time.Duration(config.Ingest.TimeoutSecs) * time.Second,
		Retry: llm.RetryPolicy{
			MaxAttempts:     config.Retry.MaxAttempts,
			InitialInterval: time.Duration(config.Retry.InitialIntervalMS) * time.Millisecond,
			MaxInterval:     time.Duration(config.Retry.MaxIntervalMS) * time.Millisecond,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString:     config.Database.URL,
		TableName:      config.Database.TableName,
		VectorDim:      config.Database.VectorDim,
		EmbeddingModel: config.LLM.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	if replace {
		if err := vectorStore.Reset(ctx); err != nil {
			return err
		}
		color.Yellow("Cleared existing passages")
	}

	color.Blue("Loading guideline documents from %s", config.Ingest.DocsDir)

	docs, err := loader.New().Load(config.Ingest.DocsDir)
	if err != nil {
		return err
	}
	color.Green("✓ Loaded %d documents", len(docs))

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      config.Ingest.ChunkSize,
		ChunkOverlap:   config.Ingest.ChunkOverlap,
		MinChunkLength: config.Ingest.MinChunkLength,
	})

	processed, err := proc.Process(docs)
	if err != nil {
		return fmt.Errorf("failed to process documents: %v", err)
	}

	passages := buildPassages(processed, embedder.Model())
	if len(passages) == 0 {
		return fmt.Errorf("no passages produced from %s", config.Ingest.DocsDir)
	}
	color.Green("✓ Split into %d passages", len(passages))

	bar := getProgressBar(len(passages), "Embedding and storing passages")
	batchSize := config.Database.BatchSize

	for i := 0; i < len(passages); i += batchSize {
		end := i + batchSize
		if end > len(passages) {
			end = len(passages)
		}
		batch := passages[i:end]

		texts := make([]string, len(batch))
		for j, p := range batch {
			texts[j] = p.Text
		}

		// A failed embedding aborts the run; ingestion is not resumable.
		vectors, err := embedder.EmbedPassages(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed passages: %v", err)
		}

		if err := vectorStore.Ingest(ctx, batch, vectors); err != nil {
			return fmt.Errorf("failed to store passages: %v", err)
		}
		bar.Add(len(batch))
	}

	total, err := vectorStore.Count(ctx)
	if err != nil {
		return err
	}
	color.Green("\n✓ Ingestion complete, store now holds %d passages (model %s)", total, embedder.Model())

	return nil
}

func buildPassages(processed []models.ProcessedDocument, embeddingModel string) []models.Passage {
	var passages []models.Passage

	for _, doc := range processed {
		for i, chunk := range doc.Chunks {
			passages = append(passages, models.Passage{
				ID:             fmt.Sprintf("%s_%d", doc.ID, i),
				Source:         doc.Title,
				ChunkIndex:     i,
				Text:           chunk,
				EmbeddingModel: embeddingModel,
			})
		}
	}

	return passages
}
