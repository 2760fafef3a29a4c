package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	cfgPkg "github.com/mberat/sonoreport/pkg/config"
	"github.com/mberat/sonoreport/pkg/llm"
	"github.com/mberat/sonoreport/pkg/orchestrator"
	"github.com/mberat/sonoreport/pkg/store"
	"github.com/mberat/sonoreport/server"
)

func main() {
	_ = godotenv.Load()

	var configPath string
	var addr string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if addr != "" {
		config.Server.Addr = addr
	}

	// Configuration errors are fatal before any network call is made.
	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config error: %v", e)
		}
		log.Fatal("invalid configuration")
	}

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func run(config *cfgPkg.Config) error {
	retry := llm.RetryPolicy{
		MaxAttempts:     config.Retry.MaxAttempts,
		InitialInterval: time.Duration(config.Retry.InitialIntervalMS) * time.Millisecond,
		MaxInterval:     time.Duration(config.Retry.MaxIntervalMS) * time.Millisecond,
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		APIKey:  config.LLM.APIKey,
		BaseURL: config.LLM.BaseURL,
		Model:   config.LLM.EmbeddingModel,
		Timeout: time.Duration(config.Ingest.TimeoutSecs) * time.Second,
		Retry:   retry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	generator, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		APIKey:      config.LLM.APIKey,
		BaseURL:     config.LLM.BaseURL,
		Model:       config.LLM.Model,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
		Timeout:     time.Duration(config.LLM.TimeoutSecs) * time.Second,
		Retry:       retry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %v", err)
	}

	// The store handle is opened once and shared read-only across requests.
	vectorStore, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{
		ConnString:     config.Database.URL,
		TableName:      config.Database.TableName,
		VectorDim:      config.Database.VectorDim,
		EmbeddingModel: config.LLM.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	pipeline := orchestrator.New(embedder, vectorStore, generator, config.Retrieval.TopK)

	srv := server.New(server.Config{
		Addr:      config.Server.Addr,
		Streaming: config.Server.Streaming,
	}, pipeline)

	return srv.ListenAndServe()
}
