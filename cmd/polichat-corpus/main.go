// Command polichat-corpus loads policy documents into the shared
// retrieval corpus. Each argument is a plain-text file that is chunked,
// embedded, and upserted into the documents table.
//
// Usage:
//
//	polichat-corpus handbook.txt leave-policy.txt
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/polichat/polichat/internal/config"
	"github.com/polichat/polichat/pkg/adapters/docs"
	"github.com/polichat/polichat/pkg/adapters/embeddings"
	"github.com/polichat/polichat/pkg/adapters/vectorstore/pgvector"
)

// corpusConfig is the subset of service configuration the loader needs.
// The chat service's LLM settings are deliberately not required here.
type corpusConfig struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	Postgres   config.PostgresConfig
	Embeddings config.EmbeddingsConfig
	Retrieval  config.RetrievalConfig
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: polichat-corpus <file> [file...]")
		os.Exit(2)
	}

	cfg := &corpusConfig{}
	if err := env.Parse(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	embedder, err := embeddings.NewOpenAIEmbedder(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Token:   cfg.Embeddings.Token,
		Model:   cfg.Embeddings.Model,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create embedder", zap.Error(err))
	}

	store, err := pgvector.New(ctx, pgvector.Config{
		DatabaseURL: cfg.Postgres.URL,
		Dimensions:  cfg.Postgres.Dimensions,
		MaxConns:    cfg.Postgres.MaxConns,
		MinConns:    cfg.Postgres.MinConns,
	}, embedder, logger)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer store.Close()

	extractor := docs.PlainTextExtractor{}
	chunker := docs.Chunker{
		SentencesPerChunk: cfg.Retrieval.SentencesPerChunk,
		Overlap:           cfg.Retrieval.ChunkOverlap,
	}

	total := 0
	for _, path := range os.Args[1:] {
		text, err := extractor.Extract(path)
		if err != nil {
			logger.Fatal("failed to read document",
				zap.String("path", path),
				zap.Error(err))
		}

		chunks := chunker.Chunk(text)
		if len(chunks) == 0 {
			logger.Warn("document produced no chunks, skipping", zap.String("path", path))
			continue
		}

		if err := store.AddPolicyDocuments(ctx, chunks); err != nil {
			logger.Fatal("failed to load document into corpus",
				zap.String("path", path),
				zap.Error(err))
		}

		logger.Info("document loaded",
			zap.String("path", path),
			zap.Int("chunks", len(chunks)))
		total += len(chunks)
	}

	logger.Info("corpus load complete", zap.Int("total_chunks", total))
}
