// Package embeddings implements the embedder port on OpenAI-compatible
// embedding APIs via langchaingo.
package embeddings

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Config holds embedder configuration. BaseURL may point at any
// OpenAI-compatible service; Token may be a placeholder for local
// services that skip authentication.
type Config struct {
	BaseURL string
	Token   string
	Model   string
}

// OpenAIEmbedder generates vector embeddings through an
// OpenAI-compatible endpoint. Safe for concurrent use.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewOpenAIEmbedder creates the embedder.
func NewOpenAIEmbedder(cfg Config, logger *zap.Logger) (*OpenAIEmbedder, error) {
	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	token := cfg.Token
	if token == "" {
		// Local OpenAI-compatible servers reject empty tokens at the
		// client level even when they ignore them.
		token = "none"
	}
	opts = append(opts, openai.WithToken(token))

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("embeddings client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("embeddings wrapper: %w", err)
	}

	return &OpenAIEmbedder{embedder: embedder, logger: logger}, nil
}

// EmbedText generates an embedding for a single text.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedTexts generates embeddings for a batch of texts.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	return vectors, nil
}
