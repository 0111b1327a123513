// Package pgvector implements the retrieval ports on PostgreSQL with
// the pgvector extension. The shared policy corpus lives in the
// documents table; per-session document stores are temporary tables
// created on upload.
package pgvector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/ports"
)

// Config holds connection and schema settings.
type Config struct {
	DatabaseURL string
	Dimensions  int
	MaxConns    int
	MinConns    int
}

// Store backs both retrieval ports with one connection pool.
type Store struct {
	pool       *pgxpool.Pool
	embedder   ports.Embedder
	dimensions int
	logger     *zap.Logger
}

// New connects to PostgreSQL and ensures the extension and the policy
// corpus schema exist.
func New(ctx context.Context, cfg Config, embedder ports.Embedder, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		pool:       pool,
		embedder:   embedder,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	queries := []string{
		"CREATE EXTENSION IF NOT EXISTS vector;",
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS documents (
				id TEXT PRIMARY KEY,
				content TEXT NOT NULL,
				embedding vector(%d),
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);
		`, s.dimensions),
		"CREATE INDEX IF NOT EXISTS documents_embedding_idx ON documents USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);",
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

// Retrieve searches the shared policy corpus by cosine distance.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]ports.Chunk, error) {
	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.search(ctx, "documents", vec, topK)
}

// AddPolicyDocuments embeds and upserts chunks into the policy corpus.
// Used by corpus loading tooling, not by the chat pipeline.
func (s *Store) AddPolicyDocuments(ctx context.Context, chunks []string) error {
	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i, chunk := range chunks {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO documents (id, content, embedding)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding
		`, uuid.New().String(), chunk, pgvector.NewVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
	}
	return nil
}

func (s *Store) search(ctx context.Context, table string, vec []float32, topK int) ([]ports.Chunk, error) {
	q := fmt.Sprintf(`
		SELECT id, content, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, table)

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var chunks []ports.Chunk
	for rows.Next() {
		var c ports.Chunk
		if err := rows.Scan(&c.ID, &c.Content, &c.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return chunks, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
