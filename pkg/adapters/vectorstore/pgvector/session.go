package pgvector

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/ports"
)

// Safe session IDs have already had hyphens replaced; anything else in
// a table name is rejected outright.
var safeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Exists reports whether a per-session document table is present.
func (s *Store) Exists(ctx context.Context, safeSessionID string) (bool, error) {
	table, err := sessionTable(safeSessionID)
	if err != nil {
		return false, err
	}

	var reg *string
	if err := s.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", table).Scan(&reg); err != nil {
		return false, fmt.Errorf("failed to check session table: %w", err)
	}
	return reg != nil, nil
}

// Load embeds chunks and writes them into the session's document
// table, creating it on first load. Re-uploading replaces the previous
// document.
func (s *Store) Load(ctx context.Context, safeSessionID string, chunks []string) error {
	table, err := sessionTable(safeSessionID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to load for session %s", safeSessionID)
	}

	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d)
		);
	`, table, s.dimensions)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create session table: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s", table)); err != nil {
		return fmt.Errorf("failed to clear session table: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (id, content, embedding) VALUES ($1, $2, $3)", table)
	for i, chunk := range chunks {
		if _, err := tx.Exec(ctx, insert, uuid.New().String(), chunk, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session load: %w", err)
	}

	s.logger.Info("session document loaded",
		zap.String("table", table),
		zap.Int("chunks", len(chunks)))
	return nil
}

// Search runs similarity search over a session's document table.
func (s *Store) Search(ctx context.Context, safeSessionID, query string, topK int) ([]ports.Chunk, error) {
	table, err := sessionTable(safeSessionID)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.search(ctx, table, vec, topK)
}

// Drop removes a session's document table. Missing tables are not an
// error.
func (s *Store) Drop(ctx context.Context, safeSessionID string) error {
	table, err := sessionTable(safeSessionID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("failed to drop session table: %w", err)
	}
	return nil
}

func sessionTable(safeSessionID string) (string, error) {
	if !safeIDPattern.MatchString(safeSessionID) {
		return "", fmt.Errorf("invalid safe session id: %q", safeSessionID)
	}
	return "temp_documents_" + safeSessionID, nil
}
