package docs

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/ports"
)

// Processor turns a downloaded file into chunks loaded into the
// session document store. Heavy extraction and embedding work runs on
// a shared bounded pool so concurrent uploads cannot starve the
// chat pipelines.
type Processor struct {
	extractor ports.TextExtractor
	store     ports.SessionDocumentStore
	chunker   Chunker
	pool      *ants.Pool
	logger    *zap.Logger
}

// NewProcessor creates a document processor with its own worker pool.
// poolSize values below 1 fall back to a single worker.
func NewProcessor(extractor ports.TextExtractor, store ports.SessionDocumentStore, chunker Chunker, poolSize int, logger *zap.Logger) (*Processor, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor pool: %w", err)
	}
	return &Processor{
		extractor: extractor,
		store:     store,
		chunker:   chunker,
		pool:      pool,
		logger:    logger,
	}, nil
}

// Process extracts, chunks, and loads one document. The call blocks
// until the pooled job finishes or ctx is cancelled; a cancelled
// caller abandons the job but the pool slot is still released when the
// job completes.
func (p *Processor) Process(ctx context.Context, filePath, safeSessionID string) error {
	done := make(chan error, 1)

	err := p.pool.Submit(func() {
		done <- p.process(ctx, filePath, safeSessionID)
	})
	if err != nil {
		return fmt.Errorf("failed to submit processing job: %w", err)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) process(ctx context.Context, filePath, safeSessionID string) error {
	text, err := p.extractor.Extract(filePath)
	if err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}

	chunks := p.chunker.Chunk(text)
	if len(chunks) == 0 {
		return fmt.Errorf("document produced no chunks")
	}

	if err := p.store.Load(ctx, safeSessionID, chunks); err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}

	p.logger.Info("document processed",
		zap.String("safe_session_id", safeSessionID),
		zap.Int("chunks", len(chunks)))
	return nil
}

// Release shuts down the worker pool.
func (p *Processor) Release() {
	p.pool.Release()
}
