package app

import (
	"context"
	"fmt"

	"github.com/pomoc-ai/pomoc/internal/chunk"
	"github.com/pomoc-ai/pomoc/internal/config"
	"github.com/pomoc-ai/pomoc/internal/index"
	"github.com/pomoc-ai/pomoc/internal/knowledge"
)

// embedBatchSize bounds how many chunk texts go to the embedder per call.
const embedBatchSize = 32

// RebuildIndex loads the knowledge files, chunks and embeds them, and
// replaces the configured index backend's contents. The memory backend also
// persists the new snapshot. Returns the number of indexed chunks.
func (a *App) RebuildIndex(ctx context.Context) (int, error) {
	cfg := a.Config

	docs, err := knowledge.LoadDir(cfg.DataDir)
	if err != nil {
		return 0, fmt.Errorf("loading knowledge files: %w", err)
	}

	chunks, err := chunk.SplitAll(docs, chunk.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		return 0, fmt.Errorf("chunking documents: %w", err)
	}
	a.Logger.Info("chunked knowledge base", "documents", len(docs), "chunks", len(chunks))

	entries, err := index.EntriesFromChunks(ctx, a.Embedder, chunks, embedBatchSize)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(entries) > 0 && len(entries[0].Vector) != cfg.EmbedderDimension {
		return 0, fmt.Errorf("embedder returned dimension %d, config expects %d",
			len(entries[0].Vector), cfg.EmbedderDimension)
	}

	switch cfg.IndexBackend {
	case config.BackendPostgres:
		pg, ok := a.searcher.(*index.Postgres)
		if !ok {
			return 0, fmt.Errorf("postgres backend not initialized")
		}
		if err := pg.ReplaceAll(ctx, entries); err != nil {
			return 0, fmt.Errorf("replacing index rows: %w", err)
		}

	default: // memory
		if a.Flat == nil {
			return 0, fmt.Errorf("memory backend not initialized")
		}
		if err := a.Flat.Build(entries); err != nil {
			return 0, fmt.Errorf("building index: %w", err)
		}
		if err := a.Flat.Persist(); err != nil {
			return 0, fmt.Errorf("persisting index snapshot: %w", err)
		}
	}

	a.Logger.Info("index rebuilt", "backend", cfg.IndexBackend, "entries", len(entries))
	return len(entries), nil
}
