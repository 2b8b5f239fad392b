// Package index stores chunk vectors with metadata and answers
// nearest-neighbor queries.
//
// Two interchangeable backends implement the same search contract:
//
//   - Flat: an in-memory exhaustive index held in an immutable snapshot
//     behind an atomic pointer. Rebuilds never block searches: a new
//     snapshot is built aside and swapped in one pointer store. The
//     snapshot persists to disk (gob, file-locked, atomic rename) and
//     reloads byte-for-byte equivalent.
//   - Postgres: a pgvector-backed table, for deployments that already run
//     the database. Durability is delegated to Postgres.
//
// Ranking is ascending L2 distance in both backends; ties are broken by
// insertion order (the chunk sequence assigned at build time), so rebuilding
// from the same chunk set yields identical rankings.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pomoc-ai/pomoc/internal/chunk"
	"github.com/pomoc-ai/pomoc/internal/embed"
)

// ErrUnavailable indicates the index has no usable snapshot: it was never
// built and could not be loaded. The index never masks this as an empty
// result set; the retriever decides whether to fall back.
var ErrUnavailable = errors.New("index: unavailable")

// Entry is one indexed chunk: its vector plus the metadata needed to format
// retrieval results without a second lookup.
type Entry struct {
	ChunkID     string
	Seq         int // Insertion position, the stable tie-breaker
	Vector      []float32
	Text        string
	DocumentID  string
	Category    string
	SourceLabel string
}

// Result is one ranked search hit. Distance is L2; lower is closer.
type Result struct {
	Entry    Entry
	Distance float32
}

// EntriesFromChunks embeds chunk texts in batches and pairs them with their
// metadata, preserving chunk order. This is the shared build step for both
// backends.
func EntriesFromChunks(ctx context.Context, embedder embed.Embedder, chunks []chunk.Chunk, batchSize int) ([]Entry, error) {
	if batchSize <= 0 {
		batchSize = 32
	}

	entries := make([]Entry, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk batch at %d: %w", start, err)
		}

		for i, c := range batch {
			entries = append(entries, Entry{
				ChunkID:     c.ID,
				Seq:         start + i,
				Vector:      vecs[i],
				Text:        c.Text,
				DocumentID:  c.DocumentID,
				Category:    c.Category,
				SourceLabel: c.SourceLabel,
			})
		}
	}
	return entries, nil
}

// l2Distance computes the Euclidean distance between two vectors of equal
// length.
func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
