// Package chunk splits knowledge documents into bounded retrievable units.
//
// The chunking strategy depends on the document kind:
//
//   - Self-contained units (FAQ entries, support dialogs) map to exactly one
//     chunk, so a question never loses its answer across a chunk boundary.
//   - Free-form regulation text is split at Size-rune boundaries with an
//     Overlap-rune carry-over from the tail of the previous chunk. Breaks
//     prefer whitespace within a small lookback window so sentences survive
//     intact where possible; otherwise the text is hard-cut.
//
// Splitting is lossless: concatenating every chunk's non-overlap portion in
// order reproduces the source document text exactly.
package chunk

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/pomoc-ai/pomoc/internal/knowledge"
)

// Default chunking parameters, in runes.
const (
	DefaultSize    = 500
	DefaultOverlap = 50

	// breakLookback is how far back from a hard boundary we search for a
	// whitespace break before giving up and cutting mid-word.
	breakLookback = 50
)

// ErrInvalidConfig indicates chunking parameters that cannot make progress.
var ErrInvalidConfig = errors.New("chunk: size must be greater than overlap, overlap must be non-negative")

// Config holds chunking parameters. All values are rune counts.
type Config struct {
	Size    int // Maximum chunk length
	Overlap int // Carry-over from the previous chunk's tail
}

// DefaultConfig returns the standard chunking parameters.
func DefaultConfig() Config {
	return Config{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Chunk is a bounded span of a source document, the unit of retrieval.
// Every chunk belongs to exactly one document; its text is a contiguous
// substring of the document text.
type Chunk struct {
	ID          string // DocumentID plus sequence number
	Text        string // Chunk text, at most Config.Size runes
	Overlap     int    // Runes shared with the predecessor chunk (0 for the first)
	Seq         int    // Position within the document, 0-based
	DocumentID  string
	Category    string
	SourceLabel string
}

// NonOverlap returns the portion of the chunk text not shared with its
// predecessor. Concatenating NonOverlap over a document's chunks in order
// reproduces the document text.
func (c Chunk) NonOverlap() string {
	if c.Overlap <= 0 {
		return c.Text
	}
	r := []rune(c.Text)
	if c.Overlap >= len(r) {
		return ""
	}
	return string(r[c.Overlap:])
}

// Split chunks a single document according to cfg.
// An empty document yields no chunks. Pure function: no side effects,
// deterministic for identical inputs.
func Split(doc knowledge.Document, cfg Config) ([]Chunk, error) {
	if cfg.Size <= 0 || cfg.Overlap < 0 || cfg.Size <= cfg.Overlap {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidConfig, cfg.Size, cfg.Overlap)
	}
	if doc.Text == "" {
		return nil, nil
	}

	runes := []rune(doc.Text)

	// Self-contained semantic units become a single chunk as long as they
	// fit the bound; oversized units fall back to the windowed split so the
	// chunk-size invariant holds for every chunk.
	if (doc.Kind == knowledge.KindFAQ || doc.Kind == knowledge.KindDialog) && len(runes) <= cfg.Size {
		return []Chunk{newChunk(doc, string(runes), 0, 0)}, nil
	}

	return splitWindowed(doc, runes, cfg), nil
}

// SplitAll chunks documents in order, preserving document order in the
// resulting chunk sequence. Chunk order is the index insertion order, which
// the vector index uses for stable tie-breaking.
func SplitAll(docs []knowledge.Document, cfg Config) ([]Chunk, error) {
	var all []Chunk
	for _, doc := range docs {
		chunks, err := Split(doc, cfg)
		if err != nil {
			return nil, fmt.Errorf("chunking document %q: %w", doc.ID, err)
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// splitWindowed cuts runes into Size-bounded windows with Overlap carry-over.
// Invariant: every window end advances past the previous window's end, so the
// loop always terminates and the non-overlap portions tile the document.
func splitWindowed(doc knowledge.Document, runes []rune, cfg Config) []Chunk {
	var chunks []Chunk

	start, prevEnd := 0, 0
	for seq := 0; ; seq++ {
		end := start + cfg.Size
		if end >= len(runes) {
			end = len(runes)
		} else if j := whitespaceBreak(runes, end, prevEnd); j > 0 {
			end = j
		}

		chunks = append(chunks, newChunk(doc, string(runes[start:end]), prevEnd-start, seq))

		if end == len(runes) {
			return chunks
		}
		prevEnd = end
		start = end - cfg.Overlap
		if start < 0 {
			start = 0
		}
	}
}

// whitespaceBreak looks backward from the hard boundary at end for a
// whitespace rune within the lookback window and returns the position just
// after it, so the break lands between words. Returns 0 when no usable break
// exists (the caller then hard-cuts). A break is usable only if it still
// advances past the previous chunk's end.
func whitespaceBreak(runes []rune, end, prevEnd int) int {
	limit := end - breakLookback
	if limit < 0 {
		limit = 0
	}
	for i := end - 1; i >= limit; i-- {
		if unicode.IsSpace(runes[i]) && i+1 > prevEnd {
			return i + 1
		}
	}
	return 0
}

func newChunk(doc knowledge.Document, text string, overlap, seq int) Chunk {
	return Chunk{
		ID:          fmt.Sprintf("%s:%04d", doc.ID, seq),
		Text:        text,
		Overlap:     overlap,
		Seq:         seq,
		DocumentID:  doc.ID,
		Category:    doc.Category,
		SourceLabel: doc.SourceLabel,
	}
}
