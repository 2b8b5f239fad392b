// Package retrieve turns a user query into ranked context passages.
//
// The primary path embeds the query and asks the vector index for nearest
// chunks. When the index is unavailable, the embedder fails, or the primary
// search comes back empty, retrieval degrades to keyword-overlap scoring
// over the flat chunk corpus instead of failing the request.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pomoc-ai/pomoc/internal/embed"
	"github.com/pomoc-ai/pomoc/internal/index"
	"github.com/pomoc-ai/pomoc/internal/log"
)

const (
	// DefaultTopK is the number of passages returned when the caller does
	// not override it.
	DefaultTopK = 5

	// categoryBoost is added to the keyword-overlap score when a fallback
	// candidate's category equals the requested one.
	categoryBoost = 5
)

// Searcher is the index contract the retriever consumes. Both index
// backends satisfy it.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int, category string) ([]index.Result, error)
}

// Passage is one ranked context hit. On the primary path Score is the L2
// distance (lower is better); on the degraded path it is the keyword-overlap
// count (higher is better). The Retrieval's Degraded flag tells them apart.
type Passage struct {
	ChunkID     string
	Text        string
	Score       float32
	Category    string
	SourceLabel string
}

// Retrieval is the assembled context for one query.
type Retrieval struct {
	Passages []Passage
	// Context is the prompt-ready block: each passage under a numbered
	// source header.
	Context string
	// Sources lists passage source labels, deduplicated in first-occurrence
	// order.
	Sources  []string
	Degraded bool
}

// Retriever embeds queries and assembles context from the index, with a
// keyword fallback over the chunk corpus.
type Retriever struct {
	embedder embed.Embedder
	searcher Searcher
	corpus   []index.Entry
	logger   log.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithFallbackCorpus supplies the flat chunk list used for keyword scoring
// when the primary path is unavailable. Without it the degraded path can
// only return an empty retrieval.
func WithFallbackCorpus(entries []index.Entry) Option {
	return func(r *Retriever) { r.corpus = entries }
}

// New creates a Retriever over the given embedder and index backend.
func New(embedder embed.Embedder, searcher Searcher, logger log.Logger, opts ...Option) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	r := &Retriever{embedder: embedder, searcher: searcher, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// searchConfig holds per-call parameters.
type searchConfig struct {
	topK     int
	category string
}

// SearchOption configures a single Retrieve call.
type SearchOption func(*searchConfig)

// WithTopK overrides the number of passages returned.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) { c.topK = k }
}

// WithCategory restricts candidates to the given category: a filter on the
// primary path, a score boost on the fallback path.
func WithCategory(category string) SearchOption {
	return func(c *searchConfig) { c.category = category }
}

// Retrieve returns ranked context for the query. It degrades to keyword
// search instead of erroring when the index or embedder is unavailable, or
// when the primary search returns nothing; only invalid input or a cancelled
// context surface as errors.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...SearchOption) (Retrieval, error) {
	if strings.TrimSpace(query) == "" {
		return Retrieval{}, fmt.Errorf("retrieve: empty query")
	}

	cfg := searchConfig{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.topK <= 0 {
		cfg.topK = DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Retrieval{}, ctxErr
		}
		r.logger.Warn("query embedding failed, using keyword fallback", "error", err)
		return r.fallback(query, cfg), nil
	}

	results, err := r.searcher.Search(ctx, vector, cfg.topK, cfg.category)
	switch {
	case errors.Is(err, index.ErrUnavailable):
		r.logger.Warn("index unavailable, using keyword fallback")
		return r.fallback(query, cfg), nil
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Retrieval{}, ctxErr
		}
		return Retrieval{}, fmt.Errorf("searching index: %w", err)
	case len(results) == 0:
		r.logger.Debug("primary search empty, using keyword fallback", "query_length", len(query))
		return r.fallback(query, cfg), nil
	}

	passages := make([]Passage, len(results))
	for i, res := range results {
		passages[i] = Passage{
			ChunkID:     res.Entry.ChunkID,
			Text:        res.Entry.Text,
			Score:       res.Distance,
			Category:    res.Entry.Category,
			SourceLabel: res.Entry.SourceLabel,
		}
	}
	return assemble(passages, false), nil
}

// fallback scores corpus entries by word overlap with the query, boosts
// category matches, and keeps the top entries with a positive score. Ties
// keep corpus order.
func (r *Retriever) fallback(query string, cfg searchConfig) Retrieval {
	queryWords := wordSet(query)

	type scored struct {
		entry index.Entry
		score int
	}
	var candidates []scored
	for _, e := range r.corpus {
		score := overlap(queryWords, wordSet(e.Text))
		if cfg.category != "" && strings.EqualFold(e.Category, cfg.category) {
			score += categoryBoost
		}
		if score > 0 {
			candidates = append(candidates, scored{entry: e, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > cfg.topK {
		candidates = candidates[:cfg.topK]
	}

	passages := make([]Passage, len(candidates))
	for i, c := range candidates {
		passages[i] = Passage{
			ChunkID:     c.entry.ChunkID,
			Text:        c.entry.Text,
			Score:       float32(c.score),
			Category:    c.entry.Category,
			SourceLabel: c.entry.SourceLabel,
		}
	}
	return assemble(passages, true)
}

// assemble formats passages into the prompt context block and the
// deduplicated source list.
func assemble(passages []Passage, degraded bool) Retrieval {
	parts := make([]string, len(passages))
	var sources []string
	seen := make(map[string]struct{}, len(passages))

	for i, p := range passages {
		parts[i] = fmt.Sprintf("[Źródło %d: %s]\n%s\n", i+1, p.SourceLabel, p.Text)
		if _, ok := seen[p.SourceLabel]; !ok {
			seen[p.SourceLabel] = struct{}{}
			sources = append(sources, p.SourceLabel)
		}
	}

	return Retrieval{
		Passages: passages,
		Context:  strings.Join(parts, "\n"),
		Sources:  sources,
		Degraded: degraded,
	}
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	count := 0
	for w := range a {
		if _, ok := b[w]; ok {
			count++
		}
	}
	return count
}
