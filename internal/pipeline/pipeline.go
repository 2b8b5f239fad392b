// Package pipeline wires retrieval, generation, and guardrails into the
// single entry point the outer system calls. Answer always returns a
// well-formed response: backend failures turn into safe fallback answers
// with the human-escalation flag set, never into errors past this boundary.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pomoc-ai/pomoc/internal/generate"
	"github.com/pomoc-ai/pomoc/internal/guardrail"
	"github.com/pomoc-ai/pomoc/internal/log"
	"github.com/pomoc-ai/pomoc/internal/retrieve"
)

// Query is one customer question entering the pipeline.
type Query struct {
	Text string
	// Category optionally narrows retrieval to one knowledge category.
	Category string
	// UserID keys the A/B variant assignment; anonymous queries get a
	// random one.
	UserID string
}

// Response is the pipeline's answer record. Every field is always set;
// BlockedReason is empty unless a guardrail hard check fired.
type Response struct {
	ID            uuid.UUID             `json:"id"`
	Answer        string                `json:"answer"`
	Confidence    float64               `json:"confidence"`
	Sources       []string              `json:"sources"`
	RequiresHuman bool                  `json:"requires_human"`
	BlockedReason guardrail.BlockReason `json:"blocked_reason,omitempty"`
	Category      string                `json:"category"`
	Degraded      bool                  `json:"degraded"`
	Model         string                `json:"model"`
	Timestamp     time.Time             `json:"timestamp"`
}

// ContextRetriever is the retrieval contract the orchestrator consumes.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, opts ...retrieve.SearchOption) (retrieve.Retrieval, error)
}

// Orchestrator runs one query through retrieve → generate → guardrail.
// Stateless between requests apart from the stats counters; safe for
// concurrent use.
type Orchestrator struct {
	retriever  ContextRetriever
	generators *Splitter
	guard      *guardrail.Engine
	categorize func(string) string
	stats      *Stats
	topK       int
	logger     log.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets how many passages retrieval returns per query.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithStatsCapacity bounds the recent-response buffer.
func WithStatsCapacity(n int) Option {
	return func(o *Orchestrator) { o.stats = NewStats(n) }
}

// New creates an Orchestrator. The splitter decides which generator variant
// answers each query; pass a single-variant splitter when A/B testing is
// off.
func New(retriever ContextRetriever, generators *Splitter, guard *guardrail.Engine, logger log.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = log.NewNop()
	}
	o := &Orchestrator{
		retriever:  retriever,
		generators: generators,
		guard:      guard,
		categorize: generate.NewRule().Category,
		stats:      NewStats(DefaultRecentCapacity),
		topK:       retrieve.DefaultTopK,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stats exposes the accumulated counters for reporting endpoints.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// Answer processes one query end to end. It errors only on invalid input or
// a cancelled context; every degradation inside the pipeline is folded into
// the response instead.
func (o *Orchestrator) Answer(ctx context.Context, q Query) (Response, error) {
	if strings.TrimSpace(q.Text) == "" {
		return Response{}, fmt.Errorf("pipeline: empty query")
	}

	start := time.Now()
	resp := Response{
		ID:        uuid.New(),
		Category:  o.categorize(q.Text),
		Timestamp: start.UTC(),
	}

	retrieval, err := o.retriever.Retrieve(ctx, q.Text,
		retrieve.WithTopK(o.topK),
		retrieve.WithCategory(q.Category),
	)
	switch {
	case err != nil && ctx.Err() != nil:
		return Response{}, ctx.Err()
	case err != nil:
		// Retrieval already degrades internally; an error here means even
		// the fallback path was unreachable. Generate without context.
		o.logger.Warn("retrieval failed, answering without context", "error", err, "query_id", resp.ID)
		retrieval = retrieve.Retrieval{Degraded: true}
	}
	resp.Degraded = retrieval.Degraded
	resp.Sources = retrieval.Sources

	gen := o.generators.Pick(pickKey(q))
	result, err := gen.Generate(ctx, q.Text, retrieval.Context)
	switch {
	case err != nil && ctx.Err() != nil:
		return Response{}, ctx.Err()
	case err != nil:
		// Covers generate.ErrUnavailable and anything else the backend
		// throws: unavailability is escalation, never a crash.
		o.logger.Error("generation failed, returning safe fallback",
			"error", err, "model", gen.Name(), "query_id", resp.ID)
		resp.Answer = guardrail.HandoffTemplate
		resp.Confidence = 0
		resp.RequiresHuman = true
		resp.Model = gen.Name()
		o.stats.Record(resp)
		return resp, nil
	}

	verdict := o.guard.Evaluate(guardrail.Input{
		Query:      q.Text,
		Answer:     result.Answer,
		Confidence: result.Confidence,
		Sources:    retrieval.Sources,
		Context:    retrieval.Context,
	})

	resp.Answer = verdict.FinalAnswer
	resp.Confidence = result.Confidence
	resp.RequiresHuman = verdict.RequiresHuman
	resp.BlockedReason = verdict.BlockedReason
	resp.Model = result.Model

	if len(verdict.Warnings) > 0 {
		o.logger.Info("guardrail flagged answer",
			"query_id", resp.ID, "warnings", verdict.Warnings, "blocked_reason", verdict.BlockedReason)
	}
	o.logger.Debug("query answered",
		"query_id", resp.ID,
		"category", resp.Category,
		"model", resp.Model,
		"confidence", resp.Confidence,
		"requires_human", resp.RequiresHuman,
		"degraded", resp.Degraded,
		"duration", time.Since(start),
	)

	o.stats.Record(resp)
	return resp, nil
}

// pickKey returns the A/B assignment key: the user when known, otherwise a
// fresh random key so anonymous traffic still splits by ratio.
func pickKey(q Query) string {
	if q.UserID != "" {
		return q.UserID
	}
	return uuid.NewString()
}
