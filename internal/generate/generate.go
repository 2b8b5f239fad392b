// Package generate produces draft answers from a query and retrieved
// context. Two variants share one contract: a deterministic rule-based
// generator that needs no backend, and a model-backed generator driven
// through Genkit. Both attach a confidence estimate; neither decides whether
// the answer ships, that is the guardrail engine's call.
package generate

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the generation backend could not produce an
// answer at all (unreachable, timed out, or not configured). Callers must
// treat it as a signal to fall back, never as a crash.
var ErrUnavailable = errors.New("generate: backend unavailable")

// Result is one generated draft answer.
type Result struct {
	Answer string
	// Confidence is the generator's self-estimate in [0, 1]. It feeds the
	// guardrail threshold check and is never shown to the customer.
	Confidence float64
	// Model identifies which generator variant produced the answer.
	Model string
}

// Generator is the contract shared by all answer-producing variants.
type Generator interface {
	// Generate drafts an answer to query given the retrieved knowledge-base
	// context (may be empty).
	Generate(ctx context.Context, query, kbContext string) (Result, error)
	// Name identifies the variant for routing and response metadata.
	Name() string
}

// clampConfidence bounds a confidence estimate to [lo, hi].
func clampConfidence(c, lo, hi float64) float64 {
	if c < lo {
		return lo
	}
	if c > hi {
		return hi
	}
	return c
}
