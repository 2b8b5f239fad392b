// Package embed maps text to fixed-dimension vectors behind a small contract.
//
// The production implementation wraps a Genkit ai.Embedder (Gemini, Ollama or
// OpenAI, selected at wiring time); tests use a deterministic local embedder.
// Both sides of the contract guarantee determinism for a given model version:
// the same text always yields the same vector.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// ErrEmbedding indicates the embedding backend rejected the input or was
// unreachable. Callers must never receive a partial or zero vector in place
// of this error.
var ErrEmbedding = errors.New("embed: embedding failed")

// DefaultTimeout bounds a single embedding call so the pipeline never hangs
// on a slow backend.
const DefaultTimeout = 10 * time.Second

// Embedder converts text into fixed-dimension vectors.
//
// EmbedBatch is order-preserving and equivalent to calling Embed per item
// with the same model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Genkit adapts a Genkit ai.Embedder to the Embedder contract.
type Genkit struct {
	embedder ai.Embedder
	timeout  time.Duration
}

// NewGenkit wraps the given ai.Embedder. A non-positive timeout falls back
// to DefaultTimeout.
func NewGenkit(embedder ai.Embedder, timeout time.Duration) *Genkit {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Genkit{embedder: embedder, timeout: timeout}
}

// Embed returns the vector for a single text.
func (g *Genkit) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one backend request, preserving input order.
// Empty or blank inputs are rejected up front: a blank string embedded as a
// zero vector would silently poison nearest-neighbor results.
func (g *Genkit) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no input", ErrEmbedding)
	}

	docs := make([]*ai.Document, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: blank input at position %d", ErrEmbedding, i)
		}
		docs = append(docs, ai.DocumentFromText(text, nil))
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.embedder.Embed(callCtx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timeout after %s: %v", ErrEmbedding, g.timeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbedding, len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty vector at position %d", ErrEmbedding, i)
		}
		vecs[i] = e.Embedding
	}
	return vecs, nil
}
