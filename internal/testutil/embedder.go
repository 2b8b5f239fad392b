package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic in-process embedder for tests. Each token
// is hashed into a fixed-size bucket vector which is then L2-normalized, so
// texts sharing words produce nearby vectors and identical texts produce
// identical vectors. No network, no API key.
type HashEmbedder struct {
	Dim int
	// Err, when set, is returned by every call.
	Err error
}

// NewHashEmbedder returns a HashEmbedder with the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

// Embed returns the deterministic vector for one text.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if h.Err != nil {
		return nil, h.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("testutil: empty text")
	}
	return h.vector(text), nil
}

// EmbedBatch returns deterministic vectors for each text in order.
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if h.Err != nil {
		return nil, h.Err
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	dim := h.Dim
	if dim <= 0 {
		dim = 8
	}

	vec := make([]float32, dim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?:;()\"'")
		if token == "" {
			continue
		}
		hash := fnv.New32a()
		_, _ = hash.Write([]byte(token))
		vec[int(hash.Sum32())%dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
