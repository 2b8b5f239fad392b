package pipeline

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/pomoc-ai/pomoc/internal/generate"
)

// Splitter routes each query to one of two generator variants by consistent
// hashing: the same key always lands on the same variant, so a returning
// user never flips between answer styles mid-experiment.
type Splitter struct {
	a, b  generate.Generator
	ratio float64
}

// NewSplitter creates an A/B splitter sending ratio of the traffic to
// variant a and the rest to b. ratio outside (0, 1] is treated as 0.5.
func NewSplitter(a, b generate.Generator, ratio float64) *Splitter {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return &Splitter{a: a, b: b, ratio: ratio}
}

// SingleVariant creates a splitter that always picks g, for deployments
// with A/B testing disabled.
func SingleVariant(g generate.Generator) *Splitter {
	return &Splitter{a: g, ratio: 1}
}

// Pick returns the variant assigned to key.
func (s *Splitter) Pick(key string) generate.Generator {
	if s.b == nil {
		return s.a
	}
	if hashFraction(key) < s.ratio {
		return s.a
	}
	return s.b
}

// Variants lists the generator names in play, variant A first.
func (s *Splitter) Variants() []string {
	names := []string{s.a.Name()}
	if s.b != nil {
		names = append(names, s.b.Name())
	}
	return names
}

// hashFraction maps a key to [0, 1) deterministically.
func hashFraction(key string) float64 {
	sum := sha256.Sum256([]byte(key))
	return float64(binary.BigEndian.Uint64(sum[:8])) / math.MaxUint64
}
