package pipeline

import (
	"fmt"
	"testing"

	"github.com/pomoc-ai/pomoc/internal/generate"
)

func TestSplitterConsistentAssignment(t *testing.T) {
	a := &scriptedGenerator{name: "variant-a"}
	b := &scriptedGenerator{name: "variant-b"}
	s := NewSplitter(a, b, 0.5)

	for _, key := range []string{"user-1", "user-2", "klient-42"} {
		first := s.Pick(key).Name()
		for i := 0; i < 10; i++ {
			if got := s.Pick(key).Name(); got != first {
				t.Fatalf("key %q flipped from %q to %q", key, first, got)
			}
		}
	}
}

func TestSplitterRatioDistribution(t *testing.T) {
	a := &scriptedGenerator{name: "variant-a"}
	b := &scriptedGenerator{name: "variant-b"}
	s := NewSplitter(a, b, 0.5)

	const n = 10000
	countA := 0
	for i := 0; i < n; i++ {
		if s.Pick(fmt.Sprintf("user-%d", i)).Name() == "variant-a" {
			countA++
		}
	}

	// SHA-256 spreads keys evenly; a 50/50 split over 10k keys should land
	// well within 45-55%.
	if countA < n*45/100 || countA > n*55/100 {
		t.Errorf("variant A got %d of %d keys, outside 45%%-55%%", countA, n)
	}
}

func TestSplitterSkewedRatio(t *testing.T) {
	a := &scriptedGenerator{name: "variant-a"}
	b := &scriptedGenerator{name: "variant-b"}
	s := NewSplitter(a, b, 0.9)

	const n = 10000
	countA := 0
	for i := 0; i < n; i++ {
		if s.Pick(fmt.Sprintf("user-%d", i)).Name() == "variant-a" {
			countA++
		}
	}
	if countA < n*85/100 {
		t.Errorf("variant A got %d of %d keys with ratio 0.9", countA, n)
	}
}

func TestSplitterInvalidRatioDefaults(t *testing.T) {
	a := &scriptedGenerator{name: "variant-a"}
	b := &scriptedGenerator{name: "variant-b"}

	for _, ratio := range []float64{0, -1, 1.5} {
		s := NewSplitter(a, b, ratio)
		if s.ratio != 0.5 {
			t.Errorf("NewSplitter(ratio=%v) kept ratio %v, want 0.5", ratio, s.ratio)
		}
	}
}

func TestSingleVariant(t *testing.T) {
	var g generate.Generator = &scriptedGenerator{name: "only"}
	s := SingleVariant(g)

	for _, key := range []string{"", "user-1", "anything"} {
		if got := s.Pick(key).Name(); got != "only" {
			t.Errorf("Pick(%q) = %q, want only", key, got)
		}
	}
	if names := s.Variants(); len(names) != 1 || names[0] != "only" {
		t.Errorf("Variants() = %v", names)
	}
}

func TestSplitterVariants(t *testing.T) {
	s := NewSplitter(&scriptedGenerator{name: "a"}, &scriptedGenerator{name: "b"}, 0.5)
	names := s.Variants()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Variants() = %v, want [a b]", names)
	}
}
