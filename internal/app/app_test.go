package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pomoc-ai/pomoc/internal/config"
	"github.com/pomoc-ai/pomoc/internal/generate"
	"github.com/pomoc-ai/pomoc/internal/knowledge"
	"github.com/pomoc-ai/pomoc/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Provider:            config.ProviderGoogleAI,
		ModelName:           "googleai/gemini-2.0-flash",
		Temperature:         0.7,
		MaxTokens:           200,
		TopP:                0.9,
		EmbedderModel:       "text-embedding-004",
		EmbedderDimension:   8,
		ChunkSize:           500,
		ChunkOverlap:        50,
		TopK:                5,
		ConfidenceThreshold: 0.7,
		MinAnswerLength:     20,
		MaxAnswerLength:     500,
		IndexBackend:        config.BackendMemory,
		IndexPath:           filepath.Join(t.TempDir(), "index.gob"),
		DataDir:             t.TempDir(),
		ABSplitRatio:        0.5,
		ServerAddr:          ":0",
	}
}

func TestProvideFallbackCorpus(t *testing.T) {
	cfg := testConfig(t)
	faqPath := filepath.Join(cfg.DataDir, knowledge.FAQPath)
	if err := os.MkdirAll(filepath.Dir(faqPath), 0o750); err != nil {
		t.Fatal(err)
	}
	data := `{"faq": [
		{"question": "Jak zwrócić produkt?", "answer": "Masz 14 dni na zwrot.", "category": "zwroty"},
		{"question": "Ile kosztuje dostawa?", "answer": "Kurier 15 zł.", "category": "dostawa"}
	]}`
	if err := os.WriteFile(faqPath, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	entries := provideFallbackCorpus(cfg, log.NewNop())
	if len(entries) != 2 {
		t.Fatalf("corpus has %d entries, want 2", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i {
			t.Errorf("entry %d Seq = %d, want %d", i, e.Seq, i)
		}
		if e.Vector != nil {
			t.Errorf("entry %d carries a vector, fallback corpus should not embed", i)
		}
		if e.SourceLabel != knowledge.SourceFAQ {
			t.Errorf("entry %d SourceLabel = %q, want %q", i, e.SourceLabel, knowledge.SourceFAQ)
		}
	}
}

func TestProvideFallbackCorpus_MissingDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = filepath.Join(cfg.DataDir, "does-not-exist")

	if entries := provideFallbackCorpus(cfg, log.NewNop()); entries != nil {
		t.Errorf("corpus = %d entries, want nil for missing data dir", len(entries))
	}
}

func TestProvideGenerators_ABTestDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.ABTestEnabled = false

	gens := provideGenerators(nil, cfg, log.NewNop())
	variants := gens.Variants()
	if len(variants) != 1 || variants[0] != generate.RuleModelName {
		t.Errorf("variants = %v, want [%s]", variants, generate.RuleModelName)
	}
}

func TestProvideGenerators_ABTestEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.ABTestEnabled = true

	gens := provideGenerators(nil, cfg, log.NewNop())
	variants := gens.Variants()
	if len(variants) != 2 {
		t.Fatalf("variants = %v, want two", variants)
	}
	if variants[0] != generate.RuleModelName {
		t.Errorf("variant A = %q, want %q", variants[0], generate.RuleModelName)
	}
	if variants[1] != cfg.ModelName {
		t.Errorf("variant B = %q, want %q", variants[1], cfg.ModelName)
	}
}

func TestClose_PartiallyInitialized(t *testing.T) {
	a := &App{Logger: log.NewNop()}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
