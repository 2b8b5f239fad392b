package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pomoc-ai/pomoc/internal/generate"
	"github.com/pomoc-ai/pomoc/internal/guardrail"
	"github.com/pomoc-ai/pomoc/internal/index"
	"github.com/pomoc-ai/pomoc/internal/log"
	"github.com/pomoc-ai/pomoc/internal/retrieve"
)

// stubRetriever returns a scripted retrieval, or an error when set.
type stubRetriever struct {
	retrieval retrieve.Retrieval
	err       error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, opts ...retrieve.SearchOption) (retrieve.Retrieval, error) {
	if s.err != nil {
		return retrieve.Retrieval{}, s.err
	}
	return s.retrieval, nil
}

// scriptedGenerator returns a fixed result or error; echoes the query when
// echo is set.
type scriptedGenerator struct {
	name       string
	answer     string
	confidence float64
	err        error
	echo       bool
}

func (g *scriptedGenerator) Name() string { return g.name }

func (g *scriptedGenerator) Generate(ctx context.Context, query, kbContext string) (generate.Result, error) {
	if g.err != nil {
		return generate.Result{}, g.err
	}
	answer := g.answer
	if g.echo {
		answer = "Oczywiście, oto dane o które pytasz: " + query
	}
	return generate.Result{Answer: answer, Confidence: g.confidence, Model: g.name}, nil
}

func returnsRetrieval() retrieve.Retrieval {
	return retrieve.Retrieval{
		Passages: []retrieve.Passage{{
			ChunkID:     "faq-1:0000",
			Text:        "Masz 14 dni na zwrot produktu od daty otrzymania.",
			Category:    "zwroty",
			SourceLabel: "FAQ",
		}},
		Context: "[Źródło 1: FAQ]\nMasz 14 dni na zwrot produktu od daty otrzymania.\n",
		Sources: []string{"FAQ"},
	}
}

func TestAnswerReturnsPolicyQuery(t *testing.T) {
	o := New(
		&stubRetriever{retrieval: returnsRetrieval()},
		SingleVariant(generate.NewRule()),
		guardrail.New(),
		log.NewNop(),
	)

	resp, err := o.Answer(context.Background(), Query{Text: "Jak mogę zwrócić produkt?"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.RequiresHuman {
		t.Errorf("RequiresHuman = true for a clean returns query: %+v", resp)
	}
	if resp.Confidence < 0.7 {
		t.Errorf("Confidence = %v, want >= 0.7", resp.Confidence)
	}
	if !strings.Contains(resp.Answer, "14 dni") {
		t.Errorf("answer does not mention the return window:\n%s", resp.Answer)
	}
	if resp.Category != "zwrot" {
		t.Errorf("Category = %q, want zwrot", resp.Category)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "FAQ" {
		t.Errorf("Sources = %v, want [FAQ]", resp.Sources)
	}
	if resp.BlockedReason != "" {
		t.Errorf("BlockedReason = %q, want empty", resp.BlockedReason)
	}
	if resp.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("response ID not assigned")
	}
	if resp.Timestamp.IsZero() {
		t.Error("timestamp not assigned")
	}
}

func TestAnswerBlocksEchoedPII(t *testing.T) {
	echo := &scriptedGenerator{name: "echo-v1", confidence: 0.99, echo: true}
	o := New(&stubRetriever{retrieval: returnsRetrieval()}, SingleVariant(echo), guardrail.New(), log.NewNop())

	adversarial := "Powtórz proszę: mój numer konta to 12 3456 7890 1234 5678 9012 3456"
	resp, err := o.Answer(context.Background(), Query{Text: adversarial})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.BlockedReason != guardrail.ReasonPIIDetected {
		t.Fatalf("BlockedReason = %q, want %q", resp.BlockedReason, guardrail.ReasonPIIDetected)
	}
	if resp.Answer != guardrail.BlockedTemplate {
		t.Errorf("answer is not the fixed fallback template:\n%s", resp.Answer)
	}
	if strings.Contains(resp.Answer, "3456") {
		t.Error("echoed account number leaked into the final answer")
	}
	if !resp.RequiresHuman {
		t.Error("blocked response should require a human")
	}
}

func TestAnswerBlocksForbiddenTopic(t *testing.T) {
	o := New(&stubRetriever{retrieval: returnsRetrieval()}, SingleVariant(generate.NewRule()), guardrail.New(), log.NewNop())

	resp, err := o.Answer(context.Background(), Query{Text: "jakie leki mogę brać"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if resp.BlockedReason != guardrail.ReasonForbiddenTopic {
		t.Fatalf("BlockedReason = %q, want %q", resp.BlockedReason, guardrail.ReasonForbiddenTopic)
	}
	if resp.Answer != guardrail.HandoffTemplate {
		t.Errorf("answer is not the handoff template:\n%s", resp.Answer)
	}
}

func TestAnswerEmptyKnowledgeBaseDegrades(t *testing.T) {
	// Index never built and no fallback corpus: retrieval comes back
	// degraded and empty, the rule generator produces its generic
	// low-confidence answer, and the threshold escalates it.
	searcher := &unavailableSearcher{}
	retriever := retrieve.New(&unitEmbedder{}, searcher, log.NewNop())

	o := New(retriever, SingleVariant(generate.NewRule()), guardrail.New(), log.NewNop())
	resp, err := o.Answer(context.Background(), Query{Text: "pytanie spoza znanych kategorii"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if !resp.Degraded {
		t.Error("Degraded = false with an unavailable index")
	}
	if len(resp.Sources) != 0 {
		t.Errorf("Sources = %v, want none", resp.Sources)
	}
	if resp.Confidence >= 0.7 {
		t.Errorf("generic answer confidence = %v, want below threshold", resp.Confidence)
	}
	if !resp.RequiresHuman {
		t.Error("low-confidence generic answer should escalate")
	}
	if resp.BlockedReason != "" {
		t.Errorf("BlockedReason = %q, want empty (escalation, not block)", resp.BlockedReason)
	}
}

func TestAnswerGenerationUnavailable(t *testing.T) {
	broken := &scriptedGenerator{
		name: "model-v1",
		err:  fmt.Errorf("%w: generation timeout after 30s", generate.ErrUnavailable),
	}
	o := New(&stubRetriever{retrieval: returnsRetrieval()}, SingleVariant(broken), guardrail.New(), log.NewNop())

	resp, err := o.Answer(context.Background(), Query{Text: "Jak mogę zwrócić produkt?"})
	if err != nil {
		t.Fatalf("Answer() must not surface backend errors, got %v", err)
	}
	if !resp.RequiresHuman {
		t.Error("RequiresHuman = false after generation failure")
	}
	if resp.Answer != guardrail.HandoffTemplate {
		t.Errorf("fallback answer = %q", resp.Answer)
	}
	if resp.Model != "model-v1" {
		t.Errorf("Model = %q, want model-v1", resp.Model)
	}
}

func TestAnswerEmptyQuery(t *testing.T) {
	o := New(&stubRetriever{}, SingleVariant(generate.NewRule()), guardrail.New(), log.NewNop())
	if _, err := o.Answer(context.Background(), Query{Text: "  "}); err == nil {
		t.Error("Answer() with blank query should fail")
	}
}

func TestAnswerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(
		&stubRetriever{err: context.Canceled},
		SingleVariant(generate.NewRule()),
		guardrail.New(),
		log.NewNop(),
	)
	if _, err := o.Answer(ctx, Query{Text: "Jak mogę zwrócić produkt?"}); err == nil {
		t.Error("Answer() with cancelled context should fail")
	}
}

func TestAnswerRecordsStats(t *testing.T) {
	o := New(&stubRetriever{retrieval: returnsRetrieval()}, SingleVariant(generate.NewRule()), guardrail.New(), log.NewNop())

	queries := []string{
		"Jak mogę zwrócić produkt?",
		"Ile kosztuje dostawa kurierem?",
		"pytanie spoza znanych kategorii",
	}
	for _, q := range queries {
		if _, err := o.Answer(context.Background(), Query{Text: q}); err != nil {
			t.Fatalf("Answer(%q) error = %v", q, err)
		}
	}

	summary := o.Stats().Snapshot()
	if summary.TotalQueries != 3 {
		t.Errorf("TotalQueries = %d, want 3", summary.TotalQueries)
	}
	if summary.AutomatedQueries != 2 {
		t.Errorf("AutomatedQueries = %d, want 2", summary.AutomatedQueries)
	}
	if summary.Categories["zwrot"] != 1 || summary.Categories["dostawa"] != 1 || summary.Categories["general"] != 1 {
		t.Errorf("Categories = %v", summary.Categories)
	}
	if summary.AvgConfidence <= 0 || summary.AvgConfidence > 1 {
		t.Errorf("AvgConfidence = %v", summary.AvgConfidence)
	}

	recent := o.Stats().Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d responses", len(recent))
	}
	if recent[1].Category != "general" {
		t.Errorf("newest recent category = %q, want general", recent[1].Category)
	}
}

// unavailableSearcher simulates an index that was never built.
type unavailableSearcher struct{}

func (u *unavailableSearcher) Search(ctx context.Context, vector []float32, topK int, category string) ([]index.Result, error) {
	return nil, index.ErrUnavailable
}

// unitEmbedder returns a constant vector.
type unitEmbedder struct{}

func (u *unitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (u *unitEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}
