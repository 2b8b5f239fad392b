package generate

import (
	"context"
	"strings"
	"testing"
)

func TestRuleGenerateCategories(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantCategory string
		wantContains string
	}{
		{
			name:         "return request",
			query:        "Jak mogę zwrócić produkt?",
			wantCategory: "zwrot",
			wantContains: "polityką zwrotów",
		},
		{
			name:         "delivery question",
			query:        "Ile kosztuje dostawa kurierem?",
			wantCategory: "dostawa",
			wantContains: "opcje dostawy",
		},
		{
			name:         "payment question",
			query:        "Czy mogę zapłacić BLIK?",
			wantCategory: "płatność",
			wantContains: "formy płatności",
		},
		{
			name:         "order status",
			query:        "Gdzie jest moje zamówienie?",
			wantCategory: "status",
			wantContains: "status zamówienia",
		},
		{
			name:         "product availability",
			query:        "Jaki rozmiar jest dostępny?",
			wantCategory: "produkt",
			wantContains: "Informacje o produkcie",
		},
		{
			name:         "unmatched query",
			query:        "Czy macie program lojalnościowy?",
			wantCategory: "general",
			wantContains: "zespołem obsługi klienta",
		},
	}

	r := NewRule()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Category(tt.query); got != tt.wantCategory {
				t.Errorf("Category() = %q, want %q", got, tt.wantCategory)
			}

			result, err := r.Generate(context.Background(), tt.query, "")
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if !strings.Contains(result.Answer, tt.wantContains) {
				t.Errorf("answer missing %q:\n%s", tt.wantContains, result.Answer)
			}
			if result.Model != RuleModelName {
				t.Errorf("Model = %q, want %q", result.Model, RuleModelName)
			}
		})
	}
}

func TestRuleConfidenceGrowsWithMatches(t *testing.T) {
	r := NewRule()

	one, err := r.Generate(context.Background(), "chcę zwrot", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	two, err := r.Generate(context.Background(), "chcę zwrot, produkt jest wadliwy", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if one.Confidence != 0.75 {
		t.Errorf("single keyword confidence = %v, want 0.75", one.Confidence)
	}
	if two.Confidence <= one.Confidence {
		t.Errorf("two keywords (%v) should score above one (%v)", two.Confidence, one.Confidence)
	}
	if two.Confidence > ruleMaxConfidence {
		t.Errorf("confidence %v exceeds maximum %v", two.Confidence, ruleMaxConfidence)
	}
}

func TestRuleConfidenceClamped(t *testing.T) {
	r := NewRule()

	// All five keywords of one category.
	result, err := r.Generate(context.Background(), "zwrot zwrócić reklamacja wadliwy wymiana", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Confidence != ruleMaxConfidence {
		t.Errorf("confidence = %v, want clamp at %v", result.Confidence, ruleMaxConfidence)
	}
}

func TestRuleGenericConfidence(t *testing.T) {
	r := NewRule()
	result, err := r.Generate(context.Background(), "pytanie bez kategorii", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Confidence != genericConfidence {
		t.Errorf("generic confidence = %v, want %v", result.Confidence, genericConfidence)
	}
}

func TestRuleContextSummary(t *testing.T) {
	r := NewRule()

	long := strings.Repeat("ż", 300)
	result, err := r.Generate(context.Background(), "zwrot", long)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(result.Answer, strings.Repeat("ż", contextSummaryLimit)) {
		t.Error("answer missing truncated context")
	}
	if strings.Contains(result.Answer, strings.Repeat("ż", contextSummaryLimit+1)) {
		t.Error("context was not truncated to the summary limit")
	}

	// No context falls back to the default pointer at the regulations.
	result, err = r.Generate(context.Background(), "zwrot", "  ")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(result.Answer, defaultContextSummary) {
		t.Errorf("answer missing default context summary:\n%s", result.Answer)
	}
}

func TestRuleCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewRule().Generate(ctx, "zwrot", ""); err == nil {
		t.Error("Generate() with cancelled context should fail")
	}
}
