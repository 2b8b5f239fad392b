package knowledge

import (
	"strings"
	"testing"
)

func TestLoadFAQ(t *testing.T) {
	data := `{
		"faq": [
			{"question": "Jak mogę zwrócić produkt?", "answer": "Masz 14 dni na zwrot.", "category": "zwroty"},
			{"question": "Ile kosztuje dostawa?", "answer": "Kurier 15 zł."}
		]
	}`

	docs, err := LoadFAQ(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFAQ() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("LoadFAQ() returned %d documents, want 2", len(docs))
	}

	first := docs[0]
	if first.Kind != KindFAQ {
		t.Errorf("Kind = %q, want %q", first.Kind, KindFAQ)
	}
	if !strings.Contains(first.Text, "Pytanie: Jak mogę zwrócić produkt?") {
		t.Errorf("Text missing formatted question: %q", first.Text)
	}
	if !strings.Contains(first.Text, "Odpowiedź: Masz 14 dni na zwrot.") {
		t.Errorf("Text missing formatted answer: %q", first.Text)
	}
	if first.Category != "zwroty" {
		t.Errorf("Category = %q, want %q", first.Category, "zwroty")
	}
	if docs[1].Category != "general" {
		t.Errorf("missing category should default to general, got %q", docs[1].Category)
	}
	if first.SourceLabel != SourceFAQ {
		t.Errorf("SourceLabel = %q, want %q", first.SourceLabel, SourceFAQ)
	}
}

func TestLoadRegulations(t *testing.T) {
	data := `{
		"regulations": [
			{"section": "§3 Zwroty", "content": "Klient ma prawo do zwrotu w terminie 14 dni.", "category": "zwroty"}
		]
	}`

	docs, err := LoadRegulations(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadRegulations() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("LoadRegulations() returned %d documents, want 1", len(docs))
	}

	doc := docs[0]
	if doc.Kind != KindRegulation {
		t.Errorf("Kind = %q, want %q", doc.Kind, KindRegulation)
	}
	if !strings.HasPrefix(doc.Text, "[§3 Zwroty]\n\n") {
		t.Errorf("Text missing section header: %q", doc.Text)
	}
	if doc.SourceLabel != "Regulamin: §3 Zwroty" {
		t.Errorf("SourceLabel = %q, want section-qualified label", doc.SourceLabel)
	}
}

func TestLoadDialogs(t *testing.T) {
	data := `{
		"dialogs": [
			{"customer_query": "Gdzie jest moja paczka?", "ai_response": "Sprawdź status w zakładce Moje zamówienia.", "category": "status"}
		]
	}`

	docs, err := LoadDialogs(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadDialogs() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("LoadDialogs() returned %d documents, want 1", len(docs))
	}
	if !strings.Contains(docs[0].Text, "Klient: Gdzie jest moja paczka?") {
		t.Errorf("Text missing customer turn: %q", docs[0].Text)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	if _, err := LoadFAQ(strings.NewReader("{broken")); err == nil {
		t.Error("LoadFAQ() with invalid JSON should fail")
	}
}

func TestDocIDStable(t *testing.T) {
	a := docID(SourceFAQ, "same text")
	b := docID(SourceFAQ, "same text")
	if a != b {
		t.Errorf("docID not stable: %q != %q", a, b)
	}
	if c := docID(SourceDialogs, "same text"); c == a {
		t.Error("docID should differ across sources")
	}
}
