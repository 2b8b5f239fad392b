package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pomoc-ai/pomoc/internal/knowledge"
)

func regulationDoc(text string) knowledge.Document {
	return knowledge.Document{
		ID:          "reg-1",
		Kind:        knowledge.KindRegulation,
		Text:        text,
		Category:    "zwroty",
		SourceLabel: "Regulamin: §3 Zwroty",
	}
}

// reassemble concatenates non-overlap portions in order.
func reassemble(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.NonOverlap())
	}
	return sb.String()
}

func TestSplitRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
		cfg  Config
	}{
		{
			name: "short text single chunk",
			text: "Klient ma prawo do zwrotu.",
			cfg:  Config{Size: 100, Overlap: 10},
		},
		{
			name: "long text with sentence boundaries",
			text: strings.Repeat("Klient ma prawo do zwrotu towaru w terminie 14 dni bez podania przyczyny. ", 40),
			cfg:  Config{Size: 500, Overlap: 50},
		},
		{
			name: "no whitespace forces hard cuts",
			text: strings.Repeat("a", 1234),
			cfg:  Config{Size: 100, Overlap: 20},
		},
		{
			name: "polish diacritics are rune-safe",
			text: strings.Repeat("Zażółć gęślą jaźń. Świadczenie usług drogą elektroniczną. ", 30),
			cfg:  Config{Size: 120, Overlap: 30},
		},
		{
			name: "zero overlap",
			text: strings.Repeat("słowo ", 200),
			cfg:  Config{Size: 80, Overlap: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(regulationDoc(tt.text), tt.cfg)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}

			if got := reassemble(chunks); got != tt.text {
				t.Errorf("round trip mismatch:\n got %d runes\nwant %d runes", utf8.RuneCountInString(got), utf8.RuneCountInString(tt.text))
			}

			for i, c := range chunks {
				if n := utf8.RuneCountInString(c.Text); n > tt.cfg.Size {
					t.Errorf("chunk %d has %d runes, exceeds size %d", i, n, tt.cfg.Size)
				}
				if c.Overlap > tt.cfg.Overlap {
					t.Errorf("chunk %d overlap %d exceeds configured %d", i, c.Overlap, tt.cfg.Overlap)
				}
				if i == 0 && c.Overlap != 0 {
					t.Errorf("first chunk overlap = %d, want 0", c.Overlap)
				}
				if c.Seq != i {
					t.Errorf("chunk %d Seq = %d", i, c.Seq)
				}
				if !strings.Contains(tt.text, c.Text) {
					t.Errorf("chunk %d text is not a contiguous substring of the document", i)
				}
			}
		})
	}
}

func TestSplitSelfContainedUnits(t *testing.T) {
	faq := knowledge.Document{
		ID:          "faq-1",
		Kind:        knowledge.KindFAQ,
		Text:        "Pytanie: Jak mogę zwrócić produkt?\n\nOdpowiedź: Masz 14 dni na zwrot.",
		Category:    "zwroty",
		SourceLabel: "FAQ",
	}

	chunks, err := Split(faq, DefaultConfig())
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("FAQ document should produce exactly 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != faq.Text {
		t.Error("FAQ chunk should carry the whole document text")
	}
	if chunks[0].Category != "zwroty" || chunks[0].SourceLabel != "FAQ" {
		t.Errorf("chunk metadata not carried over: %+v", chunks[0])
	}
}

func TestSplitOversizedDialogFallsBack(t *testing.T) {
	dialog := knowledge.Document{
		ID:   "dlg-1",
		Kind: knowledge.KindDialog,
		Text: "Klient: " + strings.Repeat("bardzo długie pytanie ", 60),
	}

	chunks, err := Split(dialog, Config{Size: 200, Overlap: 20})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("oversized dialog should be windowed, got %d chunks", len(chunks))
	}
	if got := reassemble(chunks); got != dialog.Text {
		t.Error("oversized dialog round trip mismatch")
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	chunks, err := Split(regulationDoc(""), DefaultConfig())
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("empty document should yield no chunks, got %d", len(chunks))
	}
}

func TestSplitInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero size", Config{Size: 0, Overlap: 0}},
		{"negative overlap", Config{Size: 100, Overlap: -1}},
		{"overlap equals size", Config{Size: 50, Overlap: 50}},
		{"overlap exceeds size", Config{Size: 50, Overlap: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Split(regulationDoc("text"), tt.cfg); err == nil {
				t.Error("Split() should reject invalid config")
			}
		})
	}
}

func TestSplitPrefersWhitespaceBreak(t *testing.T) {
	// Words of 9 runes + space; a hard boundary at 100 would land mid-word,
	// the whitespace break within the lookback window must win.
	text := strings.Repeat("abcdefghi ", 30)
	chunks, err := Split(regulationDoc(text), Config{Size: 100, Overlap: 0})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, " ") {
			t.Errorf("chunk %d should break after whitespace, got tail %q", i, c.Text[len(c.Text)-5:])
		}
	}
}

func TestSplitAllPreservesOrder(t *testing.T) {
	docs := []knowledge.Document{
		{ID: "a", Kind: knowledge.KindFAQ, Text: "Pytanie: A?\n\nOdpowiedź: A."},
		{ID: "b", Kind: knowledge.KindFAQ, Text: "Pytanie: B?\n\nOdpowiedź: B."},
	}
	chunks, err := SplitAll(docs, DefaultConfig())
	if err != nil {
		t.Fatalf("SplitAll() error = %v", err)
	}
	if len(chunks) != 2 || chunks[0].DocumentID != "a" || chunks[1].DocumentID != "b" {
		t.Errorf("SplitAll() order not preserved: %+v", chunks)
	}
}

func FuzzSplitRoundTrip(f *testing.F) {
	f.Add("Klient ma prawo do zwrotu towaru w terminie 14 dni.", 50, 10)
	f.Add(strings.Repeat("zażółć ", 100), 30, 5)
	f.Add("", 100, 10)
	f.Add("a", 2, 1)

	f.Fuzz(func(t *testing.T, text string, size, overlap int) {
		if size <= 0 || size > 10_000 || overlap < 0 || overlap >= size {
			t.Skip()
		}
		chunks, err := Split(regulationDoc(text), Config{Size: size, Overlap: overlap})
		if err != nil {
			t.Fatalf("Split() error = %v", err)
		}
		if got := reassemble(chunks); got != text {
			t.Errorf("round trip mismatch for size=%d overlap=%d", size, overlap)
		}
		for _, c := range chunks {
			if utf8.RuneCountInString(c.Text) > size {
				t.Errorf("chunk exceeds size bound")
			}
		}
	})
}
