package generate

import (
	"strings"
	"testing"
)

func TestEstimateConfidence(t *testing.T) {
	richContext := strings.Repeat("kontekst z bazy wiedzy ", 5)
	solidAnswer := "Zwrot produktu jest możliwy w ciągu 14 dni od daty otrzymania przesyłki."

	tests := []struct {
		name         string
		answer       string
		kbContext    string
		finishReason string
		want         float64
	}{
		{
			name:         "solid answer with context",
			answer:       solidAnswer,
			kbContext:    richContext,
			finishReason: "stop",
			want:         0.85,
		},
		{
			name:         "no context",
			answer:       solidAnswer,
			kbContext:    "",
			finishReason: "stop",
			want:         0.70,
		},
		{
			name:         "truncated generation",
			answer:       solidAnswer,
			kbContext:    richContext,
			finishReason: "length",
			want:         0.75,
		},
		{
			name:         "uncertainty phrase",
			answer:       "Nie jestem pewien, proponuję kontakt z naszym zespołem obsługi klienta.",
			kbContext:    richContext,
			finishReason: "stop",
			want:         0.65,
		},
		{
			name:         "short answer",
			answer:       "Tak, to możliwe w 14 dni.",
			kbContext:    richContext,
			finishReason: "stop",
			want:         0.75,
		},
		{
			name:         "everything weak clamps to floor",
			answer:       "Nie mam informacji.",
			kbContext:    "",
			finishReason: "length",
			want:         0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimateConfidence(tt.answer, tt.kbContext, tt.finishReason)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("estimateConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	withContext := userMessage("Jak zwrócić produkt?", "[Źródło 1: FAQ]\nMasz 14 dni na zwrot.")
	if !strings.Contains(withContext, "Kontekst z bazy wiedzy:") {
		t.Error("prompt with context missing context header")
	}
	if !strings.Contains(withContext, "Jak zwrócić produkt?") {
		t.Error("prompt missing query")
	}

	withoutContext := userMessage("Jak zwrócić produkt?", "")
	if strings.Contains(withoutContext, "Kontekst z bazy wiedzy:") {
		t.Error("prompt without context should not carry a context header")
	}
	if !strings.Contains(withoutContext, "zaproponuj kontakt z konsultantem") {
		t.Error("prompt without context missing consultant hint")
	}
}

func TestModelDefaults(t *testing.T) {
	m := NewModel(nil, ModelConfig{ModelName: "googleai/gemini-2.0-flash"}, nil)
	if m.cfg.Timeout != DefaultModelTimeout {
		t.Errorf("Timeout = %v, want %v", m.cfg.Timeout, DefaultModelTimeout)
	}
	if m.Name() != "googleai/gemini-2.0-flash" {
		t.Errorf("Name() = %q", m.Name())
	}
	if m.limiter == nil {
		t.Fatal("limiter not initialized")
	}
}
