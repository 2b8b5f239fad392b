package generate

import (
	"context"
	"fmt"
	"strings"
)

const (
	// RuleModelName tags answers produced by the rule-based variant.
	RuleModelName = "rule-based-v1"

	// contextSummaryLimit bounds how much retrieved context is inlined into
	// a template answer.
	contextSummaryLimit = 200

	// ruleBaseConfidence is the floor for any keyword-matched answer; each
	// additional distinct keyword adds ruleMatchStep up to ruleMaxConfidence.
	ruleBaseConfidence = 0.65
	ruleMatchStep      = 0.10
	ruleMaxConfidence  = 0.95

	// genericConfidence is assigned when no category keyword matches.
	genericConfidence = 0.50
)

// ruleCategory pairs a query category with its trigger keywords and answer
// template. Order matters: the first category with any keyword hit wins.
type ruleCategory struct {
	name     string
	keywords []string
	template string
}

var ruleCategories = []ruleCategory{
	{
		name:     "zwrot",
		keywords: []string{"zwrot", "zwrócić", "reklamacja", "wadliwy", "wymiana"},
		template: `Zgodnie z naszą polityką zwrotów, %s

Aby dokonać zwrotu:
1. Przejdź do zakładki "Zwroty i reklamacje" w swoim koncie
2. Wybierz zamówienie i produkty do zwrotu
3. Wydrukuj etykietę zwrotną
4. Wyślij paczkę w ciągu 14 dni od otrzymania

Zwrot kosztów następuje w ciągu 14 dni od otrzymania przesyłki.`,
	},
	{
		name:     "dostawa",
		keywords: []string{"dostawa", "wysyłka", "kurier", "paczka", "paczkomat"},
		template: `Oferujemy następujące opcje dostawy: %s

• Kurier (DPD, InPost) - 1-2 dni robocze
• Paczkomat InPost - 1-2 dni robocze
• Odbiór osobisty - następny dzień roboczy

Darmowa dostawa przy zamówieniach powyżej 200 zł.`,
	},
	{
		name:     "płatność",
		keywords: []string{"płatność", "zapłacić", "przelew", "karta", "blik"},
		template: `Akceptujemy następujące formy płatności: %s

• Karta płatnicza (Visa, Mastercard)
• Przelew bankowy
• BLIK
• Płatności odroczone (PayU, PayPo)

Płatność można dokonać podczas składania zamówienia lub po jego złożeniu.`,
	},
	{
		name:     "status",
		keywords: []string{"status", "gdzie", "kiedy", "śledzenie", "track"},
		template: `Aby sprawdzić status zamówienia: %s

1. Zaloguj się do swojego konta
2. Przejdź do zakładki "Moje zamówienia"
3. Znajdź zamówienie i kliknij "Szczegóły"
4. Zobacz aktualny status i numer do śledzenia przesyłki

Status jest aktualizowany na bieżąco.`,
	},
	{
		name:     "produkt",
		keywords: []string{"dostępność", "rozmiar", "kolor", "specyfikacja", "parametry"},
		template: `Informacje o produkcie: %s

Aby sprawdzić dostępność, rozmiary i kolory:
1. Odwiedź stronę produktu
2. Sprawdź sekcję "Dostępność"
3. Wybierz odpowiedni rozmiar/kolor

Jeśli produkt jest niedostępny, możesz zapisać się na powiadomienie o ponownej dostępności.`,
	},
}

const genericTemplate = `Dziękuję za pytanie. %s

Aby udzielić Ci precyzyjnej odpowiedzi, proszę o podanie więcej szczegółów lub skontaktuj się z naszym zespołem obsługi klienta przez formularz kontaktowy albo czat na żywo (pn-pt 9-17).`

// defaultContextSummary is used when retrieval produced no context.
const defaultContextSummary = "szczegółowe informacje znajdziesz w naszym regulaminie."

// Rule is the deterministic, template-driven generator. It classifies the
// query by keyword matching and fills the matching category template with a
// context summary. Always available: it has no backend to lose.
type Rule struct{}

// NewRule creates the rule-based generator.
func NewRule() *Rule {
	return &Rule{}
}

// Name implements Generator.
func (r *Rule) Name() string { return RuleModelName }

// Generate implements Generator. Confidence grows with the number of
// distinct category keywords found in the query; unmatched queries get a
// generic low-confidence answer.
func (r *Rule) Generate(ctx context.Context, query, kbContext string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	queryLower := strings.ToLower(query)
	summary := summarizeContext(kbContext)

	for _, cat := range ruleCategories {
		matches := 0
		for _, kw := range cat.keywords {
			if strings.Contains(queryLower, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}

		confidence := clampConfidence(ruleBaseConfidence+ruleMatchStep*float64(matches), 0, ruleMaxConfidence)
		return Result{
			Answer:     strings.TrimSpace(fmt.Sprintf(cat.template, summary)),
			Confidence: confidence,
			Model:      RuleModelName,
		}, nil
	}

	return Result{
		Answer:     strings.TrimSpace(fmt.Sprintf(genericTemplate, summary)),
		Confidence: genericConfidence,
		Model:      RuleModelName,
	}, nil
}

// Category reports which category the query would be classified into, or
// "general" when nothing matches. Used for response metadata and stats.
func (r *Rule) Category(query string) string {
	queryLower := strings.ToLower(query)
	for _, cat := range ruleCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(queryLower, kw) {
				return cat.name
			}
		}
	}
	return "general"
}

// summarizeContext truncates the retrieved context for template inlining;
// rune-based so Polish text never splits mid-character.
func summarizeContext(kbContext string) string {
	if strings.TrimSpace(kbContext) == "" {
		return defaultContextSummary
	}
	runes := []rune(kbContext)
	if len(runes) > contextSummaryLimit {
		return string(runes[:contextSummaryLimit])
	}
	return kbContext
}
