// Package guardrail decides whether a generated answer may reach the
// customer. Evaluation is a pure function over the query, the draft answer,
// its confidence, and the retrieval outcome: checks run in a fixed order,
// hard failures replace the answer with a safe template, soft failures only
// flag the response for human review. A verdict is always a value, never an
// error.
package guardrail

import (
	"regexp"
	"strings"
)

// BlockReason names the hard check that rejected an answer.
type BlockReason string

const (
	ReasonForbiddenTopic  BlockReason = "forbidden_topic"
	ReasonPIIDetected     BlockReason = "pii_detected"
	ReasonLengthViolation BlockReason = "length_violation"
)

// Default bounds, overridable per Engine.
const (
	DefaultConfidenceThreshold = 0.7
	DefaultMinAnswerRunes      = 20
	DefaultMaxAnswerRunes      = 500
)

// HandoffTemplate replaces answers to questions the assistant must not
// handle at all.
const HandoffTemplate = `Rozumiem Twoje pytanie, jednak aby udzielić Ci precyzyjnej odpowiedzi, zalecam kontakt z naszym konsultantem.

Email: pomoc@sklep.pl
Telefon: 22 123 45 67 (pn-pt 9-17)`

// BlockedTemplate replaces answers rejected by a safety check.
const BlockedTemplate = `Przepraszam, ale nie mogę odpowiedzieć na to pytanie. Skontaktuj się z naszym zespołem obsługi klienta, który pomoże Ci w tej sprawie.

Możesz też napisać na: pomoc@sklep.pl lub zadzwonić: 22 123 45 67`

// Verdict is the outcome of one evaluation.
type Verdict struct {
	// Passed is false only when a hard check replaced the answer.
	Passed bool
	// RequiresHuman marks the response for agent follow-up; set by both
	// hard blocks and soft escalations.
	RequiresHuman bool
	// BlockedReason is empty unless a hard check fired.
	BlockedReason BlockReason
	// FinalAnswer is what the customer sees: the draft answer when it
	// passed, a fixed template when it did not.
	FinalAnswer string
	// Warnings record why soft checks escalated; for logs, never shown.
	Warnings []string
}

// Input carries everything one evaluation needs.
type Input struct {
	Query      string
	Answer     string
	Confidence float64
	Sources    []string
	// Context is the retrieved knowledge-base block the answer was grounded
	// on; the hallucination heuristic compares claims against it.
	Context string
}

// HallucinationFunc reports whether an answer makes claims unsupported by
// the retrieved context. Replaceable for deployments with a better detector.
type HallucinationFunc func(answer, kbContext string) bool

// forbiddenTopic pairs a topic name with the patterns that detect it.
type forbiddenTopic struct {
	name     string
	patterns []*regexp.Regexp
}

var forbiddenTopics = []forbiddenTopic{
	{
		name: "medical",
		patterns: compile(
			`diagnoz`,
			`(?:^|[^\p{L}])lek(?:i|u|ów|ami|ach|arz\p{L}*|arstw\p{L}*)?(?:$|[^\p{L}])`,
			`chorob`,
			`schorzeni`,
			`objaw`,
			`leczeni`,
		),
	},
	{
		name: "legal",
		patterns: compile(
			`prawnik`,
			`(?:^|[^\p{L}])sąd(?:u|owi|em|zie|y|ów|ach)?(?:$|[^\p{L}])`,
			`pozew`,
			`radca prawny`,
			`interpretacja prawna`,
		),
	},
	{
		name: "financial_advice",
		patterns: compile(
			`inwestuj`,
			`giełd`,
			`(?:^|[^\p{L}])akcje`,
			`kryptowalut`,
			`jak zarabiać`,
		),
	},
}

// piiPatterns match personal data that must never leave the system:
// PESEL numbers, bank accounts, postal codes, email addresses, phone
// numbers.
var piiPatterns = compile(
	`\b\d{11}\b`,
	`\b\d{2}(?:[ -]?\d{4}){6}\b`,
	`\b\d{2}-\d{3}\b`,
	`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
	`\b\d{3}[ -]\d{3}[ -]\d{3}\b`,
	`\b\d{2} \d{3} \d{2} \d{2}\b`,
)

// hallucinationNumberPattern finds suspiciously specific numerals.
var hallucinationNumberPattern = regexp.MustCompile(`\d{4,}`)

// hallucinationAmountPattern finds exact price claims.
var hallucinationAmountPattern = regexp.MustCompile(`dokładnie \d+ (złotych|zł)`)

func compile(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// Engine evaluates answers against the configured checks. Stateless and
// safe for concurrent use.
type Engine struct {
	confidenceThreshold float64
	minAnswerRunes      int
	maxAnswerRunes      int
	requireSources      bool
	hallucination       HallucinationFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfidenceThreshold sets the score below which answers escalate.
func WithConfidenceThreshold(threshold float64) Option {
	return func(e *Engine) { e.confidenceThreshold = threshold }
}

// WithLengthBounds sets the accepted answer length in runes.
func WithLengthBounds(minRunes, maxRunes int) Option {
	return func(e *Engine) {
		e.minAnswerRunes = minRunes
		e.maxAnswerRunes = maxRunes
	}
}

// WithRequiredSources escalates answers produced without any cited source.
func WithRequiredSources() Option {
	return func(e *Engine) { e.requireSources = true }
}

// WithHallucinationFunc replaces the default unsupported-claim detector.
func WithHallucinationFunc(fn HallucinationFunc) Option {
	return func(e *Engine) { e.hallucination = fn }
}

// New creates an Engine with default thresholds.
func New(opts ...Option) *Engine {
	e := &Engine{
		confidenceThreshold: DefaultConfidenceThreshold,
		minAnswerRunes:      DefaultMinAnswerRunes,
		maxAnswerRunes:      DefaultMaxAnswerRunes,
		hallucination:       defaultHallucination,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the check chain. Hard checks (forbidden topic, PII, length)
// short-circuit with a replaced answer; soft checks (hallucination,
// confidence, optional sources) only set RequiresHuman.
func (e *Engine) Evaluate(in Input) Verdict {
	if topic := matchForbiddenTopic(in.Query, in.Answer); topic != "" {
		return Verdict{
			Passed:        false,
			RequiresHuman: true,
			BlockedReason: ReasonForbiddenTopic,
			FinalAnswer:   HandoffTemplate,
			Warnings:      []string{"forbidden topic: " + topic},
		}
	}

	if containsPII(in.Answer) {
		return Verdict{
			Passed:        false,
			RequiresHuman: true,
			BlockedReason: ReasonPIIDetected,
			FinalAnswer:   BlockedTemplate,
		}
	}

	if n := len([]rune(in.Answer)); n < e.minAnswerRunes || n > e.maxAnswerRunes {
		return Verdict{
			Passed:        false,
			RequiresHuman: true,
			BlockedReason: ReasonLengthViolation,
			FinalAnswer:   BlockedTemplate,
		}
	}

	verdict := Verdict{Passed: true, FinalAnswer: in.Answer}

	if e.hallucination != nil && e.hallucination(in.Answer, in.Context) {
		verdict.RequiresHuman = true
		verdict.Warnings = append(verdict.Warnings, "possible hallucination")
	}
	if in.Confidence < e.confidenceThreshold {
		verdict.RequiresHuman = true
		verdict.Warnings = append(verdict.Warnings, "confidence below threshold")
	}
	if e.requireSources && len(in.Sources) == 0 {
		verdict.RequiresHuman = true
		verdict.Warnings = append(verdict.Warnings, "no sources cited")
	}

	return verdict
}

func matchForbiddenTopic(query, answer string) string {
	text := strings.ToLower(query + " " + answer)
	for _, topic := range forbiddenTopics {
		for _, p := range topic.patterns {
			if p.MatchString(text) {
				return topic.name
			}
		}
	}
	return ""
}

func containsPII(answer string) bool {
	for _, p := range piiPatterns {
		if p.MatchString(answer) {
			return true
		}
	}
	return false
}

// defaultHallucination flags long digit runs and exact price claims absent
// from the retrieved context, and any guarantee wording.
func defaultHallucination(answer, kbContext string) bool {
	answerLower := strings.ToLower(answer)
	contextLower := strings.ToLower(kbContext)

	for _, num := range hallucinationNumberPattern.FindAllString(answerLower, -1) {
		if !strings.Contains(contextLower, num) {
			return true
		}
	}
	for _, amount := range hallucinationAmountPattern.FindAllString(answerLower, -1) {
		if !strings.Contains(contextLower, amount) {
			return true
		}
	}
	return strings.Contains(answerLower, "gwarantuj")
}
