package knowledge

// Kind identifies the structural kind of a knowledge document.
// The kind drives the chunking strategy: self-contained units (FAQ entries,
// support dialogs) become a single chunk, while free-form regulation text is
// split by size.
type Kind string

const (
	// KindFAQ is a single question/answer pair.
	KindFAQ Kind = "faq"

	// KindRegulation is free-form regulation or policy text.
	KindRegulation Kind = "regulation"

	// KindDialog is one recorded support exchange (customer query + agent reply).
	KindDialog Kind = "dialog"
)

// Document is a raw knowledge-base source unit.
//
// Documents are immutable once loaded: a knowledge-base refresh supersedes
// documents with a new set rather than editing them in place.
type Document struct {
	ID          string // Unique identifier, stable across rebuilds of the same data
	Kind        Kind   // Structural kind, drives chunking
	Text        string // Full document text (already formatted for retrieval)
	Category    string // Domain category (e.g. "zwroty", "dostawa")
	SourceLabel string // Human-readable provenance shown in cited sources
}
