// Package knowledge provides the knowledge-base document model and loaders
// for the structured record formats the support pipeline retrieves from.
//
// The pipeline core never parses raw files; it consumes Document records.
// The loaders in this package are the collaborator side of that boundary:
// they decode the structured JSON knowledge files (FAQ entries, regulation
// sections, recorded support dialogs) into Documents with stable IDs and
// provenance labels.
package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// Source labels attached to loaded documents. These appear verbatim in the
// sources list of pipeline responses.
const (
	SourceFAQ         = "FAQ"
	SourceRegulations = "Regulamin"
	SourceDialogs     = "Dialogi wsparcia"
)

type faqFile struct {
	FAQ []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Category string `json:"category"`
	} `json:"faq"`
}

type regulationsFile struct {
	Regulations []struct {
		Section  string `json:"section"`
		Content  string `json:"content"`
		Category string `json:"category"`
	} `json:"regulations"`
}

type dialogsFile struct {
	Dialogs []struct {
		CustomerQuery string `json:"customer_query"`
		AIResponse    string `json:"ai_response"`
		Category      string `json:"category"`
	} `json:"dialogs"`
}

// LoadFAQ decodes a FAQ knowledge file. Each entry becomes one Document
// whose text is the formatted question/answer pair.
func LoadFAQ(r io.Reader) ([]Document, error) {
	var file faqFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding faq records: %w", err)
	}

	docs := make([]Document, 0, len(file.FAQ))
	for _, item := range file.FAQ {
		text := fmt.Sprintf("Pytanie: %s\n\nOdpowiedź: %s", item.Question, item.Answer)
		docs = append(docs, Document{
			ID:          docID(SourceFAQ, text),
			Kind:        KindFAQ,
			Text:        text,
			Category:    categoryOr(item.Category, "general"),
			SourceLabel: SourceFAQ,
		})
	}
	return docs, nil
}

// LoadRegulations decodes a regulations knowledge file. Each section becomes
// one Document with a [section] header; the section name is folded into the
// source label so citations point at the exact section.
func LoadRegulations(r io.Reader) ([]Document, error) {
	var file regulationsFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding regulation records: %w", err)
	}

	docs := make([]Document, 0, len(file.Regulations))
	for _, item := range file.Regulations {
		text := fmt.Sprintf("[%s]\n\n%s", item.Section, item.Content)
		docs = append(docs, Document{
			ID:          docID(SourceRegulations, text),
			Kind:        KindRegulation,
			Text:        text,
			Category:    categoryOr(item.Category, "general"),
			SourceLabel: fmt.Sprintf("%s: %s", SourceRegulations, item.Section),
		})
	}
	return docs, nil
}

// LoadDialogs decodes a recorded support dialog file. Each dialog becomes one
// Document formatted as a customer/assistant exchange.
func LoadDialogs(r io.Reader) ([]Document, error) {
	var file dialogsFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding dialog records: %w", err)
	}

	docs := make([]Document, 0, len(file.Dialogs))
	for _, d := range file.Dialogs {
		text := fmt.Sprintf("Klient: %s\n\nAsystent: %s", d.CustomerQuery, d.AIResponse)
		docs = append(docs, Document{
			ID:          docID(SourceDialogs, text),
			Kind:        KindDialog,
			Text:        text,
			Category:    categoryOr(d.Category, "general"),
			SourceLabel: SourceDialogs,
		})
	}
	return docs, nil
}

// docID derives a stable document ID from the source label and content.
// Rebuilding from identical data yields identical IDs, which keeps index
// builds idempotent.
func docID(source, text string) string {
	sum := sha256.Sum256([]byte(source + "\x00" + text))
	return hex.EncodeToString(sum[:16])
}

func categoryOr(category, fallback string) string {
	if category == "" {
		return fallback
	}
	return category
}
