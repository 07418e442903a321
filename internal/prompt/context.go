// Package prompt turns retrieved documents into the context section of a prompt.
package prompt

import (
	"strings"
	"unicode/utf8"

	"batiment-rag/internal/config"
	"batiment-rag/internal/domain"
)

// DefaultMaxChars is the budget used when none is configured.
const DefaultMaxChars = config.DefaultContextChars

const separator = "\n\n"

// Assembler formats documents into a bounded context string.
// It holds no per-call state and is safe for concurrent use.
type Assembler struct {
	maxChars int
}

// NewAssembler returns an Assembler capping contexts at maxChars runes.
// Non-positive values select DefaultMaxChars.
func NewAssembler(maxChars int) *Assembler {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Assembler{maxChars: maxChars}
}

// FormatDocument renders one document segment.
func FormatDocument(d domain.Document) string {
	return header(d) + d.Content
}

func header(d domain.Document) string {
	return "Document: " + d.Title + "\n"
}

// Assemble joins document segments in ranking order. When the result would
// exceed the budget, the lowest-ranked documents are dropped first; if even
// the top document does not fit, only its content is cut. The header is cut
// too when it alone exceeds the budget.
// The result is empty only for an empty input.
func (a *Assembler) Assemble(docs []domain.Document) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	used := 0
	for i, d := range docs {
		seg := FormatDocument(d)
		n := utf8.RuneCountInString(seg)
		if i > 0 {
			n += len(separator)
		}
		if used+n > a.maxChars {
			if i == 0 {
				return truncateTop(d, a.maxChars)
			}
			break
		}
		if i > 0 {
			b.WriteString(separator)
		}
		b.WriteString(seg)
		used += n
	}
	return b.String()
}

func truncateTop(d domain.Document, budget int) string {
	h := header(d)
	room := budget - utf8.RuneCountInString(h)
	if room < 0 {
		return truncateRunes(h, budget)
	}
	return h + truncateRunes(d.Content, room)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
