// Package search holds the query-side helpers shared by the document stores.
package search

import (
	"regexp"
	"strconv"
	"strings"

	"batiment-rag/internal/domain"
)

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Tokenize lowercases s and splits it into word tokens.
func Tokenize(s string) []string {
	return unicodeWordRe.FindAllString(strings.ToLower(s), -1)
}

// MaxEdits returns how many edits a term may differ by under the given fuzziness.
// "AUTO" allows 0 edits for terms of 1-2 runes, 1 for 3-5 and 2 beyond that.
// Numeric fuzziness is capped at 2.
func MaxEdits(term, fuzziness string) int {
	switch f := strings.ToUpper(strings.TrimSpace(fuzziness)); f {
	case "", "0":
		return 0
	case "AUTO":
		n := len([]rune(term))
		switch {
		case n <= 2:
			return 0
		case n <= 5:
			return 1
		default:
			return 2
		}
	default:
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return 0
		}
		if v > 2 {
			v = 2
		}
		return v
	}
}

// FieldSpec renders a field the way multi_match expects it, e.g. "title^2".
func FieldSpec(f domain.Field) string {
	boost := f.EffectiveBoost()
	if boost == 1 {
		return f.Name
	}
	return f.Name + "^" + strconv.FormatFloat(boost, 'g', -1, 64)
}

// FieldSpecs renders all fields.
func FieldSpecs(fields []domain.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = FieldSpec(f)
	}
	return out
}
