package search

import (
	"strings"
	"unicode"

	"github.com/bbalet/stopwords"
)

// ParseQuery turns a free-text query into its lower-cased, whitespace
// separated terms. Duplicates collapse, first occurrence keeps its position.
func ParseQuery(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// DropStopwords removes the stopwords of language lang from terms.
// Terms are filtered one at a time so that order and spelling of the
// surviving terms is left untouched. Terms without letters (numbers,
// symbols) are never dropped.
func DropStopwords(terms []string, lang string) []string {
	kept := make([]string, 0, len(terms))
	for _, term := range terms {
		if hasLetter(term) && strings.TrimSpace(stopwords.CleanString(term, lang, false)) == "" {
			continue
		}
		kept = append(kept, term)
	}
	return kept
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
