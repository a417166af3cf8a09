package search

import "strings"

// Score returns the relevance of pageText for the given query terms: the
// total number of case-insensitive occurrences of every term in the text.
// A term found three times contributes three. terms is expected to be
// lower-cased and free of duplicates (see ParseQuery).
func Score(pageText string, terms []string) int {
	if len(terms) == 0 || pageText == "" {
		return 0
	}

	text := strings.ToLower(pageText)
	score := 0
	for _, term := range terms {
		if term == "" {
			continue
		}
		score += strings.Count(text, term)
	}
	return score
}
