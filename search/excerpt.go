package search

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const ellipsis = "..."

// Excerpt returns a short piece of pageText around the first occurrence of
// any of the query terms. window is the number of characters (runes) kept
// around the match, half on each side. When no term occurs in the text,
// the first window characters of the page are returned instead.
//
// Whitespace in the excerpt is collapsed to single spaces and "..." marks
// the side(s) where text was cut. If highlight is set, every occurrence
// of a term inside the excerpt is wrapped in "**".
func Excerpt(pageText string, terms []string, window int, highlight bool) string {
	if pageText == "" || window <= 0 {
		return ""
	}

	text := []rune(pageText)
	lower := lowerRunes(text)

	start, length := firstMatch(string(lower), terms)

	var from, to int
	if start < 0 {
		from, to = 0, min(len(text), window)
	} else {
		half := window / 2
		from = max(0, start-half)
		to = min(len(text), start+length+half)
	}

	excerpt := strings.Join(strings.Fields(string(text[from:to])), " ")
	if excerpt == "" {
		return ""
	}

	if highlight {
		excerpt = highlightTerms(excerpt, terms)
	}

	if strings.TrimSpace(string(text[:from])) != "" {
		excerpt = ellipsis + excerpt
	}
	if strings.TrimSpace(string(text[to:])) != "" {
		excerpt = excerpt + ellipsis
	}
	return excerpt
}

// firstMatch finds the earliest occurrence of any term in lowerText and
// returns its rune offset and rune length. On equal offsets the term that
// comes first in terms wins. Returns -1 if nothing matches.
func firstMatch(lowerText string, terms []string) (start, length int) {
	start = -1
	for _, term := range terms {
		if term == "" {
			continue
		}

		i := strings.Index(lowerText, term)
		if i < 0 {
			continue
		}

		pos := utf8.RuneCountInString(lowerText[:i])
		if start < 0 || pos < start {
			start, length = pos, utf8.RuneCountInString(term)
		}
	}
	return start, length
}

// lowerRunes lower-cases rune by rune so that offsets into the result
// stay valid offsets into text.
func lowerRunes(text []rune) []rune {
	lower := make([]rune, len(text))
	for i, r := range text {
		lower[i] = unicode.ToLower(r)
	}
	return lower
}

func highlightTerms(s string, terms []string) string {
	text := []rune(s)
	lower := lowerRunes(text)

	needles := make([][]rune, 0, len(terms))
	for _, term := range terms {
		if term != "" {
			needles = append(needles, []rune(term))
		}
	}

	var b strings.Builder
	b.Grow(len(s) + 8)

	for i := 0; i < len(text); {
		n := longestPrefix(lower[i:], needles)
		if n == 0 {
			b.WriteRune(text[i])
			i++
			continue
		}
		b.WriteString("**")
		b.WriteString(string(text[i : i+n]))
		b.WriteString("**")
		i += n
	}
	return b.String()
}

// longestPrefix returns the length of the longest needle s starts with.
func longestPrefix(s []rune, needles [][]rune) int {
	best := 0
	for _, needle := range needles {
		if len(needle) <= best || len(needle) > len(s) {
			continue
		}
		if slices.Equal(s[:len(needle)], needle) {
			best = len(needle)
		}
	}
	return best
}
