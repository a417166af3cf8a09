package search

import (
	"cmp"
	"slices"
)

// Rank keeps the pages with a positive score, orders them by descending
// score and returns at most k of them. Pages with equal scores keep the
// order in which they were passed in, so callers control the tie-break by
// the order they collect pages in (document order, then page order).
func Rank(pages []ScoredPage, k int) []ScoredPage {
	if k <= 0 {
		return nil
	}

	candidates := make([]ScoredPage, 0, len(pages))
	for _, p := range pages {
		if p.Score > 0 {
			candidates = append(candidates, p)
		}
	}

	slices.SortStableFunc(candidates, func(a, b ScoredPage) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return slices.Clip(candidates)
}
