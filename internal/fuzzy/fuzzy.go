// Package fuzzy resolves free-form user text against catalog labels.
// Scoring is a bag-of-words Jaccard ratio over lower-cased tokens, which
// is cheap and works well for short organizational names ("Mumbai Region"
// vs "use mumbai region").
package fuzzy

import (
	"strings"
	"unicode"
)

// Score returns the token-set Jaccard similarity of label and text in
// [0,1]: the size of the token intersection over the size of the union.
// Either side tokenizing to the empty set scores 0.
func Score(label, text string) float64 {
	a := tokens(label)
	b := tokens(text)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// BestIndex returns the index of the highest-scoring name and its score.
// Returns -1 when names is empty. Ties go to the earliest index, so the
// result is deterministic for a given slice order.
func BestIndex(names []string, text string) (int, float64) {
	best := -1
	bestScore := 0.0
	for i, name := range names {
		s := Score(name, text)
		if best == -1 || s > bestScore {
			best = i
			bestScore = s
		}
	}
	return best, bestScore
}

// tokens splits on any non-alphanumeric rune so punctuation never
// poisons a match ("Region," vs "Region").
func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range fields {
		set[w] = struct{}{}
	}
	return set
}
