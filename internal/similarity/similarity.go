// Package similarity scores word overlap between two comments.
package similarity

import (
	"strings"
	"unicode/utf8"
)

// minWordRunes is the length a shared word must exceed to count as overlap.
// Short function words ("the", "и", "это") would otherwise dominate the score.
const minWordRunes = 3

// Score returns the share of a's words that also occur in b, as a
// percentage in [0,100]. Words are lowercased and split on whitespace; only
// shared words longer than three runes count. The denominator is the longer
// of the two word lists, so Score(a, b) and Score(b, a) may differ when a
// repeats words. Either input being blank yields 0.
func Score(a, b string) float64 {
	wordsA := strings.Fields(strings.ToLower(a))
	wordsB := strings.Fields(strings.ToLower(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	inB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		inB[w] = struct{}{}
	}

	common := 0
	for _, w := range wordsA {
		if utf8.RuneCountInString(w) <= minWordRunes {
			continue
		}
		if _, ok := inB[w]; ok {
			common++
		}
	}

	return float64(common) / float64(max(len(wordsA), len(wordsB))) * 100
}

// AtLeast reports whether Score(a, b) meets threshold percent.
func AtLeast(a, b string, threshold int) bool {
	return Score(a, b) >= float64(threshold)
}
