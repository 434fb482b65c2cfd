package unigram

import (
	"math"
	"slices"
)

// DefaultMaxSegmentLength bounds token length, in runes, during segmentation.
const DefaultMaxSegmentLength = 21

// UnknownScore is charged for a text that has no segmentation at all.
const UnknownScore = -20.0

// Segment returns the highest-scoring split of text into tokens of lex, each
// at most maxLen runes long. Among equal scores the first path found wins.
// When no split exists the whole text comes back as a single token.
func Segment(text string, lex Lexicon, maxLen int) []string {
	runes := []rune(text)

	bounds, _, ok := viterbi(runes, lex, maxLen)
	if !ok {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	tokens := make([]string, 0, len(bounds)-1)
	for i := 1; i < len(bounds); i++ {
		tokens = append(tokens, string(runes[bounds[i-1]:bounds[i]]))
	}

	return tokens
}

// textLoss is the negated score of the best segmentation of text, or
// -UnknownScore when there is none.
func textLoss(text string, lex Lexicon, maxLen int) float64 {
	_, score, ok := viterbi([]rune(text), lex, maxLen)
	if !ok {
		return -UnknownScore
	}

	return -score
}

// viterbi returns the token boundaries of the best segmentation (starting
// with 0 and ending with len(text)) and its total score.
func viterbi(text []rune, lex Lexicon, maxLen int) ([]int, float64, bool) {
	n := len(text)
	if n == 0 {
		return nil, 0, false
	}

	best := make([]float64, n+1)
	prev := make([]int, n+1)
	for i := 1; i <= n; i++ {
		best[i] = math.Inf(-1)
		prev[i] = -1
	}

	for i := range n {
		if math.IsInf(best[i], -1) {
			continue
		}

		lex.Matches(text, i, maxLen, func(end int, score float64) {
			if s := best[i] + score; s > best[end] {
				best[end] = s
				prev[end] = i
			}
		})
	}

	if math.IsInf(best[n], -1) {
		return nil, 0, false
	}

	var bounds []int
	for at := n; at > 0; at = prev[at] {
		bounds = append(bounds, at)
	}
	bounds = append(bounds, 0)

	slices.Reverse(bounds)

	return bounds, best[n], true
}
