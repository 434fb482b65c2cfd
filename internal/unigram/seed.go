package unigram

import (
	"cmp"
	"math"
	"slices"
)

// DefaultDiscoveryTexts is how many leading texts are mined for candidate
// substrings; candidates are then counted over every text.
const DefaultDiscoveryTexts = 10000

// SeedOptions bounds seed vocabulary construction.
type SeedOptions struct {
	MaxSubwordLength int
	SeedSize         int
	DiscoveryTexts   int
}

// SeedEntry is a candidate substring and the number of texts containing it.
type SeedEntry struct {
	Token string
	Freq  int
}

// BuildSeed enumerates every substring of at most MaxSubwordLength runes of
// the discovery sample and counts, over all texts, how many texts contain
// each one. Multi-character candidates seen in more than one text are kept,
// most frequent first, up to SeedSize entries in total. Every character of
// every text is kept regardless of frequency. Entries come back sorted by
// frequency descending, then token ascending.
func BuildSeed(texts []string, opts SeedOptions) []SeedEntry {
	maxLen := max(opts.MaxSubwordLength, 1)

	discovery := opts.DiscoveryTexts
	if discovery <= 0 || discovery > len(texts) {
		discovery = len(texts)
	}

	candidates := make(map[string]struct{})
	for _, t := range texts[:discovery] {
		for sub := range substrings(t, maxLen) {
			candidates[sub] = struct{}{}
		}
	}

	counts := make(map[string]int)
	chars := make(map[string]int)
	for _, t := range texts {
		for sub := range substrings(t, maxLen) {
			if isChar(sub) {
				chars[sub]++
				continue
			}

			if _, ok := candidates[sub]; ok {
				counts[sub]++
			}
		}
	}

	byFreq := func(a, b SeedEntry) int {
		if c := cmp.Compare(b.Freq, a.Freq); c != 0 {
			return c
		}
		return cmp.Compare(a.Token, b.Token)
	}

	multi := make([]SeedEntry, 0, len(counts))
	for tok, f := range counts {
		if f > 1 {
			multi = append(multi, SeedEntry{Token: tok, Freq: f})
		}
	}
	slices.SortFunc(multi, byFreq)

	if room := max(opts.SeedSize-len(chars), 0); len(multi) > room {
		multi = multi[:room]
	}

	seed := make([]SeedEntry, 0, len(chars)+len(multi))
	for tok, f := range chars {
		seed = append(seed, SeedEntry{Token: tok, Freq: f})
	}
	seed = append(seed, multi...)
	slices.SortFunc(seed, byFreq)

	return seed
}

// seedVocab turns seed entries into a vocabulary scored ln(freq).
func seedVocab(seed []SeedEntry) *Vocab {
	v := NewVocab(len(seed))
	for _, e := range seed {
		v.Set(e.Token, e.Freq, math.Log(float64(e.Freq)))
	}

	return v
}

// substrings returns the distinct substrings of t that are at most maxLen
// runes long.
func substrings(t string, maxLen int) map[string]struct{} {
	runes := []rune(t)
	out := make(map[string]struct{}, len(runes)*min(maxLen, len(runes)))

	for i := range runes {
		for j := i + 1; j <= len(runes) && j-i <= maxLen; j++ {
			out[string(runes[i:j])] = struct{}{}
		}
	}

	return out
}
