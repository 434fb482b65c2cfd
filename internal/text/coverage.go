package text

import (
	"cmp"
	"slices"
)

// CharCount is one entry of a character histogram.
type CharCount struct {
	Char  rune
	Count int
}

// CharFrequencies counts every rune across texts, WordBoundary excluded. The
// result is sorted by count descending, then by rune ascending.
func CharFrequencies(texts []string) []CharCount {
	counts := make(map[rune]int)
	for _, t := range texts {
		for _, r := range t {
			if r != boundaryRune {
				counts[r]++
			}
		}
	}

	out := make([]CharCount, 0, len(counts))
	for r, c := range counts {
		out = append(out, CharCount{Char: r, Count: c})
	}

	slices.SortFunc(out, func(a, b CharCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Char, b.Char)
	})

	return out
}

// CoveringSet returns the smallest set of most frequent characters whose
// combined count reaches coverage (a fraction in (0,1]) of all characters.
// WordBoundary is always a member.
func CoveringSet(freqs []CharCount, coverage float64) map[rune]bool {
	total := 0
	for _, f := range freqs {
		total += f.Count
	}

	set := map[rune]bool{boundaryRune: true}
	if total == 0 {
		return set
	}

	covered := 0
	for _, f := range freqs {
		covered += f.Count
		set[f.Char] = true

		if float64(covered)/float64(total) >= coverage {
			break
		}
	}

	return set
}

// FilterByCoverage keeps, in order, the texts whose characters all belong to
// the covering set for coverage. It also returns that set.
func FilterByCoverage(texts []string, coverage float64) ([]string, map[rune]bool) {
	set := CoveringSet(CharFrequencies(texts), coverage)

	kept := make([]string, 0, len(texts))
outer:
	for _, t := range texts {
		for _, r := range t {
			if !set[r] {
				continue outer
			}
		}
		kept = append(kept, t)
	}

	return kept, set
}
