// Package unigram trains a unigram language-model subword vocabulary.
//
// A large seed vocabulary of frequent substrings is scored, then repeatedly
// re-scored from Viterbi segmentations and pruned by marginal loss until the
// loss converges or the iteration budget runs out.
package unigram

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"github.com/example/go-shredword/internal/cache"
	"github.com/example/go-shredword/internal/trie"
)

// Piece is one vocabulary entry.
type Piece struct {
	Token string
	Score float64
}

// SortPieces orders pieces by score descending, then token ascending.
func SortPieces(pieces []Piece) {
	slices.SortFunc(pieces, func(a, b Piece) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Token, b.Token)
	})
}

// Lexicon is what the segmenter needs from a vocabulary.
type Lexicon interface {
	// Matches calls fn for every token that starts at text[start] and spans
	// at most maxLen runes, shortest first.
	Matches(text []rune, start, maxLen int, fn func(end int, score float64))
}

// Vocab is a scored candidate vocabulary: a map for point lookups and a
// trie for prefix matching during segmentation.
type Vocab struct {
	scores *cache.Map[string, float64]
	trie   *trie.Trie
}

// NewVocab returns an empty vocabulary holding at most limit tokens;
// limit <= 0 means unbounded.
func NewVocab(limit int) *Vocab {
	return &Vocab{
		scores: cache.NewMap[string, float64](limit),
		trie:   trie.New(),
	}
}

// NewVocabFromPieces builds a vocabulary from a saved piece list.
func NewVocabFromPieces(pieces []Piece) *Vocab {
	v := NewVocab(0)
	for _, p := range pieces {
		v.Set(p.Token, 0, p.Score)
	}

	return v
}

// Set inserts token or updates its frequency and score. It reports false
// when the vocabulary is full and token is new.
func (v *Vocab) Set(token string, freq int, score float64) bool {
	if token == "" || !v.scores.Set(token, score) {
		return false
	}

	v.trie.Insert(token, freq)

	return true
}

// Remove deletes token.
func (v *Vocab) Remove(token string) bool {
	if !v.scores.Delete(token) {
		return false
	}

	v.trie.Remove(token)

	return true
}

// Score returns the score of token.
func (v *Vocab) Score(token string) (float64, bool) { return v.scores.Get(token) }

// Freq returns the frequency last recorded for token.
func (v *Vocab) Freq(token string) (int, bool) { return v.trie.Lookup(token) }

// Contains reports whether token is present.
func (v *Vocab) Contains(token string) bool { return v.scores.Contains(token) }

// Len returns the number of tokens.
func (v *Vocab) Len() int { return v.scores.Len() }

// Tokens returns every token in ascending order.
func (v *Vocab) Tokens() []string { return v.scores.Keys() }

// Pieces returns every entry in ascending token order.
func (v *Vocab) Pieces() []Piece {
	out := make([]Piece, 0, v.Len())
	for tok, s := range v.scores.All() {
		out = append(out, Piece{Token: tok, Score: s})
	}

	return out
}

// Matches implements Lexicon.
func (v *Vocab) Matches(text []rune, start, maxLen int, fn func(end int, score float64)) {
	v.trie.Walk(text, start, maxLen, func(end, _ int) bool {
		if s, ok := v.scores.Get(string(text[start:end])); ok {
			fn(end, s)
		}
		return true
	})
}

// without hides one token of a vocabulary, so the loss of removing it can be
// measured without copying the vocabulary.
type without struct {
	base  Lexicon
	token []rune
}

func (w without) Matches(text []rune, start, maxLen int, fn func(end int, score float64)) {
	w.base.Matches(text, start, maxLen, func(end int, score float64) {
		if end-start == len(w.token) && slices.Equal(text[start:end], w.token) {
			return
		}
		fn(end, score)
	})
}

func isChar(token string) bool { return utf8.RuneCountInString(token) == 1 }
