package bpe

import (
	"cmp"

	"github.com/example/go-shredword/internal/corpus"
)

// PairKey identifies an adjacent symbol pair by the ids of its two members.
type PairKey struct {
	Left, Right int32
}

// Compare orders pair keys by left id, then right id.
func (p PairKey) Compare(o PairKey) int {
	if c := cmp.Compare(p.Left, o.Left); c != 0 {
		return c
	}

	return cmp.Compare(p.Right, o.Right)
}

const none = -1

// symbol is one token instance. prev and next index the arena and never
// cross a word boundary; absorbed symbols are tombstoned, not removed.
type symbol struct {
	id         int32
	prev, next int32
	word       int32
	deleted    bool
}

type word struct {
	start, end int32
	count      uint64
}

// Store holds the tokenized corpus as one flat arena of symbols. Every word
// owns a contiguous range of the arena that never moves, so a merge is a
// constant-time relink.
type Store struct {
	syms  []symbol
	words []word
}

// NewStore tokenizes every word into one symbol per byte.
func NewStore(words []corpus.Word) *Store {
	var total int
	for _, w := range words {
		total += len(w.Text)
	}

	s := &Store{
		syms:  make([]symbol, 0, total),
		words: make([]word, 0, len(words)),
	}

	for _, w := range words {
		if len(w.Text) == 0 || w.Count == 0 {
			continue
		}

		start := int32(len(s.syms))
		for i := 0; i < len(w.Text); i++ {
			pos := int32(len(s.syms))

			sym := symbol{id: int32(w.Text[i]), prev: pos - 1, next: pos + 1, word: int32(len(s.words))}
			if i == 0 {
				sym.prev = none
			}
			if i == len(w.Text)-1 {
				sym.next = none
			}

			s.syms = append(s.syms, sym)
		}

		s.words = append(s.words, word{start: start, end: int32(len(s.syms)), count: w.Count})
	}

	return s
}

// Words returns the number of words held.
func (s *Store) Words() int { return len(s.words) }

// Count returns the occurrence count of the word owning the symbol at pos.
func (s *Store) Count(pos int32) uint64 { return s.words[s.syms[pos].word].count }

// Tokens returns the current token ids of word w in order.
func (s *Store) Tokens(w int) []int32 {
	wd := s.words[w]

	var ids []int32
	for pos := wd.start; pos != none; pos = s.syms[pos].next {
		ids = append(ids, s.syms[pos].id)
	}

	return ids
}

// pairAt reports whether the live symbol at pos starts an occurrence of key
// and returns the position of its right member.
func (s *Store) pairAt(pos int32, key PairKey) (int32, bool) {
	sym := s.syms[pos]
	if sym.deleted || sym.id != key.Left || sym.next == none {
		return none, false
	}

	if s.syms[sym.next].id != key.Right {
		return none, false
	}

	return sym.next, true
}

// merge fuses the symbol at pos with its right neighbour at right, giving
// the survivor id.
func (s *Store) merge(pos, right, id int32) {
	next := s.syms[right].next

	s.syms[pos].id = id
	s.syms[pos].next = next
	s.syms[right].deleted = true
	s.syms[right].prev, s.syms[right].next = none, none

	if next != none {
		s.syms[next].prev = pos
	}
}

// Recount tallies every adjacent live pair from scratch, weighted by word
// count. The merger never calls it; it is the reference the incremental
// bookkeeping is checked against.
func (s *Store) Recount() map[PairKey]uint64 {
	counts := make(map[PairKey]uint64)
	for _, wd := range s.words {
		for pos := wd.start; pos != none; pos = s.syms[pos].next {
			next := s.syms[pos].next
			if next == none {
				break
			}

			counts[PairKey{s.syms[pos].id, s.syms[next].id}] += wd.count
		}
	}

	return counts
}
