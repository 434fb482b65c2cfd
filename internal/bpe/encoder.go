package bpe

import (
	"cmp"
	"strings"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"

	"github.com/example/go-shredword/internal/corpus"
)

// Encoder applies a trained model to text.
type Encoder struct {
	vocab    *Vocabulary
	ranks    map[PairKey]int
	merges   MergeRecord
	specials []SpecialToken
	splitter *corpus.Splitter
}

// NewEncoder prepares m for encoding.
func NewEncoder(m *Model) (*Encoder, error) {
	vocab, err := NewVocabulary(m)
	if err != nil {
		return nil, err
	}

	sp, err := corpus.NewSplitter(m.Pattern)
	if err != nil {
		return nil, err
	}

	ranks := make(map[PairKey]int, len(m.Merges))
	for i, mg := range m.Merges {
		ranks[mg.Pair] = i
	}

	return &Encoder{
		vocab:    vocab,
		ranks:    ranks,
		merges:   m.Merges,
		specials: m.Specials,
		splitter: sp,
	}, nil
}

// Vocabulary returns the encoder's vocabulary.
func (e *Encoder) Vocabulary() *Vocabulary { return e.vocab }

// Encode splits s on special tokens, pre-tokenizes the remaining text and
// merges each chunk by earliest-learned rank.
func (e *Encoder) Encode(s string) []int32 {
	var ids []int32
	for s != "" {
		at, sp := e.nextSpecial(s)
		if at < 0 {
			ids = e.encodeText(ids, s)
			break
		}

		ids = e.encodeText(ids, s[:at])
		ids = append(ids, sp.ID)
		s = s[at+len(sp.Text):]
	}

	return ids
}

// Decode reverses Encode. Unknown ids are an errs.ErrDecode error.
func (e *Encoder) Decode(ids []int32) (string, error) {
	return e.vocab.Decode(ids)
}

// nextSpecial finds the earliest special token in s, preferring the longest
// one when several start at the same offset.
func (e *Encoder) nextSpecial(s string) (int, SpecialToken) {
	at, best := -1, SpecialToken{}
	for _, sp := range e.specials {
		i := strings.Index(s, sp.Text)
		if i < 0 {
			continue
		}

		if at < 0 || i < at || (i == at && len(sp.Text) > len(best.Text)) {
			at, best = i, sp
		}
	}

	return at, best
}

func (e *Encoder) encodeText(ids []int32, s string) []int32 {
	if s == "" {
		return ids
	}

	for chunk := range e.splitter.Split(s) {
		ids = e.encodeChunk(ids, []byte(chunk))
	}

	return ids
}

// node is one live token of a chunk being encoded.
type node struct {
	id   int32
	p, n int
}

// candidate is an adjacent pair that some merge can fuse.
type candidate struct {
	a, b        int
	rank        int
	left, right int32
}

func (e *Encoder) encodeChunk(ids []int32, chunk []byte) []int32 {
	nodes := make([]node, len(chunk))
	for i, b := range chunk {
		nodes[i] = node{id: int32(b), p: i - 1, n: i + 1}
	}

	pairs := heap.NewWith(func(x, y candidate) int {
		if c := cmp.Compare(x.rank, y.rank); c != 0 {
			return c
		}

		return cmp.Compare(x.a, y.a)
	})

	pairwise := func(a, b int) {
		if a < 0 || b >= len(nodes) {
			return
		}

		key := PairKey{nodes[a].id, nodes[b].id}
		if rank, ok := e.ranks[key]; ok {
			pairs.Push(candidate{a: a, b: b, rank: rank, left: key.Left, right: key.Right})
		}
	}

	for i := range len(nodes) - 1 {
		pairwise(i, i+1)
	}

	for !pairs.Empty() {
		c, _ := pairs.Pop()

		left, right := nodes[c.a], nodes[c.b]
		if left.id < 0 || right.id < 0 || left.n != c.b || left.id != c.left || right.id != c.right {
			continue
		}

		nodes[c.a].id = e.merges[c.rank].ID
		nodes[c.a].n = right.n
		nodes[c.b].id = -1
		if right.n < len(nodes) {
			nodes[right.n].p = c.a
		}

		pairwise(nodes[c.a].p, c.a)
		pairwise(c.a, nodes[c.a].n)
	}

	for _, nd := range nodes {
		if nd.id >= 0 {
			ids = append(ids, nd.id)
		}
	}

	return ids
}
