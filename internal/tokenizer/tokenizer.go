// Package tokenizer puts the trained BPE and unigram vocabularies and
// reference SentencePiece models behind one interface, so their output on
// the same text can be compared.
package tokenizer

import (
	"errors"

	"github.com/example/go-shredword/internal/bpe"
	textpkg "github.com/example/go-shredword/internal/text"
	"github.com/example/go-shredword/internal/unigram"
)

// Tokenizer encodes text into token IDs.
type Tokenizer interface {
	// Encode tokenizes text and returns token IDs.
	Encode(text string) ([]int64, error)
}

// BPETokenizer adapts a trained BPE encoder.
type BPETokenizer struct {
	enc *bpe.Encoder
}

// NewBPETokenizer wraps enc.
func NewBPETokenizer(enc *bpe.Encoder) *BPETokenizer {
	return &BPETokenizer{enc: enc}
}

// Encode implements Tokenizer.
func (t *BPETokenizer) Encode(text string) ([]int64, error) {
	ids := t.enc.Encode(text)

	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}

	return out, nil
}

// UnigramTokenizer segments cleaned text with a unigram vocabulary. IDs are
// positions in the piece list; a span the vocabulary cannot cover gets -1.
type UnigramTokenizer struct {
	vocab  *unigram.Vocab
	ids    map[string]int64
	clean  textpkg.CleanOptions
	maxLen int
}

// NewUnigramTokenizer builds a tokenizer over pieces in file order.
func NewUnigramTokenizer(pieces []unigram.Piece, clean textpkg.CleanOptions, maxSegmentLength int) *UnigramTokenizer {
	ids := make(map[string]int64, len(pieces))
	for i, p := range pieces {
		if _, dup := ids[p.Token]; !dup {
			ids[p.Token] = int64(i)
		}
	}

	if maxSegmentLength <= 0 {
		maxSegmentLength = unigram.DefaultMaxSegmentLength
	}

	return &UnigramTokenizer{
		vocab:  unigram.NewVocabFromPieces(pieces),
		ids:    ids,
		clean:  clean,
		maxLen: maxSegmentLength,
	}
}

// Encode implements Tokenizer.
func (t *UnigramTokenizer) Encode(text string) ([]int64, error) {
	cleaned, err := textpkg.Clean(text, t.clean)
	if errors.Is(err, textpkg.ErrEmptyText) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, err
	}

	tokens := unigram.Segment(cleaned, t.vocab, t.maxLen)

	out := make([]int64, len(tokens))
	for i, tok := range tokens {
		id, ok := t.ids[tok]
		if !ok {
			id = -1
		}
		out[i] = id
	}

	return out, nil
}

// Summary is the token count a tokenizer produced over a set of texts.
type Summary struct {
	Texts  int
	Bytes  int
	Tokens int
}

// BytesPerToken is the average input bytes covered by one token.
func (s Summary) BytesPerToken() float64 {
	if s.Tokens == 0 {
		return 0
	}
	return float64(s.Bytes) / float64(s.Tokens)
}

// Summarize encodes every text with tok.
func Summarize(tok Tokenizer, texts []string) (Summary, error) {
	var s Summary
	for _, text := range texts {
		ids, err := tok.Encode(text)
		if err != nil {
			return Summary{}, err
		}
		s.Texts++
		s.Bytes += len(text)
		s.Tokens += len(ids)
	}
	return s, nil
}
