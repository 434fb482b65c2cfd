package bpe

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/example/go-shredword/internal/errs"
)

// Vocabulary maps every token id of a model to its bytes.
type Vocabulary struct {
	tokens  [][]byte
	parts   map[int32]PairKey
	special map[int32]bool
}

// NewVocabulary derives the byte string of every token by concatenating the
// bytes of each merge's members, in merge order.
func NewVocabulary(m *Model) (*Vocabulary, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	v := &Vocabulary{
		tokens:  make([][]byte, m.VocabSize()),
		parts:   make(map[int32]PairKey, len(m.Merges)),
		special: make(map[int32]bool, len(m.Specials)),
	}

	for i := range BaseVocabSize {
		v.tokens[i] = []byte{byte(i)}
	}

	for _, sp := range m.Specials {
		v.tokens[sp.ID] = []byte(sp.Text)
		v.special[sp.ID] = true
	}

	for _, mg := range m.Merges {
		left, right := v.tokens[mg.Pair.Left], v.tokens[mg.Pair.Right]

		tok := make([]byte, 0, len(left)+len(right))
		tok = append(tok, left...)
		tok = append(tok, right...)

		v.tokens[mg.ID] = tok
		v.parts[mg.ID] = mg.Pair
	}

	return v, nil
}

// Len returns the number of tokens.
func (v *Vocabulary) Len() int { return len(v.tokens) }

// Bytes returns the bytes of token id.
func (v *Vocabulary) Bytes(id int32) ([]byte, bool) {
	if id < 0 || int(id) >= len(v.tokens) {
		return nil, false
	}

	return v.tokens[id], true
}

// Parts returns the two members a merged token was built from.
func (v *Vocabulary) Parts(id int32) (PairKey, bool) {
	p, ok := v.parts[id]
	return p, ok
}

// IsSpecial reports whether id is a special token.
func (v *Vocabulary) IsSpecial(id int32) bool { return v.special[id] }

// Decode concatenates the bytes of ids.
func (v *Vocabulary) Decode(ids []int32) (string, error) {
	var sb strings.Builder
	for i, id := range ids {
		tok, ok := v.Bytes(id)
		if !ok {
			return "", errs.Decode("token %d at position %d is not in the vocabulary of %d tokens", id, i, len(v.tokens))
		}

		sb.Write(tok)
	}

	return sb.String(), nil
}

// Render returns a printable form of token id: invalid UTF-8 becomes U+FFFD
// and control or format characters are escaped as \uXXXX.
func (v *Vocabulary) Render(id int32) string {
	tok, ok := v.Bytes(id)
	if !ok {
		return ""
	}

	return RenderToken(tok)
}

// RenderToken is Render for raw token bytes.
func RenderToken(tok []byte) string {
	var sb strings.Builder
	for len(tok) > 0 {
		r, size := utf8.DecodeRune(tok)
		tok = tok[size:]

		if unicode.In(r, unicode.C) {
			fmt.Fprintf(&sb, `\u%04x`, r)
			continue
		}

		sb.WriteRune(r)
	}

	return sb.String()
}
