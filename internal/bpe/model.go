// Package bpe trains and applies byte-pair merge tokenizers.
//
// Training starts from the 256 single-byte tokens and repeatedly fuses the
// most frequent adjacent pair into a new token. The ordered list of merges
// is the model: replaying it on the byte vocabulary reproduces every token.
//
// Token ids are laid out as
//
//	0 .. 255             single bytes
//	256 .. 256+k-1       the k special tokens, in configuration order
//	256+k ..             merges, in the order they were learned
package bpe

import (
	"fmt"
)

// BaseVocabSize is the number of single-byte tokens.
const BaseVocabSize = 256

// Merge is one learned merge: the pair and the id minted for it.
type Merge struct {
	Pair PairKey
	ID   int32
}

// MergeRecord lists merges in the order they were learned. Order defines
// encode-time precedence.
type MergeRecord []Merge

// SpecialToken is a reserved token matched verbatim during encoding.
type SpecialToken struct {
	Text string
	ID   int32
}

// Model is everything needed to encode and decode: the pre-tokenizer
// pattern, the special tokens and the merge record.
type Model struct {
	Pattern  string
	Specials []SpecialToken
	Merges   MergeRecord
}

// VocabSize returns the total number of token ids the model defines.
func (m *Model) VocabSize() int {
	return BaseVocabSize + len(m.Specials) + len(m.Merges)
}

// FirstMergeID returns the id assigned to the first merge.
func (m *Model) FirstMergeID() int32 {
	return int32(BaseVocabSize + len(m.Specials))
}

// NewSpecials assigns reserved ids to special token texts in order.
func NewSpecials(texts []string) ([]SpecialToken, error) {
	seen := make(map[string]bool, len(texts))
	specials := make([]SpecialToken, 0, len(texts))

	for i, t := range texts {
		if err := validSpecial(t); err != nil {
			return nil, err
		}

		if seen[t] {
			return nil, fmt.Errorf("duplicate special token %q", t)
		}
		seen[t] = true

		specials = append(specials, SpecialToken{Text: t, ID: int32(BaseVocabSize + i)})
	}

	return specials, nil
}

func validSpecial(t string) error {
	if t == "" {
		return fmt.Errorf("empty special token")
	}

	for _, r := range t {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return fmt.Errorf("special token %q contains whitespace", t)
		}
	}

	return nil
}

// validate checks that ids follow the documented layout and that every merge
// refers only to ids defined before it.
func (m *Model) validate() error {
	for i, sp := range m.Specials {
		if err := validSpecial(sp.Text); err != nil {
			return err
		}

		if want := int32(BaseVocabSize + i); sp.ID != want {
			return fmt.Errorf("special token %q has id %d, want %d", sp.Text, sp.ID, want)
		}
	}

	next := m.FirstMergeID()
	for i, mg := range m.Merges {
		if mg.ID != next+int32(i) {
			return fmt.Errorf("merge %d has id %d, want %d", i, mg.ID, next+int32(i))
		}

		for _, part := range []int32{mg.Pair.Left, mg.Pair.Right} {
			if part < 0 || part >= mg.ID {
				return fmt.Errorf("merge %d refers to undefined id %d", i, part)
			}

			if part >= BaseVocabSize && part < next {
				return fmt.Errorf("merge %d refers to special token id %d", i, part)
			}
		}
	}

	return nil
}
