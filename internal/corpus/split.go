package corpus

import (
	"iter"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/example/go-shredword/internal/errs"
)

// DefaultPattern is the byte-level pre-tokenizer used when none is configured.
const DefaultPattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// Splitter cuts text into pre-tokenization chunks. Text between matches is
// kept as its own chunk, so concatenating the chunks gives back the input.
type Splitter struct {
	pattern string
	re      *regexp2.Regexp
}

// NewSplitter compiles pattern. An empty pattern selects DefaultPattern.
func NewSplitter(pattern string) (*Splitter, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, errs.Config("pre-tokenizer pattern %q: %w", pattern, err)
	}

	return &Splitter{pattern: pattern, re: re}, nil
}

// Pattern returns the source of the compiled pattern.
func (s *Splitter) Pattern() string { return s.pattern }

// Split yields the chunks of text in order. Chunk boundaries are mapped
// back to byte offsets, so invalid UTF-8 passes through unchanged.
func (s *Splitter) Split(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		r := make([]rune, 0, len(text))
		offsets := make([]int, 0, len(text)+1)
		for i := 0; i < len(text); {
			c, size := utf8.DecodeRuneInString(text[i:])
			r = append(r, c)
			offsets = append(offsets, i)
			i += size
		}
		offsets = append(offsets, len(text))

		var offset int
		for m, _ := s.re.FindRunesMatch(r); m != nil; m, _ = s.re.FindNextMatch(m) {
			if m.Index > offset {
				if !yield(text[offsets[offset]:offsets[m.Index]]) {
					return
				}
			}

			end := m.Index + m.Length
			if m.Length > 0 {
				if !yield(text[offsets[m.Index]:offsets[end]]) {
					return
				}
			}

			offset = end
		}

		if offset < len(r) {
			yield(text[offsets[offset]:])
		}
	}
}
