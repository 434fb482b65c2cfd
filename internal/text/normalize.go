package text

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// WordBoundary marks the start of every word in cleaned text.
const WordBoundary = "▁"

const boundaryRune = '▁'

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// Normalize trims surrounding whitespace and normalizes line endings to \n.
// It rejects empty or whitespace-only input.
func Normalize(s string) (string, error) {
	// Normalize line endings: CRLF → LF, then bare CR → LF.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.TrimSpace(s)

	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

// CleanOptions controls Clean.
type CleanOptions struct {
	// Lowercase folds letters to lower case after NFKC.
	Lowercase bool
}

// Clean prepares one training line for subword discovery: NFKC composition,
// optional lower-casing, and every run of whitespace or non-printable
// characters collapsed into a single WordBoundary. The result always starts
// with WordBoundary and never ends with one.
func Clean(s string, opts CleanOptions) (string, error) {
	s, err := Normalize(s)
	if err != nil {
		return "", err
	}

	s = norm.NFKC.String(s)
	if opts.Lowercase {
		s = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(s) + len(WordBoundary))

	pending := true
	for _, r := range s {
		if r == boundaryRune || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			pending = true
			continue
		}

		if pending {
			b.WriteRune(boundaryRune)
			pending = false
		}
		b.WriteRune(r)
	}

	if b.Len() == 0 {
		return "", ErrEmptyText
	}

	return b.String(), nil
}
