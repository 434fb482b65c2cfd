// Package corpus reads training text and turns it into counted words.
package corpus

import (
	"bufio"
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/example/go-shredword/internal/errs"
)

const maxLineBytes = 16 << 20

// ReadLines returns the non-blank lines of the UTF-8 file at path with line
// terminators removed. A missing or unreadable file is an errs.ErrCorpus error.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Corpus("open corpus", path, err)
	}
	defer f.Close()

	var lines []string

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}

	if err := sc.Err(); err != nil {
		return nil, errs.Corpus("read corpus", path, err)
	}

	return lines, nil
}

// Word is one distinct pre-tokenized chunk and the number of times it occurs.
type Word struct {
	Text  string
	Count uint64
}

// CountWords splits every line with sp and tallies identical chunks. Words
// come back sorted by text so that downstream id assignment is stable.
func CountWords(lines []string, sp *Splitter) []Word {
	counts := make(map[string]uint64)
	for _, line := range lines {
		for chunk := range sp.Split(line) {
			counts[chunk]++
		}
	}

	words := make([]Word, 0, len(counts))
	for w, c := range counts {
		words = append(words, Word{Text: w, Count: c})
	}

	slices.SortFunc(words, func(a, b Word) int { return cmp.Compare(a.Text, b.Text) })

	return words
}

// LoadWords reads path and counts its words with the given pre-tokenizer
// pattern.
func LoadWords(path, pattern string) ([]Word, error) {
	sp, err := NewSplitter(pattern)
	if err != nil {
		return nil, err
	}

	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}

	words := CountWords(lines, sp)
	if len(words) == 0 {
		return nil, errs.Corpus("load corpus", path, fmt.Errorf("no words found"))
	}

	return words, nil
}
