package bpe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/go-shredword/internal/errs"
)

// FormatTag is the first line of every model file.
const FormatTag = "shredword v1"

// WriteModel writes m in the model file format.
func WriteModel(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, FormatTag)
	fmt.Fprintln(bw, m.Pattern)
	fmt.Fprintln(bw, len(m.Specials))

	for _, sp := range m.Specials {
		fmt.Fprintf(bw, "%s %d\n", sp.Text, sp.ID)
	}

	for _, mg := range m.Merges {
		fmt.Fprintf(bw, "%d %d\n", mg.Pair.Left, mg.Pair.Right)
	}

	return bw.Flush()
}

// ReadModel parses a model file. Merge ids are implicit: the i-th merge line
// gets id 256 + specials + i.
func ReadModel(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lineNo int
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		lineNo++

		return strings.TrimRight(sc.Text(), "\r"), true
	}

	tag, ok := next()
	if !ok || tag != FormatTag {
		return nil, fmt.Errorf("missing %q header", FormatTag)
	}

	pattern, ok := next()
	if !ok {
		return nil, fmt.Errorf("missing pattern line")
	}

	countLine, ok := next()
	if !ok {
		return nil, fmt.Errorf("missing special token count")
	}

	count, err := strconv.Atoi(strings.TrimSpace(countLine))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("line %d: bad special token count %q", lineNo, countLine)
	}

	m := &Model{Pattern: pattern}

	for range count {
		line, ok := next()
		if !ok {
			return nil, fmt.Errorf("expected %d special tokens, found %d", count, len(m.Specials))
		}

		sep := strings.LastIndexByte(line, ' ')
		if sep <= 0 {
			return nil, fmt.Errorf("line %d: bad special token %q", lineNo, line)
		}

		id, err := strconv.ParseInt(line[sep+1:], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad special token id: %w", lineNo, err)
		}

		m.Specials = append(m.Specials, SpecialToken{Text: line[:sep], ID: int32(id)})
	}

	id := m.FirstMergeID()
	for {
		line, ok := next()
		if !ok {
			break
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want two ids, got %q", lineNo, line)
		}

		left, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		right, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		m.Merges = append(m.Merges, Merge{Pair: PairKey{int32(left), int32(right)}, ID: id})
		id++
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// WriteVocab writes a human-readable listing of every token. Merged tokens
// also show the two tokens they were built from.
func WriteVocab(w io.Writer, m *Model) error {
	v, err := NewVocabulary(m)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for id := range int32(v.Len()) {
		s := v.Render(id)
		if p, ok := v.Parts(id); ok {
			fmt.Fprintf(bw, "[%s][%s] -> [%s] %d\n", v.Render(p.Left), v.Render(p.Right), s, id)
			continue
		}

		fmt.Fprintf(bw, "[%s] %d\n", s, id)
	}

	return bw.Flush()
}

// SaveModel writes m to path, creating parent directories as needed.
func SaveModel(path string, m *Model) error {
	return writeFile("save model", path, func(w io.Writer) error { return WriteModel(w, m) })
}

// SaveVocab writes the vocabulary listing of m to path.
func SaveVocab(path string, m *Model) error {
	return writeFile("save vocab", path, func(w io.Writer) error { return WriteVocab(w, m) })
}

// Save writes prefix.model and prefix.vocab.
func Save(prefix string, m *Model) error {
	if err := SaveModel(prefix+".model", m); err != nil {
		return err
	}

	return SaveVocab(prefix+".vocab", m)
}

// LoadModel reads a model file.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.IO("load model", path, err)
	}
	defer f.Close()

	m, err := ReadModel(f)
	if err != nil {
		return nil, errs.IO("load model", path, err)
	}

	return m, nil
}

func writeFile(op, path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.IO(op, path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return errs.IO(op, path, err)
	}

	if err := write(f); err != nil {
		f.Close()
		return errs.IO(op, path, err)
	}

	if err := f.Close(); err != nil {
		return errs.IO(op, path, err)
	}

	return nil
}
