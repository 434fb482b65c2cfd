package unigram

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/go-shredword/internal/errs"
)

// Binary vocab file header values.
const (
	Magic   uint32 = 0x554E4752
	Version uint32 = 1
)

// Format selects a vocab file encoding.
type Format string

const (
	FormatText   Format = "text"
	FormatBinary Format = "binary"
)

// ParseFormat accepts "text" or "binary".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatBinary:
		return f, nil
	default:
		return "", errs.Config("unknown vocab format %q (want text or binary)", s)
	}
}

// WriteText writes one "token<TAB>score" line per piece, in the order given.
func WriteText(w io.Writer, pieces []Piece) error {
	bw := bufio.NewWriter(w)
	for _, p := range pieces {
		bw.WriteString(p.Token)
		bw.WriteByte('\t')
		bw.WriteString(strconv.FormatFloat(p.Score, 'f', 6, 64))
		bw.WriteByte('\n')
	}

	return bw.Flush()
}

// ReadText parses the text format. Lines without a tab are skipped.
func ReadText(r io.Reader) ([]Piece, error) {
	var pieces []Piece

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for line := 1; sc.Scan(); line++ {
		s := strings.TrimRight(sc.Text(), "\r")

		tab := strings.LastIndexByte(s, '\t')
		if tab < 0 {
			continue
		}

		score, err := strconv.ParseFloat(s[tab+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		pieces = append(pieces, Piece{Token: s[:tab], Score: score})
	}

	return pieces, sc.Err()
}

// WriteBinary writes the little-endian binary format: magic, version and
// entry count as uint32, then per entry a uint32 byte length, the token
// bytes and the score as float64.
func WriteBinary(w io.Writer, pieces []Piece) error {
	bw := bufio.NewWriter(w)

	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], Version)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(pieces)))
	bw.Write(hdr[:])

	var n [4]byte
	var f [8]byte
	for _, p := range pieces {
		binary.LittleEndian.PutUint32(n[:], uint32(len(p.Token)))
		bw.Write(n[:])
		bw.WriteString(p.Token)
		binary.LittleEndian.PutUint64(f[:], math.Float64bits(p.Score))
		bw.Write(f[:])
	}

	return bw.Flush()
}

// ReadBinary parses the binary format.
func ReadBinary(r io.Reader) ([]Piece, error) {
	br := bufio.NewReader(r)

	var hdr [3]uint32
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if hdr[0] != Magic {
		return nil, fmt.Errorf("bad magic %#08x", hdr[0])
	}

	if hdr[1] != Version {
		return nil, fmt.Errorf("unsupported version %d", hdr[1])
	}

	pieces := make([]Piece, 0, min(hdr[2], 1<<20))
	for i := range hdr[2] {
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		tok := make([]byte, n)
		if _, err := io.ReadFull(br, tok); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		var score float64
		if err := binary.Read(br, binary.LittleEndian, &score); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		pieces = append(pieces, Piece{Token: string(tok), Score: score})
	}

	return pieces, nil
}

// Save writes pieces to path in the given format, creating parent
// directories as needed.
func Save(path string, pieces []Piece, format Format) error {
	var buf bytes.Buffer

	var err error
	switch format {
	case FormatBinary:
		err = WriteBinary(&buf, pieces)
	case FormatText, "":
		err = WriteText(&buf, pieces)
	default:
		return errs.Config("unknown vocab format %q", format)
	}

	if err != nil {
		return errs.IO("save vocab", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.IO("save vocab", path, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs.IO("save vocab", path, err)
	}

	return nil
}

// Load reads a vocab file in either format, telling them apart by the
// binary magic.
func Load(path string) ([]Piece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO("load vocab", path, err)
	}

	var pieces []Piece
	if len(data) >= 4 && binary.LittleEndian.Uint32(data) == Magic {
		pieces, err = ReadBinary(bytes.NewReader(data))
	} else {
		pieces, err = ReadText(bytes.NewReader(data))
	}

	if err != nil {
		return nil, errs.IO("load vocab", path, err)
	}

	if len(pieces) == 0 {
		return nil, errs.IO("load vocab", path, errors.New("no entries"))
	}

	return pieces, nil
}
