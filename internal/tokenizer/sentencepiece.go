package tokenizer

import (
	"errors"
	"fmt"
	"os"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"

	"github.com/example/go-shredword/internal/errs"
	"github.com/example/go-shredword/internal/unigram"
)

// ErrEmptyPath is returned when NewSentencePieceTokenizer is called with an empty path.
var ErrEmptyPath = errors.New("sentencepiece model path must not be empty")

// SentencePieceTokenizer implements Tokenizer using a pure-Go unigram SentencePiece model.
type SentencePieceTokenizer struct {
	proc gosp.Sentencepiece
}

// NewSentencePieceTokenizer loads a SentencePiece model from the given path.
func NewSentencePieceTokenizer(modelPath string, lowercase bool) (*SentencePieceTokenizer, error) {
	if modelPath == "" {
		return nil, ErrEmptyPath
	}

	proc, err := gosp.NewSentencepieceFromFile(modelPath, lowercase)
	if err != nil {
		return nil, errs.IO("load sentencepiece model", modelPath, err)
	}

	return &SentencePieceTokenizer{proc: proc}, nil
}

// Encode tokenizes text and returns SentencePiece token IDs as int64.
func (t *SentencePieceTokenizer) Encode(text string) ([]int64, error) {
	if text == "" {
		return []int64{}, nil
	}

	ids := t.proc.TokenizeToIDs(text)

	result := make([]int64, len(ids))
	for i, id := range ids {
		result[i] = int64(id)
	}

	return result, nil
}

// ParseSentencePieceModel extracts the normal and user-defined pieces of a
// serialized SentencePiece model, in model order, as unigram pieces.
// Control, unknown, unused and byte pieces are dropped.
func ParseSentencePieceModel(data []byte) ([]unigram.Piece, error) {
	if len(data) == 0 {
		return nil, errors.New("sentencepiece model data must not be empty")
	}

	var model gosp.ModelProto
	if err := proto.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("unmarshal sentencepiece model: %w", err)
	}

	pieces := make([]unigram.Piece, 0, len(model.GetPieces()))
	for _, p := range model.GetPieces() {
		switch p.GetType() {
		case gosp.ModelProto_SentencePiece_NORMAL, gosp.ModelProto_SentencePiece_USER_DEFINED:
			pieces = append(pieces, unigram.Piece{Token: p.GetPiece(), Score: float64(p.GetScore())})
		}
	}

	if len(pieces) == 0 {
		return nil, errors.New("sentencepiece model has no normal pieces")
	}

	return pieces, nil
}

// ImportSentencePieceModel reads a SentencePiece .model file into unigram
// pieces.
func ImportSentencePieceModel(path string) ([]unigram.Piece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO("import sentencepiece model", path, err)
	}

	pieces, err := ParseSentencePieceModel(data)
	if err != nil {
		return nil, errs.IO("import sentencepiece model", path, err)
	}

	return pieces, nil
}
