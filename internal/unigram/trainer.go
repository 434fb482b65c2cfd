package unigram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/go-shredword/internal/cache"
	"github.com/example/go-shredword/internal/errs"
	"github.com/example/go-shredword/internal/text"
)

// Sample caps applied during training.
const (
	MaxTrainingTexts   = 50000
	MaxLossTexts       = 2000
	MaxRescoreTexts    = 5000
	MaxTokenLossTexts  = 1000
	CandidatePoolScale = 3
)

// State is the position of a Trainer in its lifecycle.
type State int

const (
	Uninitialized State = iota
	Preprocessed
	SeedBuilt
	Training
	Converged
	Exhausted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Preprocessed:
		return "preprocessed"
	case SeedBuilt:
		return "seed-built"
	case Training:
		return "training"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Done reports whether training has terminated.
func (s State) Done() bool { return s == Converged || s == Exhausted }

// Options configures a unigram training run.
type Options struct {
	TargetVocabSize    int
	CharacterCoverage  float64
	MaxSubwordLength   int
	MaxSegmentLength   int
	SeedSize           int
	NumIterations      int
	ReductionRatio     float64
	ConvergenceEpsilon float64
	Lowercase          bool
	// Seed drives the shuffle of pruning candidates.
	Seed          uint64
	LossCacheSize int
	Logger        *slog.Logger
}

// DefaultOptions returns the recommended training options.
func DefaultOptions() Options {
	return Options{
		TargetVocabSize:    32000,
		CharacterCoverage:  0.9995,
		MaxSubwordLength:   16,
		MaxSegmentLength:   DefaultMaxSegmentLength,
		SeedSize:           1000000,
		NumIterations:      20,
		ReductionRatio:     0.8,
		ConvergenceEpsilon: 0.001,
		LossCacheSize:      100000,
	}
}

// Validate checks every option and returns an errs.ErrConfig error for the
// first invalid one.
func (o Options) Validate() error {
	switch {
	case o.TargetVocabSize <= 0:
		return errs.Config("target vocab size must be positive, got %d", o.TargetVocabSize)
	case o.CharacterCoverage <= 0 || o.CharacterCoverage > 1:
		return errs.Config("character coverage must be in (0, 1], got %g", o.CharacterCoverage)
	case o.MaxSubwordLength <= 0:
		return errs.Config("max subword length must be positive, got %d", o.MaxSubwordLength)
	case o.MaxSegmentLength < o.MaxSubwordLength:
		return errs.Config("max segment length %d is shorter than max subword length %d", o.MaxSegmentLength, o.MaxSubwordLength)
	case o.SeedSize <= 0:
		return errs.Config("seed size must be positive, got %d", o.SeedSize)
	case o.NumIterations < 0:
		return errs.Config("iteration count must not be negative, got %d", o.NumIterations)
	case o.ReductionRatio <= 0 || o.ReductionRatio >= 1:
		return errs.Config("reduction ratio must be in (0, 1), got %g", o.ReductionRatio)
	case o.ConvergenceEpsilon < 0:
		return errs.Config("convergence epsilon must not be negative, got %g", o.ConvergenceEpsilon)
	case o.LossCacheSize <= 0:
		return errs.Config("loss cache size must be positive, got %d", o.LossCacheSize)
	}

	return nil
}

// Trainer runs one unigram training. It is not safe for concurrent use.
type Trainer struct {
	opts   Options
	logger *slog.Logger

	state     State
	iteration int
	prevLoss  float64
	losses    []float64

	texts []string
	chars map[rune]bool
	vocab *Vocab
	final []Piece

	lossCache *cache.LRU[string, float64]
	rng       *rand.Rand
}

// NewTrainer validates opts and returns an Uninitialized trainer.
func NewTrainer(opts Options) (*Trainer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	lc, err := cache.NewLRU[string, float64](opts.LossCacheSize)
	if err != nil {
		return nil, errs.Config("%w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Trainer{
		opts:      opts,
		logger:    logger,
		prevLoss:  math.Inf(1),
		lossCache: lc,
		rng:       rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// State returns the current lifecycle state.
func (t *Trainer) State() State { return t.state }

// Iteration returns the number of completed training iterations.
func (t *Trainer) Iteration() int { return t.iteration }

// Losses returns the loss measured at the start of each iteration.
func (t *Trainer) Losses() []float64 { return t.losses }

// Texts returns the cleaned training texts.
func (t *Trainer) Texts() []string { return t.texts }

// Characters returns the characters present in the training texts, sorted.
func (t *Trainer) Characters() []rune {
	out := make([]rune, 0, len(t.chars))
	for r := range t.chars {
		out = append(out, r)
	}
	slices.Sort(out)

	return out
}

// Vocab returns the working vocabulary; nil before the seed is built.
func (t *Trainer) Vocab() *Vocab { return t.vocab }

// Final returns the finalized vocabulary once training has terminated.
func (t *Trainer) Final() []Piece { return t.final }

func (t *Trainer) expect(want State) error {
	if t.state != want {
		return errs.Training("trainer is %s, want %s", t.state, want)
	}

	return nil
}

// Preprocess cleans lines, drops texts with characters outside the coverage
// set and keeps at most MaxTrainingTexts of the rest.
func (t *Trainer) Preprocess(lines []string) error {
	if err := t.expect(Uninitialized); err != nil {
		return err
	}

	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		s, err := text.Clean(line, text.CleanOptions{Lowercase: t.opts.Lowercase})
		if errors.Is(err, text.ErrEmptyText) {
			continue
		}
		if err != nil {
			return err
		}
		cleaned = append(cleaned, s)
	}

	kept, _ := text.FilterByCoverage(cleaned, t.opts.CharacterCoverage)
	if len(kept) > MaxTrainingTexts {
		kept = kept[:MaxTrainingTexts]
	}

	t.texts = kept
	t.chars = make(map[rune]bool)
	for _, s := range kept {
		for _, r := range s {
			t.chars[r] = true
		}
	}

	t.state = Preprocessed
	t.logger.Debug("unigram corpus preprocessed", "lines", len(lines), "texts", len(kept), "characters", len(t.chars))

	return nil
}

// BuildSeed builds the initial candidate vocabulary.
func (t *Trainer) BuildSeed() error {
	if err := t.expect(Preprocessed); err != nil {
		return err
	}

	if len(t.texts) == 0 {
		return errs.Corpus("build seed vocabulary", "", errors.New("no texts survived preprocessing"))
	}

	seed := BuildSeed(t.texts, SeedOptions{
		MaxSubwordLength: t.opts.MaxSubwordLength,
		SeedSize:         t.opts.SeedSize,
		DiscoveryTexts:   DefaultDiscoveryTexts,
	})

	t.vocab = seedVocab(seed)
	t.state = SeedBuilt
	t.logger.Info("unigram seed vocabulary built", "size", t.vocab.Len())

	return nil
}

// Step runs one training iteration: measure loss, stop on convergence,
// re-score, then prune if the vocabulary is above target. It moves the
// trainer to Converged or Exhausted when training ends.
func (t *Trainer) Step() error {
	if t.state == SeedBuilt {
		t.state = Training
	}

	if err := t.expect(Training); err != nil {
		return err
	}

	if t.iteration >= t.opts.NumIterations {
		t.state = Exhausted
		return nil
	}

	t.lossCache.Purge()

	loss := t.loss(head(t.texts, MaxLossTexts))
	t.losses = append(t.losses, loss)
	t.logger.Debug("unigram iteration", "iteration", t.iteration+1, "loss", loss, "vocab_size", t.vocab.Len())

	if math.Abs(t.prevLoss-loss) < t.opts.ConvergenceEpsilon {
		t.state = Converged
		return nil
	}
	t.prevLoss = loss

	t.rescore(head(t.texts, MaxRescoreTexts))
	t.lossCache.Purge()

	if t.vocab.Len() > t.opts.TargetVocabSize {
		removed := t.prune(t.texts)
		t.logger.Debug("unigram pruned", "removed", removed, "vocab_size", t.vocab.Len())
	}

	t.iteration++
	if t.iteration >= t.opts.NumIterations {
		t.state = Exhausted
	}

	return nil
}

// Train runs every stage on lines and returns the finalized vocabulary.
// ctx is checked between iterations.
func (t *Trainer) Train(ctx context.Context, lines []string) ([]Piece, error) {
	start := time.Now()

	if err := t.Preprocess(lines); err != nil {
		return nil, err
	}

	if err := t.BuildSeed(); err != nil {
		return nil, err
	}

	for !t.state.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := t.Step(); err != nil {
			return nil, err
		}
	}

	final := t.Finalize()

	t.logger.Info("unigram training finished",
		"state", t.state.String(),
		"iterations", t.iteration,
		"vocab_size", len(final),
		"elapsed", time.Since(start).String(),
	)

	return final, nil
}

// loss is the summed segmentation loss of texts divided by their total
// length in runes. Per-text losses are memoized until the next purge.
func (t *Trainer) loss(texts []string) float64 {
	var total float64
	var length int

	for _, s := range texts {
		l, ok := t.lossCache.Get(s)
		if !ok {
			l = textLoss(s, t.vocab, t.opts.MaxSegmentLength)
			t.lossCache.Put(s, l)
		}

		total += l
		length += utf8.RuneCountInString(s)
	}

	if length == 0 {
		return 0
	}

	return total / float64(length)
}

// rescore sets every token's score to ln(freq), where freq is how often the
// token appears in the best segmentations of texts. Tokens that never
// appear keep a floor frequency of 1.
func (t *Trainer) rescore(texts []string) {
	counts := make(map[string]int)
	var total int

	for _, s := range texts {
		for _, tok := range Segment(s, t.vocab, t.opts.MaxSegmentLength) {
			if t.vocab.Contains(tok) {
				counts[tok]++
				total++
			}
		}
	}

	if total == 0 {
		return
	}

	for _, tok := range t.vocab.Tokens() {
		freq := max(counts[tok], 1)
		t.vocab.Set(tok, freq, math.Log(float64(freq)))
	}
}

type removal struct {
	token string
	cost  float64
}

// prune removes the tokens whose removal raises the loss least, shrinking
// the vocabulary to max(target, size*ReductionRatio). Single characters are
// never removed. It returns the number of tokens removed.
func (t *Trainer) prune(texts []string) int {
	size := t.vocab.Len()
	target := max(t.opts.TargetVocabSize, int(float64(size)*t.opts.ReductionRatio))

	toRemove := size - target
	if toRemove <= 0 {
		return 0
	}

	tokens := t.vocab.Tokens()
	t.rng.Shuffle(len(tokens), func(i, j int) { tokens[i], tokens[j] = tokens[j], tokens[i] })

	sample := head(texts, MaxTokenLossTexts)

	var candidates []removal
	for _, tok := range head(tokens, CandidatePoolScale*toRemove) {
		if isChar(tok) {
			continue
		}

		candidates = append(candidates, removal{token: tok, cost: t.marginalLoss(tok, sample)})
	}

	slices.SortFunc(candidates, func(a, b removal) int {
		if c := cmp.Compare(a.cost, b.cost); c != 0 {
			return c
		}
		return cmp.Compare(a.token, b.token)
	})

	var removed int
	for _, c := range head(candidates, toRemove) {
		if t.vocab.Remove(c.token) {
			removed++
		}
	}

	return removed
}

// marginalLoss is how much the summed loss over the texts containing token
// grows when token is taken out of the vocabulary.
func (t *Trainer) marginalLoss(token string, texts []string) float64 {
	hidden := without{base: t.vocab, token: []rune(token)}

	var with, after float64
	for _, s := range texts {
		if !strings.Contains(s, token) {
			continue
		}

		l, ok := t.lossCache.Get(s)
		if !ok {
			l = textLoss(s, t.vocab, t.opts.MaxSegmentLength)
			t.lossCache.Put(s, l)
		}

		with += l
		after += textLoss(s, hidden, t.opts.MaxSegmentLength)
	}

	return after - with
}

// Finalize keeps every single-character token and fills the remaining
// budget with the best-scoring longer tokens. The result is sorted by score
// descending, then token ascending.
func (t *Trainer) Finalize() []Piece {
	if t.vocab == nil {
		return nil
	}

	var chars, multi []Piece
	for _, p := range t.vocab.Pieces() {
		if isChar(p.Token) {
			chars = append(chars, p)
		} else {
			multi = append(multi, p)
		}
	}

	SortPieces(multi)
	multi = head(multi, max(t.opts.TargetVocabSize-len(chars), 0))

	if len(chars) > t.opts.TargetVocabSize {
		t.logger.Warn("character set exceeds target vocab size; keeping every character",
			"characters", len(chars), "target_vocab_size", t.opts.TargetVocabSize)
	}

	final := append(chars, multi...)
	SortPieces(final)
	t.final = final

	return final
}

func head[T any](s []T, n int) []T {
	if n < len(s) {
		return s[:n]
	}

	return s
}
