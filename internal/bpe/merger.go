package bpe

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/example/go-shredword/internal/corpus"
	"github.com/example/go-shredword/internal/errs"
	"github.com/example/go-shredword/internal/pqueue"
)

// DefaultMaxOccurrencesPerMerge bounds how many merge sites are processed
// before pending frequency deltas are flushed into the priority index.
const DefaultMaxOccurrencesPerMerge = 50000

var errEmptyCorpus = errors.New("corpus has no words")

// Options configures a merge training run.
type Options struct {
	// TargetVocabSize includes the 256 byte tokens and the special tokens.
	TargetVocabSize int
	// MinPairFrequency stops training once the best pair falls below it.
	MinPairFrequency uint64
	// Pattern is the pre-tokenizer pattern recorded in the model.
	Pattern       string
	SpecialTokens []string
	// Workers shards the initial pair count. Values below 2 count serially.
	Workers int
	// MaxOccurrencesPerMerge paces delta flushing. It never changes the
	// learned merges.
	MaxOccurrencesPerMerge int
	Logger                 *slog.Logger
}

// Merger owns the tokenized corpus of one training run and the incremental
// pair statistics over it.
type Merger struct {
	opts     Options
	logger   *slog.Logger
	specials []SpecialToken
	budget   int

	store *Store
	pairs *pairTable
	index *pqueue.Index[PairKey]
	dirty map[PairKey]struct{}

	record MergeRecord
	nextID int32
}

// NewMerger validates opts, tokenizes words into bytes and counts the
// initial pairs.
func NewMerger(ctx context.Context, words []corpus.Word, opts Options) (*Merger, error) {
	if opts.TargetVocabSize < BaseVocabSize {
		return nil, errs.Config("target vocab size %d is below the %d byte tokens", opts.TargetVocabSize, BaseVocabSize)
	}

	if opts.MinPairFrequency == 0 {
		opts.MinPairFrequency = 1
	}

	if opts.MaxOccurrencesPerMerge <= 0 {
		opts.MaxOccurrencesPerMerge = DefaultMaxOccurrencesPerMerge
	}

	specials, err := NewSpecials(opts.SpecialTokens)
	if err != nil {
		return nil, errs.Config("special tokens: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := NewStore(words)
	if store.Words() == 0 {
		return nil, errs.Corpus("train bpe", "", errEmptyCorpus)
	}

	pairs, err := countPairs(ctx, store, opts.Workers)
	if err != nil {
		return nil, err
	}

	index := pqueue.New(PairKey.Compare)
	for key, f := range pairs.freq {
		index.Push(key, uint64(f))
	}

	m := &Merger{
		opts:     opts,
		logger:   logger,
		specials: specials,
		budget:   max(opts.TargetVocabSize-BaseVocabSize-len(specials), 0),
		store:    store,
		pairs:    pairs,
		index:    index,
		dirty:    make(map[PairKey]struct{}),
		nextID:   int32(BaseVocabSize + len(specials)),
	}

	logger.Debug("bpe corpus loaded", "words", store.Words(), "symbols", len(store.syms), "pairs", index.Len())

	return m, nil
}

// Budget returns the maximum number of merges this run may learn.
func (m *Merger) Budget() int { return m.budget }

// Merges returns the merges learned so far.
func (m *Merger) Merges() MergeRecord { return m.record }

// Store exposes the tokenized corpus.
func (m *Merger) Store() *Store { return m.store }

// Frequencies returns a snapshot of the live pair frequencies.
func (m *Merger) Frequencies() map[PairKey]uint64 {
	out := make(map[PairKey]uint64, len(m.pairs.freq))
	for k, f := range m.pairs.freq {
		out[k] = uint64(f)
	}

	return out
}

// Step learns one merge. It reports false when the budget is spent, no pair
// remains, or the best pair is below the frequency floor.
func (m *Merger) Step() (Merge, bool, error) {
	if len(m.record) >= m.budget {
		return Merge{}, false, nil
	}

	key, freq, ok := m.index.Peek()
	if !ok || freq < m.opts.MinPairFrequency {
		return Merge{}, false, nil
	}

	m.index.Pop()

	mg := Merge{Pair: key, ID: m.nextID}
	if err := m.apply(mg); err != nil {
		return Merge{}, false, err
	}

	m.nextID++
	m.record = append(m.record, mg)

	if m.index.Stale() > 4*m.index.Len()+1024 {
		m.index.Compact()
	}

	return mg, true, nil
}

// apply splices every live occurrence of mg.Pair, left to right, and moves
// the neighbouring pair counts to the new token.
func (m *Merger) apply(mg Merge) error {
	key, id := mg.Pair, mg.ID

	positions := m.pairs.occ[key]
	delete(m.pairs.occ, key)

	slices.Sort(positions)
	positions = slices.Compact(positions)

	var pending int
	for _, pos := range positions {
		right, ok := m.store.pairAt(pos, key)
		if !ok {
			continue
		}

		c := int64(m.store.Count(pos))

		if prev := m.store.syms[pos].prev; prev != none {
			pid := m.store.syms[prev].id
			m.add(PairKey{pid, key.Left}, -c, none)
			m.add(PairKey{pid, id}, c, prev)
		}

		if next := m.store.syms[right].next; next != none {
			nid := m.store.syms[next].id
			m.add(PairKey{key.Right, nid}, -c, none)
			m.add(PairKey{id, nid}, c, pos)
		}

		m.pairs.freq[key] -= c
		m.store.merge(pos, right, id)

		pending++
		if pending >= m.opts.MaxOccurrencesPerMerge {
			if err := m.flush(key); err != nil {
				return err
			}
			pending = 0
		}
	}

	if err := m.flush(key); err != nil {
		return err
	}

	if left := m.pairs.freq[key]; left != 0 {
		return errs.Training("pair (%d, %d) has %d occurrences left after merging", key.Left, key.Right, left)
	}

	delete(m.pairs.freq, key)
	m.index.Remove(key)

	return nil
}

func (m *Merger) add(key PairKey, delta int64, pos int32) {
	m.pairs.freq[key] += delta
	if pos != none {
		m.pairs.occ[key] = append(m.pairs.occ[key], pos)
	}

	m.dirty[key] = struct{}{}
}

// flush pushes pending frequency changes into the index. The pair being
// merged is skipped; it is dropped once all of its sites are processed.
func (m *Merger) flush(merging PairKey) error {
	for key := range m.dirty {
		if key == merging {
			continue
		}

		switch f := m.pairs.freq[key]; {
		case f < 0:
			return errs.Training("pair (%d, %d) frequency underflow: %d", key.Left, key.Right, f)
		case f == 0:
			delete(m.pairs.freq, key)
			delete(m.pairs.occ, key)
			m.index.Remove(key)
		default:
			m.index.Update(key, uint64(f))
		}
	}

	clear(m.dirty)

	return nil
}

// Train learns merges until the budget is spent or the frequency floor is
// reached, checking ctx between merges.
func (m *Merger) Train(ctx context.Context) (*Model, error) {
	start := time.Now()

	m.logger.Info("bpe training started",
		"target_vocab_size", m.opts.TargetVocabSize,
		"merge_budget", m.budget,
		"min_pair_frequency", m.opts.MinPairFrequency,
		"words", m.store.Words(),
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mg, ok, err := m.Step()
		if err != nil {
			return nil, err
		}

		if !ok {
			break
		}

		m.logger.Debug("merge", "n", len(m.record), "left", mg.Pair.Left, "right", mg.Pair.Right, "id", mg.ID)
	}

	m.logger.Info("bpe training finished",
		"merges", len(m.record),
		"vocab_size", BaseVocabSize+len(m.specials)+len(m.record),
		"elapsed", time.Since(start).String(),
	)

	return m.Model(), nil
}

// Model returns the model learned so far.
func (m *Merger) Model() *Model {
	return &Model{
		Pattern:  m.opts.Pattern,
		Specials: slices.Clone(m.specials),
		Merges:   slices.Clone(m.record),
	}
}

// Train is a convenience wrapper that builds a Merger and runs it to
// completion.
func Train(ctx context.Context, words []corpus.Word, opts Options) (*Model, error) {
	m, err := NewMerger(ctx, words, opts)
	if err != nil {
		return nil, err
	}

	return m.Train(ctx)
}
