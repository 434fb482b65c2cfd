package unigram

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/go-shredword/internal/corpus"
	"github.com/example/go-shredword/internal/errs"
	"github.com/example/go-shredword/internal/testutil"
)

func smallOptions(target, iterations int) Options {
	opts := DefaultOptions()
	opts.TargetVocabSize = target
	opts.NumIterations = iterations

	return opts
}

func train(t *testing.T, lines []string, opts Options) (*Trainer, []Piece) {
	t.Helper()

	tr, err := NewTrainer(opts)
	require.NoError(t, err)

	final, err := tr.Train(context.Background(), lines)
	require.NoError(t, err)

	return tr, final
}

func requireCharacters(t *testing.T, tr *Trainer, final []Piece) {
	t.Helper()

	have := make(map[string]bool, len(final))
	for _, p := range final {
		have[p.Token] = true
	}

	for _, r := range tr.Characters() {
		require.True(t, have[string(r)], "character %q missing from final vocabulary", r)
	}
}

func TestTrainSmallCorpusIsDeterministic(t *testing.T) {
	path := testutil.WriteCorpus(t, testutil.SmallUnigramCorpus)
	dir := t.TempDir()

	for _, format := range []Format{FormatText, FormatBinary} {
		var outputs [][]byte

		for run := range 2 {
			lines, err := corpus.ReadLines(path)
			require.NoError(t, err)

			tr, final := train(t, lines, smallOptions(30, 2))
			require.LessOrEqual(t, len(final), 30)
			requireCharacters(t, tr, final)

			out := filepath.Join(dir, string(format), fmt.Sprintf("run%d.model", run))
			require.NoError(t, Save(out, final, format))

			data, err := os.ReadFile(out)
			require.NoError(t, err)
			outputs = append(outputs, data)
		}

		require.True(t, bytes.Equal(outputs[0], outputs[1]), "%s outputs differ", format)
	}
}

func TestTrainRespectsVocabBound(t *testing.T) {
	opts := smallOptions(60, 6)
	opts.SeedSize = 5000

	tr, final := train(t, testutil.SampleSentences, opts)

	require.LessOrEqual(t, len(final), 60)
	require.True(t, tr.State().Done())
	requireCharacters(t, tr, final)

	for i := 1; i < len(final); i++ {
		require.GreaterOrEqual(t, final[i-1].Score, final[i].Score, "final vocabulary must be sorted by score")
	}
}

func TestTrainWithPruningIsDeterministic(t *testing.T) {
	opts := smallOptions(80, 4)
	opts.Seed = 7

	_, a := train(t, testutil.SampleSentences, opts)
	_, b := train(t, testutil.SampleSentences, opts)

	require.Equal(t, a, b)
}

func TestStepPrunesAtMostReductionRatio(t *testing.T) {
	opts := smallOptions(10, 3)

	tr, err := NewTrainer(opts)
	require.NoError(t, err)
	require.NoError(t, tr.Preprocess(testutil.SampleSentences))
	require.NoError(t, tr.BuildSeed())

	before := tr.Vocab().Len()
	require.Greater(t, before, 10)

	require.NoError(t, tr.Step())
	after := tr.Vocab().Len()

	require.Less(t, after, before)
	require.GreaterOrEqual(t, after, max(10, int(float64(before)*opts.ReductionRatio)))
	require.Equal(t, 1, tr.Iteration())

	for _, r := range tr.Characters() {
		require.True(t, tr.Vocab().Contains(string(r)), "pruning removed character %q", r)
	}
}

func TestTrainStates(t *testing.T) {
	tr, err := NewTrainer(smallOptions(30, 2))
	require.NoError(t, err)
	require.Equal(t, Uninitialized, tr.State())

	require.ErrorIs(t, tr.BuildSeed(), errs.ErrTraining)
	require.ErrorIs(t, tr.Step(), errs.ErrTraining)

	require.NoError(t, tr.Preprocess(testutil.SmallUnigramCorpus))
	require.Equal(t, Preprocessed, tr.State())
	require.ErrorIs(t, tr.Preprocess(testutil.SmallUnigramCorpus), errs.ErrTraining)

	require.NoError(t, tr.BuildSeed())
	require.Equal(t, SeedBuilt, tr.State())

	require.NoError(t, tr.Step())
	require.Equal(t, Training, tr.State())

	require.NoError(t, tr.Step())
	require.True(t, tr.State().Done())
	require.Len(t, tr.Losses(), 2)
}

func TestTrainZeroIterationsIsExhausted(t *testing.T) {
	tr, final := train(t, testutil.SmallUnigramCorpus, smallOptions(30, 0))

	require.Equal(t, Exhausted, tr.State())
	require.NotEmpty(t, final)
	requireCharacters(t, tr, final)
}

func TestTrainConverges(t *testing.T) {
	opts := smallOptions(1000, 10)
	opts.ConvergenceEpsilon = 1e9

	tr, final := train(t, testutil.SmallUnigramCorpus, opts)

	require.Equal(t, Converged, tr.State())
	require.Equal(t, 1, tr.Iteration())
	require.NotEmpty(t, final)
}

func TestTrainEmptyCorpus(t *testing.T) {
	tr, err := NewTrainer(smallOptions(30, 2))
	require.NoError(t, err)

	_, err = tr.Train(context.Background(), []string{"", "   ", "\t"})
	require.ErrorIs(t, err, errs.ErrCorpus)
	require.Equal(t, Preprocessed, tr.State())
}

func TestTrainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr, err := NewTrainer(smallOptions(30, 2))
	require.NoError(t, err)

	_, err = tr.Train(ctx, testutil.SmallUnigramCorpus)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{name: "zero target", modify: func(o *Options) { o.TargetVocabSize = 0 }},
		{name: "coverage above one", modify: func(o *Options) { o.CharacterCoverage = 1.5 }},
		{name: "zero coverage", modify: func(o *Options) { o.CharacterCoverage = 0 }},
		{name: "zero subword length", modify: func(o *Options) { o.MaxSubwordLength = 0 }},
		{name: "segment shorter than subword", modify: func(o *Options) { o.MaxSegmentLength = 4; o.MaxSubwordLength = 8 }},
		{name: "zero seed size", modify: func(o *Options) { o.SeedSize = 0 }},
		{name: "negative iterations", modify: func(o *Options) { o.NumIterations = -1 }},
		{name: "ratio of one", modify: func(o *Options) { o.ReductionRatio = 1 }},
		{name: "negative epsilon", modify: func(o *Options) { o.ConvergenceEpsilon = -1 }},
		{name: "zero cache", modify: func(o *Options) { o.LossCacheSize = 0 }},
	}

	require.NoError(t, DefaultOptions().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)

			_, err := NewTrainer(opts)
			require.ErrorIs(t, err, errs.ErrConfig)
		})
	}
}
