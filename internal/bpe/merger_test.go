package bpe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/go-shredword/internal/corpus"
	"github.com/example/go-shredword/internal/errs"
	"github.com/example/go-shredword/internal/testutil"
)

func sampleWords(t *testing.T, reps int) []corpus.Word {
	t.Helper()

	sp, err := corpus.NewSplitter("")
	require.NoError(t, err)

	return corpus.CountWords(testutil.RepeatLines(testutil.SampleSentences, reps), sp)
}

func TestTrainScenario(t *testing.T) {
	path := testutil.WriteCorpus(t, testutil.RepeatLines(testutil.SampleSentences, 2000))

	words, err := corpus.LoadWords(path, "")
	require.NoError(t, err)

	m, err := Train(context.Background(), words, Options{TargetVocabSize: 300, MinPairFrequency: 2})
	require.NoError(t, err)
	require.NotEmpty(t, m.Merges)
	require.Len(t, m.Merges, 300-BaseVocabSize)

	want := []PairKey{
		{'i', 'n'},
		{'e', 'n'},
		{'t', 'i'},
		{'o', 'n'},
		{256, 'g'},
		{'e', 's'},
	}
	for i, p := range want {
		require.Equal(t, p, m.Merges[i].Pair, "merge %d", i)
		require.Equal(t, int32(BaseVocabSize+i), m.Merges[i].ID)
	}

	prefix := filepath.Join(t.TempDir(), "out", "bpe")
	require.NoError(t, Save(prefix, m))

	for _, ext := range []string{".model", ".vocab"} {
		info, err := os.Stat(prefix + ext)
		require.NoError(t, err)
		require.Positive(t, info.Size())
	}
}

func TestTrainZeroMerges(t *testing.T) {
	tests := []struct {
		name    string
		reps    int
		minFreq uint64
	}{
		// The most frequent pair occurs 30 times per repetition.
		{name: "floor above maximum", reps: 2000, minFreq: 30*2000 + 1},
		{name: "floor of one thousand", reps: 20, minFreq: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Train(context.Background(), sampleWords(t, tt.reps), Options{
				TargetVocabSize:  300,
				MinPairFrequency: tt.minFreq,
			})
			require.NoError(t, err)
			require.Empty(t, m.Merges)
		})
	}
}

func TestTrainStopsAtFrequencyFloor(t *testing.T) {
	words := []corpus.Word{{Text: "abab", Count: 3}, {Text: "cd", Count: 1}}

	m, err := Train(context.Background(), words, Options{TargetVocabSize: 1000, MinPairFrequency: 2})
	require.NoError(t, err)

	// ab x6 -> X; XX x3 -> Y; cd x1 is below the floor.
	require.Equal(t, MergeRecord{
		{Pair: PairKey{'a', 'b'}, ID: 256},
		{Pair: PairKey{256, 256}, ID: 257},
	}, m.Merges)
}

func TestTrainRejectsSmallTarget(t *testing.T) {
	_, err := Train(context.Background(), sampleWords(t, 1), Options{TargetVocabSize: 255})
	require.ErrorIs(t, err, errs.ErrConfig)
}

func TestTrainRejectsEmptyCorpus(t *testing.T) {
	_, err := Train(context.Background(), nil, Options{TargetVocabSize: 300})
	require.ErrorIs(t, err, errs.ErrCorpus)

	_, err = Train(context.Background(), []corpus.Word{{Text: "", Count: 4}}, Options{TargetVocabSize: 300})
	require.ErrorIs(t, err, errs.ErrCorpus)
}

func TestTrainRejectsBadSpecials(t *testing.T) {
	_, err := Train(context.Background(), sampleWords(t, 1), Options{
		TargetVocabSize: 300,
		SpecialTokens:   []string{"<pad>", "<pad>"},
	})
	require.ErrorIs(t, err, errs.ErrConfig)
}

func TestTrainBudgetCountsSpecials(t *testing.T) {
	m, err := Train(context.Background(), sampleWords(t, 50), Options{
		TargetVocabSize:  270,
		MinPairFrequency: 2,
		SpecialTokens:    []string{"<|endoftext|>", "<pad>"},
	})
	require.NoError(t, err)
	require.Len(t, m.Merges, 270-BaseVocabSize-2)
	require.Equal(t, int32(258), m.Merges[0].ID)
	require.Equal(t, 270, m.VocabSize())

	// Only special tokens fit: no merges, not an error.
	m, err = Train(context.Background(), sampleWords(t, 50), Options{
		TargetVocabSize: 257,
		SpecialTokens:   []string{"<a>", "<b>"},
	})
	require.NoError(t, err)
	require.Empty(t, m.Merges)
}

func TestIncrementalCountsMatchRecount(t *testing.T) {
	words := sampleWords(t, 3)
	words = append(words, corpus.Word{Text: "aaaaaaa", Count: 5}, corpus.Word{Text: "abababab", Count: 2})

	m, err := NewMerger(context.Background(), words, Options{TargetVocabSize: 400, MaxOccurrencesPerMerge: 3})
	require.NoError(t, err)
	require.Equal(t, m.Store().Recount(), m.Frequencies())

	for {
		_, ok, err := m.Step()
		require.NoError(t, err)

		if !ok {
			break
		}

		require.Equal(t, m.Store().Recount(), m.Frequencies(), "after merge %d", len(m.Merges()))
	}

	require.NotEmpty(t, m.Merges())
	require.LessOrEqual(t, len(m.Merges()), m.Budget())
}

func TestTrainIsDeterministic(t *testing.T) {
	words := sampleWords(t, 10)

	base, err := Train(context.Background(), words, Options{TargetVocabSize: 400, MinPairFrequency: 2})
	require.NoError(t, err)

	variants := []Options{
		{TargetVocabSize: 400, MinPairFrequency: 2},
		{TargetVocabSize: 400, MinPairFrequency: 2, Workers: 4},
		{TargetVocabSize: 400, MinPairFrequency: 2, MaxOccurrencesPerMerge: 1},
	}

	for _, opts := range variants {
		m, err := Train(context.Background(), words, opts)
		require.NoError(t, err)
		require.Equal(t, base.Merges, m.Merges)
	}
}

func TestTrainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Train(ctx, sampleWords(t, 1), Options{TargetVocabSize: 300})
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestStoreMergeRelinks(t *testing.T) {
	s := NewStore([]corpus.Word{{Text: "abc", Count: 1}, {Text: "bc", Count: 2}})

	key := PairKey{'b', 'c'}
	right, ok := s.pairAt(1, key)
	require.True(t, ok)

	s.merge(1, right, 300)
	require.Equal(t, []int32{'a', 300}, s.Tokens(0))
	require.Equal(t, []int32{'b', 'c'}, s.Tokens(1))
	require.Equal(t, map[PairKey]uint64{{'a', 300}: 1, {'b', 'c'}: 2}, s.Recount())

	_, ok = s.pairAt(2, key)
	require.False(t, ok, "tombstoned symbol must not start a pair")
}
