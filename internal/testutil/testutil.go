// Package testutil provides shared corpus fixtures and skip helpers for tests.
//
// Fixtures are written under t.TempDir so tests never touch the working tree.
// Skip helpers call t.Skip with a clear human-readable reason when an
// optional prerequisite is absent, so the suite stays runnable anywhere.
//
// Typical usage:
//
//	func TestTrain(t *testing.T) {
//	    path := testutil.WriteCorpus(t, testutil.RepeatLines(testutil.SampleSentences, 10))
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SampleSentences is a small English corpus about language modelling.
var SampleSentences = []string{
	"The quick brown fox jumps over the lazy dog.",
	"Machine learning is a subset of artificial intelligence.",
	"Natural language processing involves computational linguistics.",
	"Deep learning models require large amounts of training data.",
	"Tokenization is an important preprocessing step in NLP.",
	"Subword tokenization helps handle out-of-vocabulary words.",
	"Byte pair encoding and SentencePiece are popular tokenization methods.",
	"Transformer models have revolutionized natural language understanding.",
	"BERT, GPT, and T5 are examples of pre-trained language models.",
	"Fine-tuning allows adapting pre-trained models to specific tasks.",
	"The attention mechanism enables models to focus on relevant parts.",
	"Positional encoding helps models understand sequence order.",
	"Multi-head attention processes different representation subspaces.",
	"Layer normalization stabilizes training in deep networks.",
	"Dropout prevents overfitting by randomly zeroing activations.",
	"Gradient descent optimizes model parameters during training.",
	"Backpropagation computes gradients for parameter updates.",
	"Cross-entropy loss is commonly used for classification tasks.",
	"Regularization techniques prevent models from memorizing training data.",
	"Evaluation metrics measure model performance on test datasets.",
}

// SmallUnigramCorpus is a three-line corpus small enough to train a unigram
// vocabulary in a few milliseconds.
var SmallUnigramCorpus = []string{
	"low lower lowest",
	"newer wider",
	"tokenization test",
}

// RepeatLines returns lines repeated n times in order.
func RepeatLines(lines []string, n int) []string {
	out := make([]string, 0, len(lines)*n)
	for range n {
		out = append(out, lines...)
	}

	return out
}

// WriteCorpus writes lines, one per line, to a fresh file under tb.TempDir
// and returns its path.
func WriteCorpus(tb testing.TB, lines []string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "corpus.txt")

	err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
	if err != nil {
		tb.Fatalf("write corpus fixture: %v", err)
	}

	return path
}

// RequireLargeCorpus skips the test unless SHREDWORD_TEST_CORPUS names a
// readable file, and returns that path.
func RequireLargeCorpus(tb testing.TB) string {
	tb.Helper()

	path := os.Getenv("SHREDWORD_TEST_CORPUS")
	if path == "" {
		tb.Skip("large corpus not configured; set SHREDWORD_TEST_CORPUS to a text file")
		return ""
	}

	if _, err := os.Stat(path); err != nil {
		tb.Skipf("large corpus not available at SHREDWORD_TEST_CORPUS=%q: %v", path, err)
		return ""
	}

	return path
}
