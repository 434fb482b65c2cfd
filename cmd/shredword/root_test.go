package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"

	"github.com/example/go-shredword/internal/config"
	"github.com/example/go-shredword/internal/testutil"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))

	err := root.Execute()

	return out.String(), err
}

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"bpe", "unigram", "doctor", "bench", "compare"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentConfigFlag(t *testing.T) {
	root := NewRootCmd()
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("expected --config persistent flag to be registered")
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		setupLogger(level)
	}
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(_ *testing.T) {
	// Should not panic on invalid level.
	setupLogger("not-a-level")
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{}

	_, err := requireConfig()
	if err == nil {
		t.Fatal("expected error when config is not loaded")
	}
}

func TestRequireConfig_SucceedsWhenLoaded(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{
		Paths: config.PathsConfig{OutputDir: "/some/out"},
	}

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig returned unexpected error: %v", err)
	}

	if got.Paths.OutputDir != "/some/out" {
		t.Errorf("unexpected OutputDir: %q", got.Paths.OutputDir)
	}
}

func TestCorpusPath(t *testing.T) {
	cfg := config.Config{Paths: config.PathsConfig{Corpus: "configured.txt"}}

	if got, _ := corpusPath(cfg, []string{"arg.txt"}); got != "arg.txt" {
		t.Errorf("positional argument should win, got %q", got)
	}

	if got, _ := corpusPath(cfg, nil); got != "configured.txt" {
		t.Errorf("configured corpus should be used, got %q", got)
	}

	if _, err := corpusPath(config.Config{}, nil); err == nil {
		t.Error("expected error without any corpus")
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs("104, 105\t256 -1")
	if err != nil {
		t.Fatalf("parseIDs: %v", err)
	}

	want := []int32{104, 105, 256, -1}
	if len(ids) != len(want) {
		t.Fatalf("parseIDs = %v; want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("parseIDs = %v; want %v", ids, want)
		}
	}

	if _, err := parseIDs("12 x"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

// ---------------------------------------------------------------------------
// end to end
// ---------------------------------------------------------------------------

func TestBPETrainEncodeDecode(t *testing.T) {
	corpus := testutil.WriteCorpus(t, testutil.RepeatLines(testutil.SampleSentences, 20))
	dir := t.TempDir()

	out, err := execute(t, "", "bpe", "train", corpus, "--out", dir, "--bpe-target-vocab-size", "300")
	if err != nil {
		t.Fatalf("bpe train: %v", err)
	}
	if !strings.Contains(out, "merges: ") {
		t.Errorf("train output missing merge count:\n%s", out)
	}

	model := filepath.Join(dir, "bpe.model")
	for _, p := range []string{model, filepath.Join(dir, "bpe.vocab")} {
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Fatalf("expected non-empty %s: %v", p, err)
		}
	}

	const text = "The quick brown fox, 2024!"

	encoded, err := execute(t, "", "bpe", "encode", "--model", model, "--text", text)
	if err != nil {
		t.Fatalf("bpe encode: %v", err)
	}

	ids := strings.Fields(encoded)
	if len(ids) == 0 || len(ids) >= len(text) {
		t.Errorf("expected merges to compress %d bytes, got %d ids", len(text), len(ids))
	}

	decoded, err := execute(t, "", append([]string{"bpe", "decode", "--model", model}, ids...)...)
	if err != nil {
		t.Fatalf("bpe decode: %v", err)
	}
	if got := strings.TrimSuffix(decoded, "\n"); got != text {
		t.Errorf("decode(encode(%q)) = %q", text, got)
	}

	// stdin input, one line per text.
	encoded, err = execute(t, "low\nlower\n", "bpe", "encode", "--model", model)
	if err != nil {
		t.Fatalf("bpe encode from stdin: %v", err)
	}
	if lines := strings.Split(strings.TrimSuffix(encoded, "\n"), "\n"); len(lines) != 2 {
		t.Errorf("expected two output lines, got %q", encoded)
	}

	if _, err := execute(t, "", "bpe", "decode", "--model", model, "999999"); err == nil {
		t.Error("expected decode error for unknown id")
	}
}

func TestBPETrainMissingCorpus(t *testing.T) {
	_, err := execute(t, "", "bpe", "train", filepath.Join(t.TempDir(), "missing.txt"), "--out", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "open corpus") {
		t.Errorf("expected corpus error, got %v", err)
	}
}

func TestBPETrainRejectsSmallTarget(t *testing.T) {
	corpus := testutil.WriteCorpus(t, testutil.SmallUnigramCorpus)

	_, err := execute(t, "", "bpe", "train", corpus, "--out", t.TempDir(), "--bpe-target-vocab-size", "100")
	if err == nil {
		t.Error("expected config error for a target below 256")
	}
}

func TestUnigramTrainSegment(t *testing.T) {
	corpus := testutil.WriteCorpus(t, testutil.SmallUnigramCorpus)
	dir := t.TempDir()

	for _, format := range []string{"text", "binary"} {
		out, err := execute(t, "", "unigram", "train", corpus, "--out", dir, "--name", format,
			"--unigram-target-vocab-size", "30", "--unigram-num-iterations", "2", "--unigram-format", format)
		if err != nil {
			t.Fatalf("unigram train (%s): %v", format, err)
		}
		if !strings.Contains(out, "vocab size: ") {
			t.Errorf("train output missing vocab size:\n%s", out)
		}

		vocab := filepath.Join(dir, format+".vocab")
		seg, err := execute(t, "", "unigram", "segment", "--vocab", vocab, "--text", "lower newer")
		if err != nil {
			t.Fatalf("unigram segment (%s): %v", format, err)
		}

		joined := strings.ReplaceAll(strings.TrimSuffix(seg, "\n"), " ", "")
		if joined != "▁lower▁newer" {
			t.Errorf("segments of %q join to %q", "lower newer", joined)
		}
	}
}

func TestDoctorCommand(t *testing.T) {
	corpus := testutil.WriteCorpus(t, testutil.SmallUnigramCorpus)

	out, err := execute(t, "", "doctor", corpus, "--out", t.TempDir())
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if !strings.Contains(out, "doctor checks passed") {
		t.Errorf("unexpected doctor output:\n%s", out)
	}

	_, err = execute(t, "", "doctor", filepath.Join(t.TempDir(), "missing.txt"), "--out", t.TempDir())
	if err == nil {
		t.Error("expected doctor to fail for a missing corpus")
	}
}

func TestBenchCommand(t *testing.T) {
	corpus := testutil.WriteCorpus(t, testutil.RepeatLines(testutil.SampleSentences, 5))

	out, err := execute(t, "", "bench", corpus, "--runs", "2", "--format", "json", "--bpe-target-vocab-size", "280")
	if err != nil {
		t.Fatalf("bench: %v", err)
	}

	var report struct {
		Runs []struct {
			Tokens int `json:"tokens"`
		} `json:"runs"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("bench output is not JSON: %v\n%s", err, out)
	}
	if len(report.Runs) != 2 || report.Runs[0].Tokens == 0 {
		t.Errorf("unexpected bench report: %+v", report)
	}

	_, err = execute(t, "", "bench", corpus, "--algorithm", "unigram", "--runs", "1", "--max-mean", "1ns",
		"--unigram-target-vocab-size", "60", "--unigram-num-iterations", "1")
	if err == nil || !strings.Contains(err.Error(), "exceeds limit") {
		t.Errorf("expected max-mean gate to fail, got %v", err)
	}

	if _, err := execute(t, "", "bench", corpus, "--algorithm", "wordpiece"); err == nil {
		t.Error("expected error for an unknown algorithm")
	}
}

func TestCompareCommand(t *testing.T) {
	corpus := testutil.WriteCorpus(t, testutil.SampleSentences)
	dir := t.TempDir()

	if _, err := execute(t, "", "bpe", "train", corpus, "--out", dir, "--bpe-target-vocab-size", "300"); err != nil {
		t.Fatalf("bpe train: %v", err)
	}

	if _, err := execute(t, "", "unigram", "train", corpus, "--out", dir,
		"--unigram-target-vocab-size", "60", "--unigram-num-iterations", "2"); err != nil {
		t.Fatalf("unigram train: %v", err)
	}

	out, err := execute(t, "", "compare", corpus,
		"--bpe-model", filepath.Join(dir, "bpe.model"),
		"--unigram-vocab", filepath.Join(dir, "unigram.vocab"))
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	for _, want := range []string{"Bytes/Token", "bpe", "unigram"} {
		if !strings.Contains(out, want) {
			t.Errorf("compare output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "", "compare", corpus); err == nil {
		t.Error("expected error without any model")
	}
}

func TestUnigramImportCommand(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "ref.model")
	writeSentencePieceModel(t, model)

	out, err := execute(t, "", "unigram", "import", "--spm", model, "--out", dir, "--name", "ref")
	if err != nil {
		t.Fatalf("unigram import: %v", err)
	}
	if !strings.Contains(out, "pieces: 4") {
		t.Errorf("import output:\n%s", out)
	}

	seg, err := execute(t, "", "unigram", "segment", "--vocab", filepath.Join(dir, "ref.vocab"), "--text", "ab")
	if err != nil {
		t.Fatalf("unigram segment: %v", err)
	}
	if got := strings.TrimSpace(seg); got != "▁ab" {
		t.Errorf("segment = %q, want %q", got, "▁ab")
	}

	if _, err := execute(t, "", "unigram", "import", "--spm", filepath.Join(dir, "missing.model"), "--out", dir); err == nil {
		t.Error("expected error for a missing model")
	}
}

func writeSentencePieceModel(t *testing.T, path string) {
	t.Helper()

	piece := func(p string, score float32, typ gosp.ModelProto_SentencePiece_Type) *gosp.ModelProto_SentencePiece {
		return &gosp.ModelProto_SentencePiece{Piece: proto.String(p), Score: proto.Float32(score), Type: typ.Enum()}
	}

	data, err := proto.Marshal(&gosp.ModelProto{
		Pieces: []*gosp.ModelProto_SentencePiece{
			piece("<unk>", 0, gosp.ModelProto_SentencePiece_UNKNOWN),
			piece("▁ab", -1, gosp.ModelProto_SentencePiece_NORMAL),
			piece("▁", -3, gosp.ModelProto_SentencePiece_NORMAL),
			piece("a", -4, gosp.ModelProto_SentencePiece_NORMAL),
			piece("b", -4, gosp.ModelProto_SentencePiece_NORMAL),
		},
	})
	if err != nil {
		t.Fatalf("marshal model: %v", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
}
