// Package doctor provides preflight checks for shredword training runs.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/example/go-shredword/internal/corpus"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Config holds the inputs for each doctor check.
type Config struct {
	// CorpusPath is the training corpus. Empty skips the corpus check.
	CorpusPath string
	// OutputDir must exist or be creatable, and writable.
	OutputDir string
	// Pattern is the BPE pre-tokenizer pattern. Empty means the default.
	Pattern string
	// Validate reports configuration errors. Nil skips the check.
	Validate func() error
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- configuration ----------------------------------------------------
	if cfg.Validate == nil {
		fmt.Fprintf(w, "%s config: skipped\n", PassMark)
	} else if err := cfg.Validate(); err != nil {
		res.fail(fmt.Sprintf("config: %v", err))
		fmt.Fprintf(w, "%s config: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s config: ok\n", PassMark)
	}

	// ---- pre-tokenizer pattern --------------------------------------------
	if sp, err := corpus.NewSplitter(cfg.Pattern); err != nil {
		res.fail(fmt.Sprintf("pattern: %v", err))
		fmt.Fprintf(w, "%s pattern: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s pattern: compiles (%d bytes)\n", PassMark, len(sp.Pattern()))
	}

	// ---- corpus -----------------------------------------------------------
	if cfg.CorpusPath == "" {
		fmt.Fprintf(w, "%s corpus: skipped (no path configured)\n", PassMark)
	} else if lines, err := checkCorpus(cfg.CorpusPath); err != nil {
		res.fail(fmt.Sprintf("corpus %q: %v", cfg.CorpusPath, err))
		fmt.Fprintf(w, "%s corpus %s: %v\n", FailMark, cfg.CorpusPath, err)
	} else {
		fmt.Fprintf(w, "%s corpus: %s (%d lines)\n", PassMark, cfg.CorpusPath, lines)
	}

	// ---- output directory -------------------------------------------------
	if err := checkOutputDir(cfg.OutputDir); err != nil {
		res.fail(fmt.Sprintf("output dir %q: %v", cfg.OutputDir, err))
		fmt.Fprintf(w, "%s output dir %s: %v\n", FailMark, cfg.OutputDir, err)
	} else {
		fmt.Fprintf(w, "%s output dir: %s\n", PassMark, cfg.OutputDir)
	}

	return res
}

// checkCorpus returns the number of non-blank lines in path.
func checkCorpus(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, errors.New("is a directory")
	}

	lines, err := corpus.ReadLines(path)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, errors.New("no non-blank lines")
	}
	return len(lines), nil
}

// checkOutputDir creates dir if needed and probes it with a temp file.
func checkOutputDir(dir string) error {
	if dir == "" {
		return errors.New("not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".shredword-doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
