package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-shredword/internal/bench"
	"github.com/example/go-shredword/internal/bpe"
	"github.com/example/go-shredword/internal/config"
	"github.com/example/go-shredword/internal/corpus"
	"github.com/example/go-shredword/internal/unigram"
)

func newBenchCmd() *cobra.Command {
	var (
		algorithm  string
		runs       int
		format     string
		maxMean    time.Duration
		cpuprofile string
	)

	cmd := &cobra.Command{
		Use:   "bench [corpus]",
		Short: "Time repeated training runs on a corpus",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			algo, err := config.NormalizeAlgorithm(algorithm)
			if err != nil {
				return err
			}
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			path, err := corpusPath(cfg, args)
			if err != nil {
				return err
			}

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat corpus: %w", err)
			}

			var fn bench.RunFunc
			switch algo {
			case config.AlgorithmUnigram:
				fn, err = unigramBenchRun(cfg, path)
			default:
				fn, err = bpeBenchRun(cfg, path)
			}
			if err != nil {
				return err
			}

			if cpuprofile != "" {
				stop, err := startCPUProfile(cpuprofile)
				if err != nil {
					return err
				}
				defer stop()
			}

			results, err := bench.Run(cmd.Context(), runs, info.Size(), fn)
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results))
			writeBenchReport(cmd.OutOrStdout(), format, results, stats)

			return bench.CheckMaxMean(stats.Mean, maxMean)
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", "bpe", "Training algorithm: bpe|unigram")
	cmd.Flags().IntVar(&runs, "runs", 3, "Number of training runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().DurationVar(&maxMean, "max-mean", 0, "Exit non-zero if the mean run time exceeds this (0 = disabled)")
	cmd.Flags().StringVar(&cpuprofile, "cpuprofile", "", "Write a CPU profile labelled by stage")

	return cmd
}

// Bench runs log at warn so per-merge progress does not skew timings.
func benchLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func bpeBenchRun(cfg config.Config, path string) (bench.RunFunc, error) {
	opts, err := cfg.BPEOptions(benchLogger())
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, t *bench.Timer) (int, error) {
		var words []corpus.Word
		err := t.Stage(ctx, "load", func(context.Context) error {
			var err error
			words, err = corpus.LoadWords(path, opts.Pattern)
			return err
		})
		if err != nil {
			return 0, err
		}

		var model *bpe.Model
		err = t.Stage(ctx, "train", func(ctx context.Context) error {
			var err error
			model, err = bpe.Train(ctx, words, opts)
			return err
		})
		if err != nil {
			return 0, err
		}

		return model.VocabSize(), nil
	}, nil
}

func unigramBenchRun(cfg config.Config, path string) (bench.RunFunc, error) {
	opts, err := cfg.UnigramOptions(benchLogger())
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, t *bench.Timer) (int, error) {
		var lines []string
		err := t.Stage(ctx, "load", func(context.Context) error {
			var err error
			lines, err = corpus.ReadLines(path)
			return err
		})
		if err != nil {
			return 0, err
		}

		var pieces []unigram.Piece
		err = t.Stage(ctx, "train", func(ctx context.Context) error {
			tr, err := unigram.NewTrainer(opts)
			if err != nil {
				return err
			}
			pieces, err = tr.Train(ctx, lines)
			return err
		})
		if err != nil {
			return 0, err
		}

		return len(pieces), nil
	}, nil
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpuprofile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpuprofile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

func writeBenchReport(w io.Writer, format string, results []bench.RunResult, stats bench.Stats) {
	switch format {
	case "json":
		bench.FormatJSON(results, stats, w)
	default:
		bench.FormatTable(results, stats, w)
	}
}
