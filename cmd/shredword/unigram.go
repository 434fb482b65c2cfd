package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-shredword/internal/corpus"
	textpkg "github.com/example/go-shredword/internal/text"
	"github.com/example/go-shredword/internal/tokenizer"
	"github.com/example/go-shredword/internal/unigram"
)

func newUnigramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unigram",
		Short: "Unigram language model training and segmentation",
	}

	cmd.AddCommand(newUnigramTrainCmd())
	cmd.AddCommand(newUnigramSegmentCmd())
	cmd.AddCommand(newUnigramImportCmd())

	return cmd
}

func newUnigramTrainCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "train [corpus]",
		Short: "Train a unigram vocabulary and write <name>.vocab",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			path, err := corpusPath(cfg, args)
			if err != nil {
				return err
			}

			opts, err := cfg.UnigramOptions(slog.Default())
			if err != nil {
				return err
			}

			format, err := unigram.ParseFormat(cfg.Unigram.Format)
			if err != nil {
				return err
			}

			lines, err := corpus.ReadLines(path)
			if err != nil {
				return err
			}

			tr, err := unigram.NewTrainer(opts)
			if err != nil {
				return err
			}

			pieces, err := tr.Train(cmd.Context(), lines)
			if err != nil {
				return err
			}

			out := filepath.Join(cfg.Paths.OutputDir, name+".vocab")
			if err := unigram.Save(out, pieces, format); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "state: %s\niterations: %d\nvocab size: %d\nvocab: %s (%s)\n",
				tr.State(), tr.Iteration(), len(pieces), out, format)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "unigram", "Output file prefix inside the output directory")

	return cmd
}

func newUnigramSegmentCmd() *cobra.Command {
	var vocabPath string
	var text string

	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Segment text with a trained unigram vocabulary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			pieces, err := unigram.Load(vocabPath)
			if err != nil {
				return err
			}
			vocab := unigram.NewVocabFromPieces(pieces)

			lines, err := readTextLines(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, line := range lines {
				cleaned, err := textpkg.Clean(line, textpkg.CleanOptions{Lowercase: cfg.Unigram.Lowercase})
				if errors.Is(err, textpkg.ErrEmptyText) {
					_, _ = fmt.Fprintln(w)
					continue
				}
				if err != nil {
					return err
				}

				tokens := unigram.Segment(cleaned, vocab, cfg.Unigram.MaxSegmentLength)
				_, _ = fmt.Fprintln(w, strings.Join(tokens, " "))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&vocabPath, "vocab", "", "Path to a unigram .vocab file (required)")
	cmd.Flags().StringVar(&text, "text", "", "Text to segment (if empty, read lines from stdin)")
	_ = cmd.MarkFlagRequired("vocab")

	return cmd
}

func newUnigramImportCmd() *cobra.Command {
	var spmPath string
	var name string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Convert a SentencePiece .model into a unigram vocab file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			format, err := unigram.ParseFormat(cfg.Unigram.Format)
			if err != nil {
				return err
			}

			pieces, err := tokenizer.ImportSentencePieceModel(spmPath)
			if err != nil {
				return err
			}

			unigram.SortPieces(pieces)

			out := filepath.Join(cfg.Paths.OutputDir, name+".vocab")
			if err := unigram.Save(out, pieces, format); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pieces: %d\nvocab: %s (%s)\n", len(pieces), out, format)

			return nil
		},
	}

	cmd.Flags().StringVar(&spmPath, "spm", "", "Path to a SentencePiece .model file (required)")
	cmd.Flags().StringVar(&name, "name", "imported", "Output file prefix inside the output directory")
	_ = cmd.MarkFlagRequired("spm")

	return cmd
}
