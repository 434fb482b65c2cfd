package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-shredword/internal/corpus"
	textpkg "github.com/example/go-shredword/internal/text"
	"github.com/example/go-shredword/internal/tokenizer"
	"github.com/example/go-shredword/internal/unigram"
)

func newCompareCmd() *cobra.Command {
	var (
		bpeModel     string
		unigramVocab string
		spmModel     string
	)

	cmd := &cobra.Command{
		Use:   "compare [corpus]",
		Short: "Compare token counts of BPE, unigram and SentencePiece models on a corpus",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if bpeModel == "" && unigramVocab == "" && spmModel == "" {
				return errors.New("pass at least one of --bpe-model, --unigram-vocab, --spm")
			}

			path, err := corpusPath(cfg, args)
			if err != nil {
				return err
			}

			lines, err := corpus.ReadLines(path)
			if err != nil {
				return err
			}

			type entry struct {
				name string
				tok  tokenizer.Tokenizer
			}
			var entries []entry

			if bpeModel != "" {
				enc, err := loadEncoder(bpeModel)
				if err != nil {
					return err
				}
				entries = append(entries, entry{"bpe", tokenizer.NewBPETokenizer(enc)})
			}

			if unigramVocab != "" {
				pieces, err := unigram.Load(unigramVocab)
				if err != nil {
					return err
				}
				clean := textpkg.CleanOptions{Lowercase: cfg.Unigram.Lowercase}
				entries = append(entries, entry{"unigram", tokenizer.NewUnigramTokenizer(pieces, clean, cfg.Unigram.MaxSegmentLength)})
			}

			if spmModel != "" {
				sp, err := tokenizer.NewSentencePieceTokenizer(spmModel, cfg.Unigram.Lowercase)
				if err != nil {
					return err
				}
				entries = append(entries, entry{"sentencepiece", sp})
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%-14s  %8s  %10s  %10s  %11s\n", "Tokenizer", "Texts", "Bytes", "Tokens", "Bytes/Token")
			_, _ = fmt.Fprintln(w, strings.Repeat("-", 61))

			for _, e := range entries {
				s, err := tokenizer.Summarize(e.tok, lines)
				if err != nil {
					return fmt.Errorf("%s: %w", e.name, err)
				}
				_, _ = fmt.Fprintf(w, "%-14s  %8d  %10d  %10d  %11.3f\n", e.name, s.Texts, s.Bytes, s.Tokens, s.BytesPerToken())
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&bpeModel, "bpe-model", "", "Path to a BPE .model file")
	cmd.Flags().StringVar(&unigramVocab, "unigram-vocab", "", "Path to a unigram .vocab file")
	cmd.Flags().StringVar(&spmModel, "spm", "", "Path to a reference SentencePiece .model file")

	return cmd
}
