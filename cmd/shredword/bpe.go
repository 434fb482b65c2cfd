package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-shredword/internal/bpe"
	"github.com/example/go-shredword/internal/corpus"
)

func newBPECmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bpe",
		Short: "Byte-level BPE training and encoding",
	}

	cmd.AddCommand(newBPETrainCmd())
	cmd.AddCommand(newBPEEncodeCmd())
	cmd.AddCommand(newBPEDecodeCmd())

	return cmd
}

func newBPETrainCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "train [corpus]",
		Short: "Learn merges from a corpus and write <name>.model and <name>.vocab",
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

			opts, err := cfg.BPEOptions(slog.Default())
			if err != nil {
				return err
			}

			words, err := corpus.LoadWords(path, opts.Pattern)
			if err != nil {
				return err
			}

			model, err := bpe.Train(cmd.Context(), words, opts)
			if err != nil {
				return err
			}

			prefix := filepath.Join(cfg.Paths.OutputDir, name)
			if err := bpe.Save(prefix, model); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "merges: %d\nvocab size: %d\nmodel: %s.model\nvocab: %s.vocab\n",
				len(model.Merges), model.VocabSize(), prefix, prefix)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "bpe", "Output file prefix inside the output directory")

	return cmd
}

func newBPEEncodeCmd() *cobra.Command {
	var modelPath string
	var text string

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode text into token ids, one output line per input line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc, err := loadEncoder(modelPath)
			if err != nil {
				return err
			}

			lines, err := readTextLines(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, line := range lines {
				ids := enc.Encode(line)
				parts := make([]string, len(ids))
				for i, id := range ids {
					parts[i] = strconv.FormatInt(int64(id), 10)
				}
				_, _ = fmt.Fprintln(w, strings.Join(parts, " "))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Path to a .model file (required)")
	cmd.Flags().StringVar(&text, "text", "", "Text to encode (if empty, read lines from stdin)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func newBPEDecodeCmd() *cobra.Command {
	var modelPath string

	cmd := &cobra.Command{
		Use:   "decode [id...]",
		Short: "Decode token ids back into text",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := loadEncoder(modelPath)
			if err != nil {
				return err
			}

			inputs := []string{strings.Join(args, " ")}
			if len(args) == 0 {
				inputs, err = readTextLines("", cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			for _, in := range inputs {
				ids, err := parseIDs(in)
				if err != nil {
					return err
				}

				s, err := enc.Decode(ids)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(w, s)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Path to a .model file (required)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func loadEncoder(path string) (*bpe.Encoder, error) {
	model, err := bpe.LoadModel(path)
	if err != nil {
		return nil, err
	}

	return bpe.NewEncoder(model)
}

// readTextLines returns text when set, otherwise every line of r.
func readTextLines(text string, r io.Reader) ([]string, error) {
	if text != "" {
		return []string{text}, nil
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	return lines, nil
}

func parseIDs(s string) ([]int32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })

	ids := make([]int32, len(fields))
	for i, f := range fields {
		id, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", f, err)
		}
		ids[i] = int32(id)
	}

	return ids, nil
}
