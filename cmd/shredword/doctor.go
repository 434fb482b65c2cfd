package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-shredword/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor [corpus]",
		Short: "Check the corpus, output directory and configuration before training",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			corpus := cfg.Paths.Corpus
			if len(args) > 0 {
				corpus = args[0]
			}

			out := cmd.OutOrStdout()
			result := doctor.Run(doctor.Config{
				CorpusPath: corpus,
				OutputDir:  cfg.Paths.OutputDir,
				Pattern:    cfg.BPE.Pattern,
				Validate:   cfg.Validate,
			}, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	return cmd
}
