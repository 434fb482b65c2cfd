package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-shredword/internal/bpe"
	"github.com/example/go-shredword/internal/corpus"
	"github.com/example/go-shredword/internal/errs"
	"github.com/example/go-shredword/internal/unigram"
)

type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	Paths    PathsConfig   `mapstructure:"paths"`
	BPE      BPEConfig     `mapstructure:"bpe"`
	Unigram  UnigramConfig `mapstructure:"unigram"`
}

type PathsConfig struct {
	Corpus    string `mapstructure:"corpus"`
	OutputDir string `mapstructure:"output_dir"`
}

type BPEConfig struct {
	TargetVocabSize        int      `mapstructure:"target_vocab_size"`
	MinPairFrequency       uint64   `mapstructure:"min_pair_frequency"`
	Pattern                string   `mapstructure:"pattern"`
	SpecialTokens          []string `mapstructure:"special_tokens"`
	Workers                int      `mapstructure:"workers"`
	MaxOccurrencesPerMerge int      `mapstructure:"max_occurrences_per_merge"`
}

type UnigramConfig struct {
	TargetVocabSize    int     `mapstructure:"target_vocab_size"`
	CharacterCoverage  float64 `mapstructure:"character_coverage"`
	MaxSubwordLength   int     `mapstructure:"max_subword_length"`
	MaxSegmentLength   int     `mapstructure:"max_segment_length"`
	SeedSize           int     `mapstructure:"seed_size"`
	NumIterations      int     `mapstructure:"num_iterations"`
	ReductionRatio     float64 `mapstructure:"reduction_ratio"`
	ConvergenceEpsilon float64 `mapstructure:"convergence_epsilon"`
	Lowercase          bool    `mapstructure:"lowercase"`
	Seed               uint64  `mapstructure:"seed"`
	LossCacheSize      int     `mapstructure:"loss_cache_size"`
	Format             string  `mapstructure:"format"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	u := unigram.DefaultOptions()

	return Config{
		LogLevel: "info",
		Paths: PathsConfig{
			Corpus:    "",
			OutputDir: "out",
		},
		BPE: BPEConfig{
			TargetVocabSize:        8192,
			MinPairFrequency:       2,
			Pattern:                corpus.DefaultPattern,
			SpecialTokens:          []string{},
			Workers:                1,
			MaxOccurrencesPerMerge: bpe.DefaultMaxOccurrencesPerMerge,
		},
		Unigram: UnigramConfig{
			TargetVocabSize:    u.TargetVocabSize,
			CharacterCoverage:  u.CharacterCoverage,
			MaxSubwordLength:   u.MaxSubwordLength,
			MaxSegmentLength:   u.MaxSegmentLength,
			SeedSize:           u.SeedSize,
			NumIterations:      u.NumIterations,
			ReductionRatio:     u.ReductionRatio,
			ConvergenceEpsilon: u.ConvergenceEpsilon,
			Lowercase:          false,
			Seed:               0,
			LossCacheSize:      u.LossCacheSize,
			Format:             string(unigram.FormatText),
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("paths-corpus", defaults.Paths.Corpus, "Training corpus, one text per line")
	fs.String("corpus", defaults.Paths.Corpus, "Training corpus (alias for --paths-corpus)")
	fs.String("paths-output-dir", defaults.Paths.OutputDir, "Directory for model and vocab files")
	fs.String("out", defaults.Paths.OutputDir, "Output directory (alias for --paths-output-dir)")

	fs.Int("bpe-target-vocab-size", defaults.BPE.TargetVocabSize, "BPE vocabulary size including the 256 byte tokens")
	fs.Uint64("bpe-min-pair-frequency", defaults.BPE.MinPairFrequency, "Stop merging below this pair frequency")
	fs.String("bpe-pattern", defaults.BPE.Pattern, "Pre-tokenizer regular expression")
	fs.StringSlice("bpe-special-tokens", defaults.BPE.SpecialTokens, "Reserved special tokens (comma separated)")
	fs.Int("bpe-workers", defaults.BPE.Workers, "Goroutines for the initial pair count")
	fs.Int("bpe-max-occurrences-per-merge", defaults.BPE.MaxOccurrencesPerMerge, "Merge sites processed between queue flushes")

	fs.Int("unigram-target-vocab-size", defaults.Unigram.TargetVocabSize, "Unigram vocabulary size")
	fs.Float64("unigram-character-coverage", defaults.Unigram.CharacterCoverage, "Fraction of character occurrences to keep")
	fs.Int("unigram-max-subword-length", defaults.Unigram.MaxSubwordLength, "Longest seed candidate in characters")
	fs.Int("unigram-max-segment-length", defaults.Unigram.MaxSegmentLength, "Viterbi lookahead window in characters")
	fs.Int("unigram-seed-size", defaults.Unigram.SeedSize, "Seed vocabulary bound")
	fs.Int("unigram-num-iterations", defaults.Unigram.NumIterations, "Maximum EM iterations")
	fs.Float64("unigram-reduction-ratio", defaults.Unigram.ReductionRatio, "Fraction of the vocabulary kept per pruning step")
	fs.Float64("unigram-convergence-epsilon", defaults.Unigram.ConvergenceEpsilon, "Stop when the loss changes less than this")
	fs.Bool("unigram-lowercase", defaults.Unigram.Lowercase, "Lowercase texts during cleaning")
	fs.Uint64("unigram-seed", defaults.Unigram.Seed, "Seed for the pruning shuffle")
	fs.Int("unigram-loss-cache-size", defaults.Unigram.LossCacheSize, "Entries in the segmentation loss cache")
	fs.String("unigram-format", defaults.Unigram.Format, "Vocab file format (text|binary)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	v.SetEnvPrefix("SHREDWORD")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("paths.corpus", "SHREDWORD_CORPUS", "SHREDWORD_PATHS_CORPUS"); err != nil {
		return Config{}, fmt.Errorf("bind corpus env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("shredword")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("paths.corpus", c.Paths.Corpus)
	v.SetDefault("paths.output_dir", c.Paths.OutputDir)
	v.SetDefault("bpe.target_vocab_size", c.BPE.TargetVocabSize)
	v.SetDefault("bpe.min_pair_frequency", c.BPE.MinPairFrequency)
	v.SetDefault("bpe.pattern", c.BPE.Pattern)
	v.SetDefault("bpe.special_tokens", c.BPE.SpecialTokens)
	v.SetDefault("bpe.workers", c.BPE.Workers)
	v.SetDefault("bpe.max_occurrences_per_merge", c.BPE.MaxOccurrencesPerMerge)
	v.SetDefault("unigram.target_vocab_size", c.Unigram.TargetVocabSize)
	v.SetDefault("unigram.character_coverage", c.Unigram.CharacterCoverage)
	v.SetDefault("unigram.max_subword_length", c.Unigram.MaxSubwordLength)
	v.SetDefault("unigram.max_segment_length", c.Unigram.MaxSegmentLength)
	v.SetDefault("unigram.seed_size", c.Unigram.SeedSize)
	v.SetDefault("unigram.num_iterations", c.Unigram.NumIterations)
	v.SetDefault("unigram.reduction_ratio", c.Unigram.ReductionRatio)
	v.SetDefault("unigram.convergence_epsilon", c.Unigram.ConvergenceEpsilon)
	v.SetDefault("unigram.lowercase", c.Unigram.Lowercase)
	v.SetDefault("unigram.seed", c.Unigram.Seed)
	v.SetDefault("unigram.loss_cache_size", c.Unigram.LossCacheSize)
	v.SetDefault("unigram.format", c.Unigram.Format)
}

// flagKeys maps flag names onto config keys. Binding under the nested key
// keeps config file values visible when the flag is left unset.
var flagKeys = map[string]string{
	"log-level":                     "log_level",
	"paths-corpus":                  "paths.corpus",
	"paths-output-dir":              "paths.output_dir",
	"bpe-target-vocab-size":         "bpe.target_vocab_size",
	"bpe-min-pair-frequency":        "bpe.min_pair_frequency",
	"bpe-pattern":                   "bpe.pattern",
	"bpe-special-tokens":            "bpe.special_tokens",
	"bpe-workers":                   "bpe.workers",
	"bpe-max-occurrences-per-merge": "bpe.max_occurrences_per_merge",
	"unigram-target-vocab-size":     "unigram.target_vocab_size",
	"unigram-character-coverage":    "unigram.character_coverage",
	"unigram-max-subword-length":    "unigram.max_subword_length",
	"unigram-max-segment-length":    "unigram.max_segment_length",
	"unigram-seed-size":             "unigram.seed_size",
	"unigram-num-iterations":        "unigram.num_iterations",
	"unigram-reduction-ratio":       "unigram.reduction_ratio",
	"unigram-convergence-epsilon":   "unigram.convergence_epsilon",
	"unigram-lowercase":             "unigram.lowercase",
	"unigram-seed":                  "unigram.seed",
	"unigram-loss-cache-size":       "unigram.loss_cache_size",
	"unigram-format":                "unigram.format",
}

// flagAliases are short spellings that win over their long form when set.
var flagAliases = map[string]string{
	"corpus": "paths-corpus",
	"out":    "paths-output-dir",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}

		if alias, ok := aliasFor(fs, name); ok {
			f = alias
		}

		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

func aliasFor(fs *pflag.FlagSet, name string) (*pflag.Flag, bool) {
	for alias, target := range flagAliases {
		if target != name {
			continue
		}

		if f := fs.Lookup(alias); f != nil && f.Changed {
			return f, true
		}
	}

	return nil, false
}

// Validate checks the options shared by every command. Engine specific
// limits are enforced again by the engines themselves.
func (c Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return errs.Config("%v", err)
	}

	if _, err := c.BPEOptions(nil); err != nil {
		return err
	}

	if _, err := c.UnigramOptions(nil); err != nil {
		return err
	}

	if _, err := unigram.ParseFormat(c.Unigram.Format); err != nil {
		return err
	}

	return nil
}

// BPEOptions converts the bpe section into merger options.
func (c Config) BPEOptions(logger *slog.Logger) (bpe.Options, error) {
	b := c.BPE
	switch {
	case b.TargetVocabSize < bpe.BaseVocabSize:
		return bpe.Options{}, errs.Config("bpe.target_vocab_size %d is below %d", b.TargetVocabSize, bpe.BaseVocabSize)
	case b.Workers < 0:
		return bpe.Options{}, errs.Config("bpe.workers must not be negative, got %d", b.Workers)
	case b.MaxOccurrencesPerMerge < 0:
		return bpe.Options{}, errs.Config("bpe.max_occurrences_per_merge must not be negative, got %d", b.MaxOccurrencesPerMerge)
	}

	if _, err := bpe.NewSpecials(b.SpecialTokens); err != nil {
		return bpe.Options{}, errs.Config("bpe.special_tokens: %w", err)
	}

	return bpe.Options{
		TargetVocabSize:        b.TargetVocabSize,
		MinPairFrequency:       b.MinPairFrequency,
		Pattern:                b.Pattern,
		SpecialTokens:          b.SpecialTokens,
		Workers:                b.Workers,
		MaxOccurrencesPerMerge: b.MaxOccurrencesPerMerge,
		Logger:                 logger,
	}, nil
}

// UnigramOptions converts the unigram section into trainer options.
func (c Config) UnigramOptions(logger *slog.Logger) (unigram.Options, error) {
	u := c.Unigram
	opts := unigram.Options{
		TargetVocabSize:    u.TargetVocabSize,
		CharacterCoverage:  u.CharacterCoverage,
		MaxSubwordLength:   u.MaxSubwordLength,
		MaxSegmentLength:   u.MaxSegmentLength,
		SeedSize:           u.SeedSize,
		NumIterations:      u.NumIterations,
		ReductionRatio:     u.ReductionRatio,
		ConvergenceEpsilon: u.ConvergenceEpsilon,
		Lowercase:          u.Lowercase,
		Seed:               u.Seed,
		LossCacheSize:      u.LossCacheSize,
		Logger:             logger,
	}

	if err := opts.Validate(); err != nil {
		return unigram.Options{}, err
	}

	return opts, nil
}

// ParseLogLevel maps a level name onto slog. Unknown names yield info and
// an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}
