package config

import (
	"fmt"
	"strings"
)

const (
	AlgorithmBPE     = "bpe"
	AlgorithmUnigram = "unigram"
)

// NormalizeAlgorithm canonicalizes a training algorithm name. Empty input
// selects BPE.
func NormalizeAlgorithm(raw string) (string, error) {
	algo := strings.ToLower(strings.TrimSpace(raw))
	if algo == "" {
		algo = AlgorithmBPE
	}
	switch algo {
	case AlgorithmBPE, AlgorithmUnigram:
		return algo, nil
	case "byte-pair", "bytepair":
		return AlgorithmBPE, nil
	case "unigram-lm", "sentencepiece":
		return AlgorithmUnigram, nil
	default:
		return "", fmt.Errorf(
			"invalid algorithm %q (expected %s|%s)",
			raw,
			AlgorithmBPE,
			AlgorithmUnigram,
		)
	}
}
