// Package bench provides benchmarking primitives for the shredword bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/pprof"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and output size for a single training run.
type RunResult struct {
	Index      int
	Cold       bool // true for the first run (cold-start)
	Duration   time.Duration
	Stages     []StageTiming
	Tokens     int     // vocabulary entries produced
	Throughput float64 // corpus MB per second
}

// StageTiming is the wall time spent in one labelled stage of a run.
type StageTiming struct {
	Name     string
	Duration time.Duration
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Durations extracts the total duration of each run.
func Durations(runs []RunResult) []time.Duration {
	out := make([]time.Duration, len(runs))
	for i, r := range runs {
		out[i] = r.Duration
	}
	return out
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// Timer records stage timings for one run. Stages run under a pprof
// "stage" label so CPU profiles can be split by stage.
type Timer struct {
	stages []StageTiming
}

// Stage runs fn as the named stage and records its duration.
func (t *Timer) Stage(ctx context.Context, name string, fn func(context.Context) error) error {
	var err error
	pprof.Do(ctx, pprof.Labels("stage", name), func(ctx context.Context) {
		start := time.Now()
		err = fn(ctx)
		t.stages = append(t.stages, StageTiming{Name: name, Duration: time.Since(start)})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// RunFunc performs one benchmarked run and returns the number of
// vocabulary entries it produced.
type RunFunc func(ctx context.Context, t *Timer) (int, error)

// Run executes fn runs times. inputBytes is the corpus size used for the
// throughput column. The context is checked between runs.
func Run(ctx context.Context, runs int, inputBytes int64, fn RunFunc) ([]RunResult, error) {
	if runs < 1 {
		return nil, errors.New("runs must be >= 1")
	}

	results := make([]RunResult, 0, runs)
	for i := range runs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var t Timer
		start := time.Now()
		tokens, err := fn(ctx, &t)
		elapsed := time.Since(start)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}

		results = append(results, RunResult{
			Index:      i,
			Cold:       i == 0,
			Duration:   elapsed,
			Stages:     t.stages,
			Tokens:     tokens,
			Throughput: CalcThroughput(inputBytes, elapsed),
		})
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Throughput helpers
// ---------------------------------------------------------------------------

// CalcThroughput returns megabytes of input processed per second.
// Returns 0 if d is zero to avoid division by zero.
func CalcThroughput(inputBytes int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(inputBytes) / (1 << 20) / d.Seconds()
}

// ---------------------------------------------------------------------------
// Duration gate
// ---------------------------------------------------------------------------

// CheckMaxMean returns an error if mean > limit.
// A limit of 0 disables the gate.
func CheckMaxMean(mean, limit time.Duration) error {
	if limit <= 0 {
		return nil
	}
	if mean > limit {
		return fmt.Errorf("mean run time %v exceeds limit %v", mean, limit)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %8s  %10s  %s\n", "Run", "Cold", "MS", "Tokens", "MB/s", "Stages")
	fmt.Fprintln(sb, strings.Repeat("-", 64))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		stages := make([]string, len(r.Stages))
		for i, s := range r.Stages {
			stages[i] = fmt.Sprintf("%s=%.1fms", s.Name, ms(s.Duration))
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.1f  %8d  %10.3f  %s\n",
			r.Index+1,
			cold,
			ms(r.Duration),
			r.Tokens,
			r.Throughput,
			strings.Join(stages, " "),
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 64))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (min)\n", "", "", ms(stats.Min))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (mean)\n", "", "", ms(stats.Mean))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (max)\n", "", "", ms(stats.Max))

	fmt.Fprint(w, sb.String())
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index      int                `json:"index"`
	Cold       bool               `json:"cold"`
	DurationMS float64            `json:"duration_ms"`
	StagesMS   map[string]float64 `json:"stages_ms,omitempty"`
	Tokens     int                `json:"tokens"`
	MBPerSec   float64            `json:"mb_per_sec"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:  ms(stats.Min),
			MeanMS: ms(stats.Mean),
			MaxMS:  ms(stats.Max),
		},
	}
	for i, r := range runs {
		var stages map[string]float64
		if len(r.Stages) > 0 {
			stages = make(map[string]float64, len(r.Stages))
			for _, s := range r.Stages {
				stages[s.Name] += ms(s.Duration)
			}
		}
		jr.Runs[i] = jsonRun{
			Index:      r.Index,
			Cold:       r.Cold,
			DurationMS: ms(r.Duration),
			StagesMS:   stages,
			Tokens:     r.Tokens,
			MBPerSec:   r.Throughput,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
