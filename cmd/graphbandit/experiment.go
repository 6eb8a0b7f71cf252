package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/n0madic/go-graph-bandits/internal/config"
	"github.com/n0madic/go-graph-bandits/internal/synth"
	"github.com/n0madic/go-graph-bandits/simulation"
)

// Report is the outcome of one CLI run.
type Report struct {
	RunID      string              `json:"run_id"`
	Config     *config.Experiment  `json:"config"`
	Algorithms []simulation.Curves `json:"algorithms"`
}

// runExperiment runs every configured algorithm over cfg.Loops repetitions.
// Repetition i of every algorithm sees the same problem draw, so the curves
// are directly comparable.
func runExperiment(ctx context.Context, cfg *config.Experiment, logger zerolog.Logger) ([]simulation.Curves, error) {
	params := cfg.Problem.Synth()
	curves := make([]simulation.Curves, 0, len(cfg.Algorithms))

	for _, name := range cfg.Algorithms {
		trial := func(ctx context.Context, loop int) (*simulation.Result, error) {
			seed := cfg.Seed + uint64(loop)
			prob, err := synth.Generate(params, rand.New(rand.NewPCG(cfg.Seed, uint64(loop))))
			if err != nil {
				return nil, fmt.Errorf("generate problem: %w", err)
			}
			oracle, err := prob.Oracle()
			if err != nil {
				return nil, err
			}
			policy, err := newPolicy(name, cfg, prob, seed)
			if err != nil {
				return nil, fmt.Errorf("build %s: %w", name, err)
			}
			return simulation.Run(ctx, name, policy, oracle, prob.Schedule,
				simulation.WithLogger(logger.With().Int("loop", loop).Logger()),
				simulation.WithLogEvery(cfg.LogEvery),
			)
		}

		results, err := simulation.Repeat(ctx, cfg.Loops, cfg.Workers, trial)
		if err != nil {
			return curves, fmt.Errorf("%s: %w", name, err)
		}
		c, err := simulation.Mean(results)
		if err != nil {
			return curves, fmt.Errorf("%s: %w", name, err)
		}
		logger.Info().
			Str("policy", name).
			Float64("final_regret", c.FinalRegret()).
			Float64("final_error", c.FinalError()).
			Msg("algorithm finished")
		curves = append(curves, c)
	}
	return curves, nil
}

// writeSummary prints one line per algorithm with its final averaged metrics.
func writeSummary(w io.Writer, curves []simulation.Curves) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tREGRET\tERROR\tMEAN BETA\tCLUSTERS")
	for _, c := range curves {
		clusters := "-"
		if c.Clusters != nil {
			clusters = fmt.Sprintf("%.1f", c.FinalClusters())
		}
		fmt.Fprintf(tw, "%s\t%.3f\t%.4f\t%.4f\t%s\n", c.Name, c.FinalRegret(), c.FinalError(), c.MeanBeta(), clusters)
	}
	return tw.Flush()
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
