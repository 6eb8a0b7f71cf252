package main

import (
	"fmt"

	"github.com/n0madic/go-graph-bandits/colin"
	"github.com/n0madic/go-graph-bandits/graph"
	graphucb "github.com/n0madic/go-graph-bandits/graph-ucb"
	"github.com/n0madic/go-graph-bandits/internal/config"
	"github.com/n0madic/go-graph-bandits/internal/synth"
	"github.com/n0madic/go-graph-bandits/lints"
	"github.com/n0madic/go-graph-bandits/linucb"
	"github.com/n0madic/go-graph-bandits/sclub"
	"github.com/n0madic/go-graph-bandits/simulation"
)

// newPolicy builds a fresh policy for one repetition. Graph-aware
// algorithms that need a fixed graph get the one drawn for the problem.
func newPolicy(name string, cfg *config.Experiment, prob *synth.Problem, seed uint64) (simulation.Policy, error) {
	pol := cfg.Policy
	users, dim := cfg.Problem.Users, cfg.Problem.Dim

	opts, err := pol.LinUCBOptions()
	if err != nil {
		return nil, err
	}
	norm, err := pol.GraphNormalization()
	if err != nil {
		return nil, err
	}

	switch name {
	case config.LinUCB:
		return linucb.New(dim, users, opts...)

	case config.GOB:
		return graphucb.NewGOB(dim, users, prob.Laplacian,
			graphucb.WithParams(opts...),
			graphucb.WithStabilizer(pol.Stabilizer),
		)

	case config.LapUCB, config.LapUCBSim:
		options := []graphucb.Option{
			graphucb.WithParams(opts...),
			graphucb.WithStabilizer(pol.Stabilizer),
			graphucb.WithGamma(pol.Gamma),
			graphucb.WithThreshold(pol.Threshold),
			graphucb.WithNeighbors(pol.Neighbors),
			graphucb.WithNormalization(norm),
		}
		if name == config.LapUCBSim {
			options = append(options, graphucb.WithPointEstimate(graphucb.NeighborAverage{}))
		}
		return graphucb.NewLapUCB(dim, users, options...)

	case config.SCLUB:
		return sclub.New(dim, users,
			sclub.WithParams(opts...),
			sclub.WithNeighbors(pol.Neighbors),
			sclub.WithThreshold(pol.Threshold),
			sclub.WithGamma(pol.Gamma),
			sclub.WithPartitioner(graph.Louvain{Resolution: pol.Resolution, Seed: seed}),
		)

	case config.CLUB:
		return sclub.NewCLUB(dim, users, pol.ClubThreshold,
			sclub.WithParams(opts...),
			sclub.WithGamma(pol.Gamma),
		)

	case config.CoLin:
		return colin.New(dim, users, colin.Influence(prob.Adjacency), colin.WithParams(opts...))

	case config.LinTS:
		return lints.NewLinTS(dim, users,
			lints.WithLambda(pol.Alpha),
			lints.WithSigma2(pol.SampleVariance),
			lints.WithRandomSeed(seed),
		)
	}
	return nil, fmt.Errorf("unknown algorithm %q", name)
}
