package simulation

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Trial runs one isolated repetition. Each call must build its own policy
// and oracle draw from the loop index.
type Trial func(ctx context.Context, loop int) (*Result, error)

// Repeat runs loops repetitions of trial on at most workers goroutines
// (workers <= 0 means one per loop). Results are returned in loop order; the
// first failure cancels the remaining repetitions.
func Repeat(ctx context.Context, loops, workers int, trial Trial) ([]*Result, error) {
	if loops <= 0 {
		return nil, fmt.Errorf("loops must be positive, got %d", loops)
	}

	results := make([]*Result, loops)
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for loop := 0; loop < loops; loop++ {
		g.Go(func() error {
			res, err := trial(ctx, loop)
			if err != nil {
				return fmt.Errorf("loop %d: %w", loop, err)
			}
			results[loop] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Curves are point-wise averages over repetitions.
type Curves struct {
	Name     string    `json:"name"`
	Regret   []float64 `json:"cumulative_regret"`
	Error    []float64 `json:"error"`
	Beta     []float64 `json:"beta"`
	Clusters []float64 `json:"clusters,omitempty"`
}

// FinalRegret returns the last cumulative regret value.
func (c Curves) FinalRegret() float64 {
	return last(c.Regret)
}

// FinalError returns the last estimation error.
func (c Curves) FinalError() float64 {
	return last(c.Error)
}

// MeanBeta returns the average exploration scale over the run.
func (c Curves) MeanBeta() float64 {
	if len(c.Beta) == 0 {
		return 0
	}
	return stat.Mean(c.Beta, nil)
}

// FinalClusters returns the last cluster count, or 0 when none were reported.
func (c Curves) FinalClusters() float64 {
	return last(c.Clusters)
}

func last(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// Mean averages the series of results with equal horizons point-wise.
func Mean(results []*Result) (Curves, error) {
	if len(results) == 0 {
		return Curves{}, errors.New("no results to average")
	}
	horizon := len(results[0].Rounds)
	for i, r := range results {
		if len(r.Rounds) != horizon {
			return Curves{}, fmt.Errorf("result %d has %d rounds, want %d", i, len(r.Rounds), horizon)
		}
	}

	c := Curves{
		Name:   results[0].Name,
		Regret: meanOf(results, (*Result).CumulativeRegret),
		Error:  meanOf(results, (*Result).Errors),
		Beta:   meanOf(results, (*Result).Betas),
	}
	clusters := meanOf(results, (*Result).ClusterCounts)
	for _, v := range clusters {
		if v != 0 {
			c.Clusters = clusters
			break
		}
	}
	return c, nil
}

func meanOf(results []*Result, series func(*Result) []float64) []float64 {
	all := make([][]float64, len(results))
	for i, r := range results {
		all[i] = series(r)
	}
	n := len(all[0])
	out := make([]float64, n)
	column := make([]float64, len(all))
	for t := 0; t < n; t++ {
		for i := range all {
			column[i] = all[i][t]
		}
		out[t] = stat.Mean(column, nil)
	}
	return out
}
