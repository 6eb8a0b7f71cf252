package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Policy is a bandit estimator driven by Run.
type Policy interface {
	// Select returns the index into candidates to show user at round.
	Select(user int, candidates []mat.Vector, round int) (int, error)
	// Update records the payoff observed for x shown to user.
	Update(user int, x mat.Vector, payoff float64) error
	// Estimates returns the current users×dim coefficient estimates.
	Estimates() *mat.Dense
	// Beta returns the exploration scale user would be scored with.
	Beta(user int) float64
}

// ClusterReporter is implemented by policies that partition users.
type ClusterReporter interface {
	Clusters() int
}

// Round is the immutable record of one simulation step.
type Round struct {
	Round    int     `json:"round"`
	User     int     `json:"user"`
	Item     int     `json:"item"`
	Payoff   float64 `json:"payoff"`
	Regret   float64 `json:"regret"`
	Error    float64 `json:"error"`
	Beta     float64 `json:"beta"`
	Clusters int     `json:"clusters,omitempty"`
}

// Result collects the rounds of one run.
type Result struct {
	Name   string  `json:"name"`
	Rounds []Round `json:"rounds"`
}

// CumulativeRegret returns the running regret sum, starting at 0, of length
// horizon+1.
func (r *Result) CumulativeRegret() []float64 {
	out := make([]float64, len(r.Rounds)+1)
	for i, rd := range r.Rounds {
		out[i+1] = out[i] + rd.Regret
	}
	return out
}

// Errors returns the per-round estimation error.
func (r *Result) Errors() []float64 {
	return r.series(func(rd Round) float64 { return rd.Error })
}

// Betas returns the per-round exploration scale.
func (r *Result) Betas() []float64 {
	return r.series(func(rd Round) float64 { return rd.Beta })
}

// ClusterCounts returns the per-round cluster count. It is all zeros for
// policies that do not report clusters.
func (r *Result) ClusterCounts() []float64 {
	return r.series(func(rd Round) float64 { return float64(rd.Clusters) })
}

func (r *Result) series(f func(Round) float64) []float64 {
	out := make([]float64, len(r.Rounds))
	for i, rd := range r.Rounds {
		out[i] = f(rd)
	}
	return out
}

type runner struct {
	logger   zerolog.Logger
	logEvery int
}

// Option configures Run.
type Option func(*runner)

// WithLogger sets the logger for progress events
func WithLogger(logger zerolog.Logger) Option {
	return func(r *runner) {
		r.logger = logger
	}
}

// WithLogEvery emits a debug event every n rounds (0 disables them)
func WithLogEvery(n int) Option {
	return func(r *runner) {
		r.logEvery = n
	}
}

// Run drives policy through schedule. Each round records β, selects from
// the offered pool, reveals the payoff, updates the policy and records
// regret and estimation error. When ctx is canceled Run stops between rounds
// and returns the rounds completed so far together with the context error.
func Run(ctx context.Context, name string, policy Policy, oracle *Oracle, schedule Schedule, options ...Option) (*Result, error) {
	r := runner{logger: zerolog.Nop(), logEvery: 100}
	for _, opt := range options {
		opt(&r)
	}
	if err := schedule.Validate(oracle.Users(), oracle.Items()); err != nil {
		return nil, err
	}

	logger := r.logger.With().Str("policy", name).Logger()
	reporter, _ := policy.(ClusterReporter)
	res := &Result{Name: name, Rounds: make([]Round, 0, schedule.Horizon())}
	start := time.Now()
	cumulative := 0.0

	for t, user := range schedule.Users {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		pool := schedule.Pools[t]

		beta := policy.Beta(user)
		chosen, err := policy.Select(user, oracle.Candidates(pool), t)
		if err != nil {
			return res, fmt.Errorf("round %d: select: %w", t, err)
		}
		if chosen < 0 || chosen >= len(pool) {
			return res, fmt.Errorf("round %d: policy chose %d from a pool of %d", t, chosen, len(pool))
		}
		item := pool[chosen]
		payoff := oracle.Payoff(user, item)
		regret := oracle.Regret(user, pool, item)

		if err := policy.Update(user, oracle.Item(item), payoff); err != nil {
			return res, fmt.Errorf("round %d: update: %w", t, err)
		}

		rd := Round{
			Round:  t,
			User:   user,
			Item:   item,
			Payoff: payoff,
			Regret: regret,
			Error:  oracle.Error(policy.Estimates()),
			Beta:   beta,
		}
		if reporter != nil {
			rd.Clusters = reporter.Clusters()
		}
		res.Rounds = append(res.Rounds, rd)
		cumulative += regret

		if r.logEvery > 0 && (t+1)%r.logEvery == 0 {
			logger.Debug().
				Int("round", t+1).
				Int("user", user).
				Float64("regret", regret).
				Float64("cumulative_regret", cumulative).
				Float64("error", rd.Error).
				Float64("beta", beta).
				Msg("simulation progress")
		}
	}

	logger.Info().
		Int("horizon", schedule.Horizon()).
		Float64("cumulative_regret", cumulative).
		Dur("elapsed", time.Since(start)).
		Msg("simulation finished")
	return res, nil
}
