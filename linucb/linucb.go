// Package linucb implements the linear UCB estimator shared by every graph
// bandit in this module: online ridge statistics, a pluggable coefficient
// solver, the confidence width and the independent per-user LinUCB policy.
package linucb

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/internal/linalg"
)

// LinUCB keeps one independent ridge regression per user. It is the
// graph-agnostic baseline: no statistics are shared between users.
// All methods are safe for concurrent use.
type LinUCB struct {
	dim    int
	users  int
	params Params
	models []*Ridge

	mu sync.RWMutex
}

// New creates an estimator for users users over dim-dimensional items.
// Every user starts from the prior α·I.
func New(dim, users int, options ...Option) (*LinUCB, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if users <= 0 {
		return nil, fmt.Errorf("user count must be positive, got %d", users)
	}

	params := DefaultParams()
	params.Apply(options...)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	l := &LinUCB{
		dim:    dim,
		users:  users,
		params: params,
		models: make([]*Ridge, users),
	}
	prior := linalg.Identity(dim, params.Alpha)
	for u := range l.models {
		l.models[u] = NewRidge(prior, params.Solver)
	}
	return l, nil
}

// Select scores every candidate for user with xᵀθ_u + β·‖x‖·g(round) and
// returns the index of the first best candidate. Select does not modify
// the estimator.
func (l *LinUCB) Select(user int, candidates []mat.Vector, round int) (int, error) {
	if err := CheckCandidates(l.dim, l.users, user, candidates); err != nil {
		return -1, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	model := l.models[user]
	bonus := l.params.Radius(model) * l.params.Inflation.Factor(round)
	scores := make([]float64, len(candidates))
	for i, x := range candidates {
		scores[i] = model.Predict(x) + bonus*model.Width(x)
	}
	return Argmax(scores), nil
}

// Update records the payoff observed for item x shown to user.
func (l *LinUCB) Update(user int, x mat.Vector, payoff float64) error {
	if err := CheckUser(user, l.users); err != nil {
		return err
	}
	if err := CheckVector(l.dim, x, "item features"); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.models[user].Observe(x, payoff)
	return nil
}

// Beta returns the exploration scale user would be scored with.
func (l *LinUCB) Beta(user int) float64 {
	if CheckUser(user, l.users) != nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.params.Radius(l.models[user])
}

// Estimates returns the users×dim matrix of current coefficients.
func (l *LinUCB) Estimates() *mat.Dense {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := mat.NewDense(l.users, l.dim, nil)
	for u, m := range l.models {
		out.SetRow(u, linalg.Slice(m.Theta()))
	}
	return out
}

// Model returns the regression of user. The returned value must not be
// modified.
func (l *LinUCB) Model(user int) *Ridge {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.models[user]
}

// Params returns the effective hyperparameters.
func (l *LinUCB) Params() Params {
	return l.params
}
