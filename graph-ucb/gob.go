package graphucb

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/graph"
	"github.com/n0madic/go-graph-bandits/internal/linalg"
	"github.com/n0madic/go-graph-bandits/linucb"
)

// GOB is the fixed-graph bandit. The Laplacian L is regularized once into
// A = (L + εI) ⊗ I_d and the joint ridge regression runs in the whitened
// coordinates A^-1/2·x, where the prior becomes α·I.
type GOB struct {
	dim    int
	users  int
	params linucb.Params
	whiten *mat.Dense // A^-1/2
	joint  *linucb.Ridge

	mu sync.RWMutex
}

// NewGOB creates a GOB bandit over the users×users Laplacian lap.
// Unless overridden, the exploration bonus is inflated by sqrt(log(round+1)).
// A non-symmetric Laplacian (random-walk normalization) is symmetrized as
// (L + Lᵀ)/2 before whitening.
func NewGOB(dim, users int, lap mat.Matrix, options ...Option) (*GOB, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if users <= 0 {
		return nil, fmt.Errorf("user count must be positive, got %d", users)
	}
	if r, c := lap.Dims(); r != users || c != users {
		return nil, &linucb.InputError{Expected: users, Got: max(r, c), Type: "laplacian"}
	}

	cfg := newConfig()
	cfg.params.Inflation = linucb.LogInflation
	for _, opt := range options {
		opt(&cfg)
	}
	if err := cfg.params.Validate(); err != nil {
		return nil, err
	}
	if !(cfg.stabilizer > 0) {
		return nil, fmt.Errorf("stabilizer must be positive, got %g", cfg.stabilizer)
	}

	a := linalg.Kron(graph.Regularize(lap, cfg.stabilizer), dim)
	whiten, ok := linalg.InvSqrt(a)
	if !ok {
		return nil, errors.New("eigendecomposition of the regularized laplacian failed")
	}

	return &GOB{
		dim:    dim,
		users:  users,
		params: cfg.params,
		whiten: mat.DenseCopyOf(whiten),
		joint:  linucb.NewRidge(linalg.Identity(users*dim, cfg.params.Alpha), cfg.params.Solver),
	}, nil
}

// whitened returns A^-1/2 · embed(x, user). Only the columns of the user's
// block contribute.
func (g *GOB) whitened(user int, x mat.Vector) *mat.VecDense {
	n := g.users * g.dim
	cols := g.whiten.Slice(0, n, user*g.dim, (user+1)*g.dim)
	co := mat.NewVecDense(n, nil)
	co.MulVec(cols, x)
	return co
}

// Select implements the UCB rule in whitened coordinates.
func (g *GOB) Select(user int, candidates []mat.Vector, round int) (int, error) {
	if err := linucb.CheckCandidates(g.dim, g.users, user, candidates); err != nil {
		return -1, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	bonus := g.params.Radius(g.joint) * g.params.Inflation.Factor(round)
	scores := make([]float64, len(candidates))
	for i, x := range candidates {
		co := g.whitened(user, x)
		scores[i] = g.joint.Predict(co) + bonus*g.joint.Width(co)
	}
	return linucb.Argmax(scores), nil
}

// Update records the payoff observed for item x shown to user.
func (g *GOB) Update(user int, x mat.Vector, payoff float64) error {
	if err := linucb.CheckUser(user, g.users); err != nil {
		return err
	}
	if err := linucb.CheckVector(g.dim, x, "item features"); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.joint.Observe(g.whitened(user, x), payoff)
	return nil
}

// Beta returns the exploration scale of the joint model.
func (g *GOB) Beta(int) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.params.Radius(g.joint)
}

// Estimates maps the whitened solution back, A^-1/2·θ̃, as a users×dim matrix.
func (g *GOB) Estimates() *mat.Dense {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var theta mat.VecDense
	theta.MulVec(g.whiten, g.joint.Theta())
	return linalg.Reshape(&theta, g.users, g.dim)
}
