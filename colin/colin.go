// Package colin implements a collaborative linear bandit where each payoff is
// produced by an influence-weighted mix of all users' coefficients through a
// fixed row-stochastic matrix W.
package colin

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/internal/linalg"
	"github.com/n0madic/go-graph-bandits/linucb"
)

// stochasticTol is the tolerance on the row sums of W.
const stochasticTol = 1e-6

// CoLin models the payoff of user u for item x as xᵀ·Σ_j W[j,u]·θ_j. The
// joint coefficient vector is learned by ridge regression on the
// co-features whose block j is W[j,u]·x.
type CoLin struct {
	dim    int
	users  int
	params linucb.Params
	w      *mat.Dense
	joint  *linucb.Ridge

	mu sync.RWMutex
}

// Option configures CoLin.
type Option func(*CoLin)

// WithParams applies UCB hyperparameter options
func WithParams(options ...linucb.Option) Option {
	return func(c *CoLin) {
		c.params.Apply(options...)
	}
}

// New creates a CoLin bandit with influence matrix w. Rows of w must be
// non-negative and sum to one. Unless overridden, the exploration bonus is
// inflated by sqrt(log(round+1)).
func New(dim, users int, w mat.Matrix, options ...Option) (*CoLin, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if users <= 0 {
		return nil, fmt.Errorf("user count must be positive, got %d", users)
	}
	if err := checkStochastic(w, users); err != nil {
		return nil, err
	}

	c := &CoLin{
		dim:    dim,
		users:  users,
		params: linucb.DefaultParams(),
		w:      mat.DenseCopyOf(w),
	}
	c.params.Inflation = linucb.LogInflation
	for _, opt := range options {
		opt(c)
	}
	if err := c.params.Validate(); err != nil {
		return nil, err
	}
	c.joint = linucb.NewRidge(linalg.Identity(users*dim, c.params.Alpha), c.params.Solver)
	return c, nil
}

func checkStochastic(w mat.Matrix, users int) error {
	r, cols := w.Dims()
	if r != users || cols != users {
		return &linucb.InputError{Expected: users, Got: max(r, cols), Type: "influence matrix"}
	}
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			v := w.At(i, j)
			if v < 0 || math.IsNaN(v) {
				return fmt.Errorf("influence matrix entry (%d,%d) = %g must be non-negative", i, j, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > stochasticTol {
			return fmt.Errorf("influence matrix row %d sums to %g, want 1", i, sum)
		}
	}
	return nil
}

// Influence turns a similarity graph into a row-stochastic influence
// matrix by adding a unit self weight to every user and normalizing rows.
func Influence(adj mat.Matrix) *mat.Dense {
	n, _ := adj.Dims()
	w := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		sum := 1.0
		for j := 0; j < n; j++ {
			if i != j {
				sum += math.Max(0, adj.At(i, j))
			}
		}
		for j := 0; j < n; j++ {
			v := 1.0
			if i != j {
				v = math.Max(0, adj.At(i, j))
			}
			w.Set(i, j, v/sum)
		}
	}
	return w
}

// coFeatures returns the joint feature vector with block j = W[j,user]·x.
func (c *CoLin) coFeatures(user int, x mat.Vector) *mat.VecDense {
	co := mat.NewVecDense(c.users*c.dim, nil)
	for j := 0; j < c.users; j++ {
		wj := c.w.At(j, user)
		if wj == 0 {
			continue
		}
		for k := 0; k < c.dim; k++ {
			co.SetVec(j*c.dim+k, wj*x.AtVec(k))
		}
	}
	return co
}

// Select implements the UCB rule on the co-features.
func (c *CoLin) Select(user int, candidates []mat.Vector, round int) (int, error) {
	if err := linucb.CheckCandidates(c.dim, c.users, user, candidates); err != nil {
		return -1, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	bonus := c.params.Radius(c.joint) * c.params.Inflation.Factor(round)
	scores := make([]float64, len(candidates))
	for i, x := range candidates {
		co := c.coFeatures(user, x)
		scores[i] = c.joint.Predict(co) + bonus*c.joint.Width(co)
	}
	return linucb.Argmax(scores), nil
}

// Update records the payoff observed for item x shown to user.
func (c *CoLin) Update(user int, x mat.Vector, payoff float64) error {
	if err := linucb.CheckUser(user, c.users); err != nil {
		return err
	}
	if err := linucb.CheckVector(c.dim, x, "item features"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.joint.Observe(c.coFeatures(user, x), payoff)
	return nil
}

// Beta returns the exploration scale of the joint model.
func (c *CoLin) Beta(int) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params.Radius(c.joint)
}

// Estimates returns the effective coefficients Σ_j W[j,u]·θ_j of every user
// as a users×dim matrix.
func (c *CoLin) Estimates() *mat.Dense {
	c.mu.RLock()
	defer c.mu.RUnlock()

	theta := linalg.Reshape(c.joint.Theta(), c.users, c.dim)
	var out mat.Dense
	out.Mul(c.w.T(), theta)
	return &out
}
