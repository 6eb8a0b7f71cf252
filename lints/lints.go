// Package lints implements per-user Linear Thompson Sampling, the randomized
// graph-agnostic baseline.
package lints

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/internal/linalg"
	"github.com/n0madic/go-graph-bandits/linucb"
)

// LinTS samples θ ~ N(μ_u, σ²V_u⁻¹) for the acting user and picks the
// candidate with the highest sampled payoff. Features:
// - O(d²) Sherman-Morrison updates of V_u⁻¹
// - Cholesky factor of σ²V_u⁻¹ refreshed on update, diagonal fallback
// - Samples seeded from (seed, round, user) so Select is reproducible
// - Thread-safe operations for concurrent access
type LinTS struct {
	dim    int
	users  int
	lambda float64 // regularization parameter
	sigma2 float64 // noise variance for Thompson sampling
	seed   uint64

	models []*linucb.Ridge
	chol   []*mat.TriDense // L_u with σ²V_u⁻¹ = L_u·L_uᵀ

	nUpdates       uint64 // atomic counter for number of updates
	failedCholesky uint64 // atomic counter for failed Cholesky factorizations

	mu sync.RWMutex
}

// Option defines a functional option for configuring LinTS
type Option func(*LinTS)

// WithLambda sets the regularization parameter
func WithLambda(lambda float64) Option {
	return func(l *LinTS) {
		l.lambda = lambda
	}
}

// WithSigma2 sets the noise variance for Thompson sampling
func WithSigma2(sigma2 float64) Option {
	return func(l *LinTS) {
		l.sigma2 = sigma2
	}
}

// WithRandomSeed sets the random seed for reproducibility
func WithRandomSeed(seed uint64) Option {
	return func(l *LinTS) {
		l.seed = seed
	}
}

// NewLinTS creates a new Linear Thompson Sampling instance
func NewLinTS(dim, users int, options ...Option) (*LinTS, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("feature dimension must be positive, got %d", dim)
	}
	if users <= 0 {
		return nil, fmt.Errorf("user count must be positive, got %d", users)
	}

	l := &LinTS{
		dim:    dim,
		users:  users,
		lambda: 1.0,
		sigma2: 0.01,
	}

	// Apply options
	for _, opt := range options {
		opt(l)
	}
	if !(l.lambda > 0) {
		return nil, fmt.Errorf("lambda must be positive, got %g", l.lambda)
	}
	if l.sigma2 < 0 || math.IsNaN(l.sigma2) {
		return nil, fmt.Errorf("sigma2 must be non-negative, got %g", l.sigma2)
	}

	l.models = make([]*linucb.Ridge, users)
	l.chol = make([]*mat.TriDense, users)
	prior := linalg.Identity(dim, l.lambda)
	scaleFactor := math.Sqrt(l.sigma2 / l.lambda)
	for u := 0; u < users; u++ {
		l.models[u] = linucb.NewRidge(prior, linucb.ShermanMorrison{})

		// σ²V⁻¹ = (σ²/λ)·I before any observation
		l.chol[u] = mat.NewTriDense(dim, mat.Lower, nil)
		for i := 0; i < dim; i++ {
			l.chol[u].SetTri(i, i, scaleFactor)
		}
	}
	return l, nil
}

// sampleTheta samples θ ~ N(μ_u, σ²V_u⁻¹) from a source derived from the
// seed, the round and the user.
func (l *LinTS) sampleTheta(user, round int) *mat.VecDense {
	rng := rand.New(rand.NewPCG(l.seed, uint64(round)<<20^uint64(user)))
	z := mat.NewVecDense(l.dim, nil)
	for i := 0; i < l.dim; i++ {
		z.SetVec(i, rng.NormFloat64())
	}

	// θ = μ + L @ z
	theta := mat.NewVecDense(l.dim, nil)
	theta.MulVec(l.chol[user], z)
	theta.AddVec(theta, l.models[user].Theta())
	return theta
}

// Select scores every candidate against one sampled θ and returns the first
// best index. Repeated calls with the same round and state return the
// same index.
func (l *LinTS) Select(user int, candidates []mat.Vector, round int) (int, error) {
	if err := linucb.CheckCandidates(l.dim, l.users, user, candidates); err != nil {
		return -1, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	theta := l.sampleTheta(user, round)
	scores := make([]float64, len(candidates))
	for i, x := range candidates {
		scores[i] = mat.Dot(x, theta)
	}
	return linucb.Argmax(scores), nil
}

// Update updates the model of user with a single item-payoff pair
func (l *LinTS) Update(user int, x mat.Vector, payoff float64) error {
	if err := linucb.CheckUser(user, l.users); err != nil {
		return err
	}
	if err := linucb.CheckVector(l.dim, x, "item features"); err != nil {
		return err
	}
	if math.IsInf(payoff, 0) || math.IsNaN(payoff) {
		return fmt.Errorf("payoff must be finite, got %g", payoff)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.models[user].Observe(x, payoff)
	l.recomputeCholesky(user)
	atomic.AddUint64(&l.nUpdates, 1)
	return nil
}

// recomputeCholesky refreshes the factor of σ²V_u⁻¹
func (l *LinTS) recomputeCholesky(user int) {
	inv := l.models[user].CovInv()
	sym := mat.NewSymDense(l.dim, nil)
	for i := 0; i < l.dim; i++ {
		for j := i; j < l.dim; j++ {
			// Symmetrize against floating-point drift of the rank-one updates
			val := 0.5 * l.sigma2 * (inv.At(i, j) + inv.At(j, i))
			sym.SetSym(i, j, val)
		}
	}

	var chol mat.Cholesky
	if chol.Factorize(sym) {
		chol.LTo(l.chol[user])
		return
	}

	// Diagonal fallback - increment counter for monitoring
	atomic.AddUint64(&l.failedCholesky, 1)
	for i := 0; i < l.dim; i++ {
		diag := math.Sqrt(math.Max(sym.At(i, i), 1e-12))
		for j := 0; j <= i; j++ {
			if i == j {
				l.chol[user].SetTri(i, j, diag)
			} else {
				l.chol[user].SetTri(i, j, 0.0)
			}
		}
	}
}

// Beta reports the posterior noise scale σ used for sampling.
func (l *LinTS) Beta(int) float64 {
	return math.Sqrt(l.sigma2)
}

// Estimates returns the users×dim matrix of posterior means.
func (l *LinTS) Estimates() *mat.Dense {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := mat.NewDense(l.users, l.dim, nil)
	for u, m := range l.models {
		out.SetRow(u, linalg.Slice(m.Theta()))
	}
	return out
}

// GetStats returns current model statistics
func (l *LinTS) GetStats() map[string]any {
	l.mu.RLock()
	defer l.mu.RUnlock()

	trace := 0.0
	for _, m := range l.models {
		trace += m.TraceInv()
	}
	return map[string]any{
		"n_updates":       atomic.LoadUint64(&l.nUpdates),
		"failed_cholesky": atomic.LoadUint64(&l.failedCholesky),
		"trace_V_inv":     trace,
		"dim":             l.dim,
		"users":           l.users,
	}
}
