package linucb

import (
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/internal/linalg"
)

// Solver recovers the ridge coefficients from the current sufficient
// statistics. It returns the (generalized) inverse of cov together with
// θ = cov⁺·bias. Implementations must never fail on singular input.
type Solver interface {
	Solve(cov mat.Symmetric, bias mat.Vector) (*mat.Dense, *mat.VecDense)
}

// RankOneSolver is implemented by solvers that can fold a single
// observation x into an existing inverse in place. SolveRankOne reports
// false when the incremental update is not numerically safe, in which case
// the caller falls back to a full Solve.
type RankOneSolver interface {
	Solver
	SolveRankOne(covInv *mat.Dense, x, bias mat.Vector) (*mat.VecDense, bool)
}

// PinvSolver solves through the SVD pseudo-inverse. It is the reference
// solver and handles rank-deficient systems, at the price of silently
// returning the minimum-norm solution instead of signaling singularity.
type PinvSolver struct{}

// Solve implements Solver.
func (PinvSolver) Solve(cov mat.Symmetric, bias mat.Vector) (*mat.Dense, *mat.VecDense) {
	inv := linalg.Pinv(cov)
	theta := mat.NewVecDense(bias.Len(), nil)
	theta.MulVec(inv, bias)
	return inv, theta
}

// CholeskySolver inverts through a Cholesky factorization and falls back to
// the pseudo-inverse when cov is not positive definite.
type CholeskySolver struct{}

// Solve implements Solver.
func (CholeskySolver) Solve(cov mat.Symmetric, bias mat.Vector) (*mat.Dense, *mat.VecDense) {
	var chol mat.Cholesky
	if !chol.Factorize(cov) {
		return PinvSolver{}.Solve(cov, bias)
	}
	var sym mat.SymDense
	if err := chol.InverseTo(&sym); err != nil {
		return PinvSolver{}.Solve(cov, bias)
	}
	inv := mat.DenseCopyOf(&sym)
	theta := mat.NewVecDense(bias.Len(), nil)
	theta.MulVec(inv, bias)
	return inv, theta
}

// ShermanMorrison keeps the inverse up to date with O(d²) rank-one updates
// (V + xxᵀ)⁻¹ = V⁻¹ − V⁻¹xxᵀV⁻¹ / (1 + xᵀV⁻¹x).
// Full solves go through Fallback, or the Cholesky solver when unset.
type ShermanMorrison struct {
	Fallback Solver
}

// Solve implements Solver.
func (s ShermanMorrison) Solve(cov mat.Symmetric, bias mat.Vector) (*mat.Dense, *mat.VecDense) {
	if s.Fallback != nil {
		return s.Fallback.Solve(cov, bias)
	}
	return CholeskySolver{}.Solve(cov, bias)
}

// SolveRankOne implements RankOneSolver.
func (ShermanMorrison) SolveRankOne(covInv *mat.Dense, x, bias mat.Vector) (*mat.VecDense, bool) {
	n := x.Len()
	u := mat.NewVecDense(n, nil)
	u.MulVec(covInv, x)
	denom := 1 + mat.Dot(x, u)
	if denom <= 1e-12 {
		return nil, false
	}
	covInv.RankOne(covInv, -1/denom, u, u)

	theta := mat.NewVecDense(bias.Len(), nil)
	theta.MulVec(covInv, bias)
	return theta, true
}
