package linucb

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/internal/linalg"
)

// Ridge holds the sufficient statistics of an online ridge regression:
// V = P + Σ xxᵀ and b = Σ y·x, with the coefficient θ = V⁺b kept in sync
// after every change.
type Ridge struct {
	dim    int
	solver Solver

	prior  *mat.SymDense // P
	gram   *mat.SymDense // Σ xxᵀ
	bias   *mat.VecDense // b
	cov    *mat.SymDense // V = P + gram
	covInv *mat.Dense    // V⁺
	theta  *mat.VecDense // V⁺b
	count  int
}

// NewRidge creates an empty regression with the given prior precision.
// A nil solver selects PinvSolver.
func NewRidge(prior mat.Symmetric, solver Solver) *Ridge {
	if solver == nil {
		solver = PinvSolver{}
	}
	d := prior.SymmetricDim()
	r := &Ridge{
		dim:    d,
		solver: solver,
		prior:  mat.NewSymDense(d, nil),
		gram:   mat.NewSymDense(d, nil),
		bias:   mat.NewVecDense(d, nil),
		cov:    mat.NewSymDense(d, nil),
	}
	r.prior.CopySym(prior)
	r.cov.CopySym(prior)
	r.solve()
	return r
}

// Pool merges the statistics of several regressions under a single prior.
// The individual priors are dropped, so the result is P + Σ gram_i with
// bias Σ b_i.
func Pool(prior mat.Symmetric, solver Solver, members []*Ridge) *Ridge {
	r := NewRidge(prior, solver)
	for _, m := range members {
		r.gram.AddSym(r.gram, m.gram)
		r.bias.AddVec(r.bias, m.bias)
		r.count += m.count
	}
	r.cov.AddSym(r.prior, r.gram)
	r.solve()
	return r
}

// Observe folds the pair (x, y) into the statistics.
func (r *Ridge) Observe(x mat.Vector, y float64) {
	r.Accumulate(x, y)

	if rs, ok := r.solver.(RankOneSolver); ok {
		if theta, ok := rs.SolveRankOne(r.covInv, x, r.bias); ok {
			r.theta = theta
			return
		}
	}
	r.solve()
}

// Accumulate folds (x, y) into the statistics without solving. θ and V⁺
// are stale until the next SetPrior or Refresh.
func (r *Ridge) Accumulate(x mat.Vector, y float64) {
	r.gram.SymRankOne(r.gram, 1, x)
	r.cov.SymRankOne(r.cov, 1, x)
	r.bias.AddScaledVec(r.bias, y, x)
	r.count++
}

// Refresh re-solves θ and V⁺ from the current statistics.
func (r *Ridge) Refresh() {
	r.solve()
}

// SetPrior replaces the prior precision, keeping the observations.
func (r *Ridge) SetPrior(prior mat.Symmetric) {
	r.prior.CopySym(prior)
	r.cov.AddSym(r.prior, r.gram)
	r.solve()
}

func (r *Ridge) solve() {
	r.covInv, r.theta = r.solver.Solve(r.cov, r.bias)
}

// Predict returns xᵀθ.
func (r *Ridge) Predict(x mat.Vector) float64 {
	return mat.Dot(x, r.theta)
}

// Width returns the confidence radius ‖x‖ in the V⁺ norm.
func (r *Ridge) Width(x mat.Vector) float64 {
	return math.Sqrt(linalg.Quad(x, r.covInv))
}

// LogDet returns log det V, or -Inf when V is singular.
func (r *Ridge) LogDet() float64 {
	return linalg.LogDet(r.cov)
}

// TraceInv returns tr V⁺.
func (r *Ridge) TraceInv() float64 {
	return mat.Trace(r.covInv)
}

// Theta returns the current coefficient estimate.
func (r *Ridge) Theta() mat.Vector { return r.theta }

// Cov returns V.
func (r *Ridge) Cov() mat.Symmetric { return r.cov }

// CovInv returns V⁺.
func (r *Ridge) CovInv() mat.Matrix { return r.covInv }

// Gram returns the accumulated outer products Σ xxᵀ.
func (r *Ridge) Gram() mat.Symmetric { return r.gram }

// Bias returns b.
func (r *Ridge) Bias() mat.Vector { return r.bias }

// Count returns the number of observations.
func (r *Ridge) Count() int { return r.count }

// Dim returns the feature dimension.
func (r *Ridge) Dim() int { return r.dim }
