package graphucb

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/graph"
	"github.com/n0madic/go-graph-bandits/internal/linalg"
	"github.com/n0madic/go-graph-bandits/linucb"
)

// LapUCB is the adaptive-graph bandit. Besides the joint model regularized
// by α·(L ⊗ I_d), it keeps an independent local regression per user. After
// every update the acting user's row of the similarity graph is recomputed
// with an RBF kernel over the local estimates, and the Laplacian and the
// joint prior are rebuilt from the refreshed graph.
//
// Widths come from the acting user's local regression. With
// SelfNormalizedConfidence (the default) β is
// σ·sqrt(2·log(det(V_u)^½·det(αI)^-½/δ)) + α·sqrt(tr V_u⁺)·‖θ_u − θ̄_u‖
// where θ̄_u is the neighbor average of the local estimates.
type LapUCB struct {
	dim   int
	users int
	cfg   config

	local  []*linucb.Ridge
	locals *mat.Dense // users×dim local estimates
	joint  *linucb.Ridge
	adj    *mat.Dense
	lap    *mat.Dense // regularized Laplacian

	mu sync.RWMutex
}

// NewLapUCB creates an adaptive-graph bandit.
func NewLapUCB(dim, users int, options ...Option) (*LapUCB, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if users <= 0 {
		return nil, fmt.Errorf("user count must be positive, got %d", users)
	}

	cfg := newConfig()
	cfg.params.Confidence = linucb.SelfNormalizedConfidence
	for _, opt := range options {
		opt(&cfg)
	}
	if err := cfg.params.Validate(); err != nil {
		return nil, err
	}
	if !(cfg.stabilizer > 0) {
		return nil, fmt.Errorf("stabilizer must be positive, got %g", cfg.stabilizer)
	}
	if cfg.point == nil {
		return nil, fmt.Errorf("point estimate must be set")
	}

	adj := mat.NewDense(users, users, nil)
	if cfg.seed != nil {
		if r, c := cfg.seed.Dims(); r != users || c != users {
			return nil, &linucb.InputError{Expected: users, Got: max(r, c), Type: "seed graph"}
		}
		if err := graph.Validate(cfg.seed); err != nil {
			return nil, fmt.Errorf("seed graph: %w", err)
		}
		adj.Copy(cfg.seed)
	}

	l := &LapUCB{
		dim:    dim,
		users:  users,
		cfg:    cfg,
		local:  make([]*linucb.Ridge, users),
		locals: mat.NewDense(users, dim, nil),
		adj:    adj,
	}
	prior := linalg.Identity(dim, cfg.params.Alpha)
	for u := range l.local {
		l.local[u] = linucb.NewRidge(prior, cfg.params.Solver)
	}
	l.lap = graph.Regularize(graph.Laplacian(adj, cfg.normalization), cfg.stabilizer)
	l.joint = linucb.NewRidge(l.jointPrior(), cfg.params.Solver)
	return l, nil
}

// jointPrior is α·(L ⊗ I_d). With α = 1 it is the bare graph prior L ⊗ I_d.
func (l *LapUCB) jointPrior() *mat.SymDense {
	a := linalg.Kron(l.lap, l.dim)
	a.ScaleSym(l.cfg.params.Alpha, a)
	return a
}

func (l *LapUCB) neighborhood() Neighborhood {
	return Neighborhood{Locals: l.locals, Laplacian: l.lap}
}

func (l *LapUCB) point(user int) mat.Vector {
	joint := linalg.Block(l.joint.Theta(), user, l.dim)
	return l.cfg.point.Point(user, joint, l.neighborhood())
}

func (l *LapUCB) beta(user int) float64 {
	p := l.cfg.params
	if p.Confidence == linucb.ConstantConfidence {
		return p.Beta
	}
	local := l.local[user]
	width := linucb.SelfNormalizedWidth(local.LogDet(), l.dim, p.Alpha, p.Sigma, p.Delta)

	joint := linalg.Block(l.joint.Theta(), user, l.dim)
	avg := l.neighborhood().Average(user)
	gap := floats.Distance(linalg.Slice(joint), linalg.Slice(avg), 2)
	return width + p.Alpha*math.Sqrt(math.Max(0, local.TraceInv()))*gap
}

// Select scores candidates with the configured point estimate and the
// acting user's local width.
func (l *LapUCB) Select(user int, candidates []mat.Vector, round int) (int, error) {
	if err := linucb.CheckCandidates(l.dim, l.users, user, candidates); err != nil {
		return -1, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	theta := l.point(user)
	local := l.local[user]
	bonus := l.beta(user) * l.cfg.params.Inflation.Factor(round)
	scores := make([]float64, len(candidates))
	for i, x := range candidates {
		scores[i] = mat.Dot(x, theta) + bonus*local.Width(x)
	}
	return linucb.Argmax(scores), nil
}

// Update records the payoff, then refreshes the acting user's graph row,
// the Laplacian and the joint prior.
func (l *LapUCB) Update(user int, x mat.Vector, payoff float64) error {
	if err := linucb.CheckUser(user, l.users); err != nil {
		return err
	}
	if err := linucb.CheckVector(l.dim, x, "item features"); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.local[user].Observe(x, payoff)
	l.locals.SetRow(user, linalg.Slice(l.local[user].Theta()))
	l.joint.Accumulate(linalg.Embed(x, user, l.users), payoff)

	l.refreshGraph(user)
	l.joint.SetPrior(l.jointPrior())
	return nil
}

func (l *LapUCB) refreshGraph(user int) {
	row := graph.RBFRow(l.locals.RowView(user), l.locals, l.cfg.gamma)
	row[user] = 0
	if l.cfg.threshold > 0 {
		graph.Threshold(row, l.cfg.threshold)
	}
	if l.cfg.neighbors > 0 {
		graph.TopK(row, l.cfg.neighbors)
	}
	graph.SetRow(l.adj, user, row)
	l.lap = graph.Regularize(graph.Laplacian(l.adj, l.cfg.normalization), l.cfg.stabilizer)
}

// Beta returns the exploration scale user would be scored with.
func (l *LapUCB) Beta(user int) float64 {
	if linucb.CheckUser(user, l.users) != nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.beta(user)
}

// Estimates returns the users×dim matrix of point estimates.
func (l *LapUCB) Estimates() *mat.Dense {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := mat.NewDense(l.users, l.dim, nil)
	for u := 0; u < l.users; u++ {
		out.SetRow(u, linalg.Slice(l.point(u)))
	}
	return out
}

// Graph returns a copy of the current similarity graph.
func (l *LapUCB) Graph() *mat.Dense {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return mat.DenseCopyOf(l.adj)
}

// Laplacian returns a copy of the current regularized Laplacian.
func (l *LapUCB) Laplacian() *mat.Dense {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return mat.DenseCopyOf(l.lap)
}
