// Package sclub implements cluster-based linear bandits. Users are grouped by
// community detection on a sparse similarity graph built from their
// independent estimates, and every cluster shares one pooled regression.
package sclub

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/graph"
	"github.com/n0madic/go-graph-bandits/internal/linalg"
	"github.com/n0madic/go-graph-bandits/linucb"
)

// DefaultNeighbors is the number of similarity edges kept per refreshed row.
const DefaultNeighbors = 3

// SCLUB keeps an independent regression per user for similarity and a pooled
// cluster regression per user for selection. Each update refreshes the acting
// user's similarity row, re-partitions all users from scratch and re-pools
// the statistics of the acting user's new cluster.
type SCLUB struct {
	dim         int
	users       int
	params      linucb.Params
	neighbors   int
	threshold   float64
	gamma       float64
	partitioner graph.Partitioner

	local   []*linucb.Ridge
	locals  *mat.Dense // users×dim independent estimates
	cluster []*linucb.Ridge
	adj     *mat.Dense
	labels  []int

	mu sync.RWMutex
}

// Option configures SCLUB.
type Option func(*SCLUB)

// WithParams applies UCB hyperparameter options
func WithParams(options ...linucb.Option) Option {
	return func(s *SCLUB) {
		s.params.Apply(options...)
	}
}

// WithNeighbors keeps the k most similar other users in each refreshed row (0 keeps all).
// The acting user's self-similarity is cleared first, so it never takes one of the k slots.
func WithNeighbors(k int) Option {
	return func(s *SCLUB) {
		s.neighbors = k
	}
}

// WithThreshold drops similarity edges lighter than t
func WithThreshold(t float64) Option {
	return func(s *SCLUB) {
		s.threshold = t
	}
}

// WithGamma sets the RBF kernel width (<= 0 means 1/dim)
func WithGamma(gamma float64) Option {
	return func(s *SCLUB) {
		s.gamma = gamma
	}
}

// WithPartitioner sets the community detection algorithm
func WithPartitioner(p graph.Partitioner) Option {
	return func(s *SCLUB) {
		s.partitioner = p
	}
}

// New creates a SCLUB bandit with Louvain community detection.
func New(dim, users int, options ...Option) (*SCLUB, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if users <= 0 {
		return nil, fmt.Errorf("user count must be positive, got %d", users)
	}

	s := &SCLUB{
		dim:         dim,
		users:       users,
		params:      linucb.DefaultParams(),
		neighbors:   DefaultNeighbors,
		partitioner: graph.Louvain{},
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if s.partitioner == nil {
		return nil, fmt.Errorf("partitioner must be set")
	}
	if s.neighbors < 0 || s.neighbors > users {
		return nil, fmt.Errorf("neighbors must be in [0,%d], got %d", users, s.neighbors)
	}

	s.local = make([]*linucb.Ridge, users)
	s.cluster = make([]*linucb.Ridge, users)
	s.locals = mat.NewDense(users, dim, nil)
	s.adj = mat.NewDense(users, users, nil)
	s.labels = make([]int, users)
	prior := s.prior()
	for u := 0; u < users; u++ {
		s.local[u] = linucb.NewRidge(prior, s.params.Solver)
		s.cluster[u] = linucb.NewRidge(prior, s.params.Solver)
		s.labels[u] = u
	}
	return s, nil
}

// NewCLUB creates the connected-components flavor: edges below threshold
// are dropped and clusters are the components of what remains.
func NewCLUB(dim, users int, threshold float64, options ...Option) (*SCLUB, error) {
	base := []Option{
		WithNeighbors(0),
		WithThreshold(threshold),
		WithPartitioner(graph.Components{}),
	}
	return New(dim, users, append(base, options...)...)
}

func (s *SCLUB) prior() *mat.SymDense {
	return linalg.Identity(s.dim, s.params.Alpha)
}

// Select scores candidates with the pooled model of the user's cluster.
func (s *SCLUB) Select(user int, candidates []mat.Vector, round int) (int, error) {
	if err := linucb.CheckCandidates(s.dim, s.users, user, candidates); err != nil {
		return -1, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	model := s.cluster[user]
	bonus := s.params.Radius(model) * s.params.Inflation.Factor(round)
	scores := make([]float64, len(candidates))
	for i, x := range candidates {
		scores[i] = model.Predict(x) + bonus*model.Width(x)
	}
	return linucb.Argmax(scores), nil
}

// Update records the payoff, then re-clusters and re-pools.
func (s *SCLUB) Update(user int, x mat.Vector, payoff float64) error {
	if err := linucb.CheckUser(user, s.users); err != nil {
		return err
	}
	if err := linucb.CheckVector(s.dim, x, "item features"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.local[user].Observe(x, payoff)
	s.locals.SetRow(user, linalg.Slice(s.local[user].Theta()))

	row := graph.RBFRow(s.locals.RowView(user), s.locals, s.gamma)
	row[user] = 0
	if s.threshold > 0 {
		graph.Threshold(row, s.threshold)
	}
	if s.neighbors > 0 {
		graph.TopK(row, s.neighbors)
	}
	graph.SetRow(s.adj, user, row)

	labels, err := s.partitioner.Partition(s.adj)
	if err != nil {
		return fmt.Errorf("partition users: %w", err)
	}
	s.labels = labels

	members := graph.Members(labels, user)
	models := make([]*linucb.Ridge, len(members))
	for i, m := range members {
		models[i] = s.local[m]
	}
	pooled := linucb.Pool(s.prior(), s.params.Solver, models)
	for _, m := range members {
		s.cluster[m] = pooled
	}
	return nil
}

// Beta returns the exploration scale user would be scored with.
func (s *SCLUB) Beta(user int) float64 {
	if linucb.CheckUser(user, s.users) != nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.Radius(s.cluster[user])
}

// Estimates returns every user's own ridge estimate, fitted on that user's
// observations only.
func (s *SCLUB) Estimates() *mat.Dense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mat.DenseCopyOf(s.locals)
}

// ClusterEstimates returns the pooled coefficients of every user's cluster model.
func (s *SCLUB) ClusterEstimates() *mat.Dense {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := mat.NewDense(s.users, s.dim, nil)
	for u, m := range s.cluster {
		out.SetRow(u, linalg.Slice(m.Theta()))
	}
	return out
}

// Clusters returns the number of clusters of the latest partition.
func (s *SCLUB) Clusters() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return graph.Count(s.labels)
}

// Labels returns a copy of the latest cluster assignment.
func (s *SCLUB) Labels() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.labels...)
}

// Graph returns a copy of the current similarity graph.
func (s *SCLUB) Graph() *mat.Dense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mat.DenseCopyOf(s.adj)
}
