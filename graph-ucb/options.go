// Package graphucb implements linear UCB bandits whose users are coupled
// through a graph Laplacian regularizer: GOB with a fixed graph and LapUCB
// with a graph re-estimated from the running per-user estimates.
package graphucb

import (
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/graph"
	"github.com/n0madic/go-graph-bandits/linucb"
)

type config struct {
	params        linucb.Params
	stabilizer    float64
	gamma         float64
	threshold     float64
	neighbors     int
	normalization graph.Normalization
	point         PointEstimate
	seed          mat.Matrix
}

func newConfig() config {
	return config{
		params:        linucb.DefaultParams(),
		stabilizer:    graph.DefaultStabilizer,
		normalization: graph.Symmetric,
		point:         JointEstimate{},
	}
}

// Option configures GOB and LapUCB.
type Option func(*config)

// WithParams applies UCB hyperparameter options
func WithParams(options ...linucb.Option) Option {
	return func(c *config) {
		c.params.Apply(options...)
	}
}

// WithStabilizer sets the multiple of the identity added to the Laplacian (must be positive)
func WithStabilizer(eps float64) Option {
	return func(c *config) {
		c.stabilizer = eps
	}
}

// WithGamma sets the RBF kernel width used to refresh the graph (<= 0 means 1/dim)
func WithGamma(gamma float64) Option {
	return func(c *config) {
		c.gamma = gamma
	}
}

// WithThreshold drops refreshed edges lighter than t
func WithThreshold(t float64) Option {
	return func(c *config) {
		c.threshold = t
	}
}

// WithNeighbors keeps only the k heaviest refreshed edges of the acting user (0 keeps all)
func WithNeighbors(k int) Option {
	return func(c *config) {
		c.neighbors = k
	}
}

// WithNormalization selects the Laplacian variant derived from the refreshed graph
func WithNormalization(n graph.Normalization) Option {
	return func(c *config) {
		c.normalization = n
	}
}

// WithPointEstimate selects the coefficients LapUCB predicts with
func WithPointEstimate(p PointEstimate) Option {
	return func(c *config) {
		c.point = p
	}
}

// WithSeedGraph sets the adjacency LapUCB starts from. Without it the
// graph starts empty and only the stabilizer couples users.
func WithSeedGraph(adj mat.Matrix) Option {
	return func(c *config) {
		c.seed = adj
	}
}
