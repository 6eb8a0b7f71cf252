// Package synth draws synthetic bandit problems: unit-norm item features, a
// user similarity graph, graph-smooth user preferences, payoff noise and a
// random round schedule.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/graph"
	"github.com/n0madic/go-graph-bandits/internal/linalg"
	"github.com/n0madic/go-graph-bandits/simulation"
)

// Graph kinds.
const (
	RBFGraph = "rbf"
	ERGraph  = "er"
)

// Params describe the problem to draw.
type Params struct {
	Users      int
	Items      int
	Dim        int
	PoolSize   int
	Horizon    int
	Noise      float64 // payoff noise standard deviation
	Graph      string  // RBFGraph or ERGraph
	EdgeProb   float64 // ER edge probability
	Threshold  float64 // RBF edges lighter than this are dropped
	Smoothness float64 // λ in U = (I + λL)⁻¹Z
}

// Problem is one drawn instance.
type Problem struct {
	Items     *mat.Dense // items×dim, unit rows
	Truth     *mat.Dense // users×dim, unit rows
	Noise     *mat.Dense // users×items
	Adjacency *mat.Dense // users×users
	Laplacian *mat.Dense // random-walk Laplacian of Adjacency
	Schedule  simulation.Schedule
}

// Oracle builds the reward oracle of the problem.
func (p *Problem) Oracle() (*simulation.Oracle, error) {
	return simulation.NewOracle(p.Items, p.Truth, p.Noise)
}

// Generate draws a problem from rng.
func Generate(p Params, rng *rand.Rand) (*Problem, error) {
	if p.Users <= 0 || p.Items <= 0 || p.Dim <= 0 || p.Horizon <= 0 {
		return nil, fmt.Errorf("users, items, dim and horizon must be positive")
	}
	if p.PoolSize <= 0 || p.PoolSize > p.Items {
		return nil, fmt.Errorf("pool size must be in [1,%d], got %d", p.Items, p.PoolSize)
	}

	adj, err := Adjacency(p, rng)
	if err != nil {
		return nil, err
	}
	lap := graph.Laplacian(adj, graph.RandomWalk)

	prob := &Problem{
		Items:     unitRows(normal(rng, p.Items, p.Dim, 1)),
		Adjacency: adj,
		Laplacian: lap,
		Truth:     Smooth(normal(rng, p.Users, p.Dim, 1), lap, p.Smoothness),
		Noise:     normal(rng, p.Users, p.Items, p.Noise),
	}

	prob.Schedule = simulation.Schedule{
		Users: make([]int, p.Horizon),
		Pools: make([][]int, p.Horizon),
	}
	for t := 0; t < p.Horizon; t++ {
		prob.Schedule.Users[t] = rng.IntN(p.Users)
		pool := make([]int, p.PoolSize)
		for i := range pool {
			pool[i] = rng.IntN(p.Items)
		}
		prob.Schedule.Pools[t] = pool
	}
	return prob, nil
}

// Adjacency draws the true user graph.
func Adjacency(p Params, rng *rand.Rand) (*mat.Dense, error) {
	adj := mat.NewDense(p.Users, p.Users, nil)
	switch p.Graph {
	case "", RBFGraph:
		points := normal(rng, p.Users, p.Dim, 1)
		for u := 0; u < p.Users; u++ {
			row := graph.RBFRow(points.RowView(u), points, 0)
			if p.Threshold > 0 {
				graph.Threshold(row, p.Threshold)
			}
			adj.SetRow(u, row)
			adj.Set(u, u, 0)
		}
	case ERGraph:
		for i := 0; i < p.Users; i++ {
			for j := i + 1; j < p.Users; j++ {
				if rng.Float64() < p.EdgeProb {
					w := math.Round(rng.Float64()*100) / 100
					adj.Set(i, j, w)
					adj.Set(j, i, w)
				}
			}
		}
	default:
		return nil, fmt.Errorf("unknown graph kind %q", p.Graph)
	}
	return adj, nil
}

// Smooth returns the unit-normalized rows of (I + λL)⁺Z, which pulls the
// preferences of adjacent users together.
func Smooth(z *mat.Dense, lap mat.Matrix, lambda float64) *mat.Dense {
	n, _ := lap.Dims()
	var m mat.Dense
	m.Scale(lambda, lap)
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)+1)
	}
	var out mat.Dense
	out.Mul(linalg.Pinv(&m), z)
	return unitRows(&out)
}

func normal(rng *rand.Rand, r, c int, scale float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = scale * rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func unitRows(m *mat.Dense) *mat.Dense {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
	}
	return m
}
