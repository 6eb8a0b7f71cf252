package sclub

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/graph"
	"github.com/n0madic/go-graph-bandits/linucb"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		users   int
		options []Option
		wantErr bool
	}{
		{name: "defaults", dim: 3, users: 5},
		{name: "custom", dim: 3, users: 5, options: []Option{
			WithNeighbors(2),
			WithThreshold(0.2),
			WithGamma(0.5),
			WithPartitioner(graph.Louvain{Resolution: 0.8, Seed: 9}),
			WithParams(linucb.WithAlpha(0.5), linucb.WithInflation(linucb.LogInflation)),
		}},
		{name: "too many neighbors", dim: 3, users: 2, wantErr: true},
		{name: "nil partitioner", dim: 3, users: 5, options: []Option{WithPartitioner(nil)}, wantErr: true},
		{name: "bad delta", dim: 3, users: 5, options: []Option{WithParams(linucb.WithDelta(0))}, wantErr: true},
		{name: "zero users", dim: 3, users: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.dim, tt.users, tt.options...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}
			if got := s.Clusters(); got != tt.users {
				t.Errorf("Clusters() = %d, want %d singletons", got, tt.users)
			}
		})
	}
}

func TestPartitionWellFormed(t *testing.T) {
	const users, dim = 8, 3
	s, err := New(dim, users, WithPartitioner(graph.Louvain{Seed: 1}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rng := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 60; round++ {
		u := rng.IntN(users)
		x := mat.NewVecDense(dim, []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})
		if err := s.Update(u, x, rng.Float64()); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		labels := s.Labels()
		if len(labels) != users {
			t.Fatalf("round %d: %d labels, want %d", round, len(labels), users)
		}
		c := s.Clusters()
		if c < 1 || c > users {
			t.Fatalf("round %d: Clusters() = %d", round, c)
		}
		for i, l := range labels {
			if l < 0 || l >= c {
				t.Fatalf("round %d: label[%d] = %d outside [0,%d)", round, i, l, c)
			}
		}
		if err := graph.Validate(s.Graph()); err != nil {
			t.Fatalf("round %d: graph invalid: %v", round, err)
		}
	}
}

func TestCLUBSeparatesOpposedGroups(t *testing.T) {
	const users, dim = 4, 2
	s, err := NewCLUB(dim, users, 0.5, WithGamma(1))
	if err != nil {
		t.Fatalf("NewCLUB() error = %v", err)
	}
	truth := [][]float64{{1, 0}, {1, 0}, {-1, 0}, {-1, 0}}
	items := []mat.Vector{
		mat.NewVecDense(dim, []float64{1, 0}),
		mat.NewVecDense(dim, []float64{0, 1}),
	}

	for round := 0; round < 40; round++ {
		u := round % users
		x := items[(round/users)%2]
		y := mat.Dot(x, mat.NewVecDense(dim, truth[u]))
		if err := s.Update(u, x, y); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	labels := s.Labels()
	if s.Clusters() != 2 {
		t.Fatalf("Clusters() = %d, want 2 (labels %v)", s.Clusters(), labels)
	}
	if labels[0] != labels[1] || labels[2] != labels[3] || labels[0] == labels[2] {
		t.Errorf("Labels() = %v, want {0,1} and {2,3}", labels)
	}

	est := s.ClusterEstimates()
	if !mat.Equal(est.RowView(0), est.RowView(1)) {
		t.Errorf("cluster members do not share a model: %v vs %v", est.RawRowView(0), est.RawRowView(1))
	}
	if est.At(0, 0) <= 0 || est.At(2, 0) >= 0 {
		t.Errorf("ClusterEstimates() = %v, want opposite signs per group", mat.Formatted(est))
	}
}

func TestPooledModelCountsPriorOnce(t *testing.T) {
	s, err := NewCLUB(2, 3, 0.1)
	if err != nil {
		t.Fatalf("NewCLUB() error = %v", err)
	}
	if err := s.Update(0, mat.NewVecDense(2, []float64{1, 0}), 1); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if s.Clusters() != 1 {
		t.Fatalf("Clusters() = %d, want 1", s.Clusters())
	}
	est := s.ClusterEstimates()
	for u := 0; u < 3; u++ {
		if math.Abs(est.At(u, 0)-0.5) > 1e-12 || math.Abs(est.At(u, 1)) > 1e-12 {
			t.Errorf("ClusterEstimates() row %d = %v, want [0.5 0]", u, est.RawRowView(u))
		}
	}
}

func TestEstimatesAreIndividual(t *testing.T) {
	s, err := New(2, 3, WithNeighbors(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Update(0, mat.NewVecDense(2, []float64{1, 0}), 1); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := s.Update(1, mat.NewVecDense(2, []float64{0, 1}), 1); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := [][]float64{{0.5, 0}, {0, 0.5}, {0, 0}}
	est := s.Estimates()
	for u, w := range want {
		own := s.local[u].Theta()
		for j := range w {
			if math.Abs(est.At(u, j)-w[j]) > 1e-12 {
				t.Errorf("Estimates() row %d = %v, want %v", u, est.RawRowView(u), w)
				break
			}
			if math.Abs(est.At(u, j)-own.AtVec(j)) > 1e-12 {
				t.Errorf("Estimates() row %d = %v, differs from the user's own regression", u, est.RawRowView(u))
				break
			}
		}
	}

	pooled := s.ClusterEstimates()
	for _, u := range graph.Members(s.Labels(), 1) {
		if !mat.Equal(pooled.RowView(u), pooled.RowView(1)) {
			t.Errorf("ClusterEstimates() row %d = %v, want the pooled row %v", u, pooled.RawRowView(u), pooled.RawRowView(1))
		}
	}
}

func TestNeighborsExcludeSelf(t *testing.T) {
	s, err := New(2, 3, WithNeighbors(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Update(0, mat.NewVecDense(2, []float64{1, 0}), 1); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if w := s.adj.At(0, 0); w != 0 {
		t.Errorf("self weight = %v, want 0", w)
	}
	kept := 0
	for j := 1; j < 3; j++ {
		if s.adj.At(0, j) > 0 {
			kept++
		}
	}
	if kept != 2 {
		t.Errorf("kept %d neighbors, want 2 (row %v)", kept, s.adj.RawRowView(0))
	}
}

func TestSelect(t *testing.T) {
	s, err := New(2, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	items := []mat.Vector{
		mat.NewVecDense(2, []float64{1, 0}),
		mat.NewVecDense(2, []float64{0, 1}),
	}
	for i := 0; i < 4; i++ {
		_ = s.Update(1, items[0], 1)
		_ = s.Update(1, items[1], 0)
	}

	got, err := s.Select(1, items, 3)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got != 0 {
		t.Errorf("Select() = %d, want 0", got)
	}
	for i := 0; i < 3; i++ {
		if again, _ := s.Select(1, items, 3); again != got {
			t.Fatalf("Select() not idempotent: %d then %d", got, again)
		}
	}

	if _, err := s.Select(1, []mat.Vector{}, 0); !errors.Is(err, linucb.ErrEmptyPool) {
		t.Errorf("Select(empty) error = %v, want ErrEmptyPool", err)
	}
	if err := s.Update(5, items[0], 1); !errors.Is(err, linucb.ErrUserOutOfRange) {
		t.Errorf("Update(user 5) error = %v, want ErrUserOutOfRange", err)
	}
	if s.Beta(1) != linucb.DefaultParams().Beta {
		t.Errorf("Beta() = %v, want constant default", s.Beta(1))
	}
}
