package graph

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"
)

// Partitioner splits the nodes of a weighted graph into clusters.
// Partition returns one label per node, numbered 0..c-1 in order of first
// appearance so that node 0 is always in cluster 0.
type Partitioner interface {
	Partition(adj mat.Matrix) ([]int, error)
}

// Louvain detects communities by modularity optimization.
type Louvain struct {
	// Resolution is the modularity resolution; values <= 0 mean 1.
	Resolution float64
	// Seed makes the node visiting order reproducible.
	Seed uint64
}

// Partition implements Partitioner.
func (l Louvain) Partition(adj mat.Matrix) ([]int, error) {
	if err := checkSquare(adj); err != nil {
		return nil, err
	}
	g := ToWeighted(adj)
	n, _ := adj.Dims()
	if g.WeightedEdges().Len() == 0 {
		return singletons(n), nil
	}

	res := l.Resolution
	if res <= 0 {
		res = 1
	}
	reduced := community.Modularize(g, res, rand.NewPCG(l.Seed, l.Seed))
	return Normalize(labels(n, reduced.Communities())), nil
}

// Components clusters nodes by the connected components of the graph with
// all positive-weight edges kept.
type Components struct{}

// Partition implements Partitioner.
func (Components) Partition(adj mat.Matrix) ([]int, error) {
	if err := checkSquare(adj); err != nil {
		return nil, err
	}
	n, _ := adj.Dims()
	return Normalize(labels(n, topo.ConnectedComponents(ToWeighted(adj)))), nil
}

// ToWeighted converts adj into a gonum weighted undirected graph. Only the
// upper triangle is read, so the result is symmetric by construction.
func ToWeighted(adj mat.Matrix) *simple.WeightedUndirectedGraph {
	n, _ := adj.Dims()
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w := adj.At(i, j); w > 0 {
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(j), w))
			}
		}
	}
	return g
}

// Normalize relabels clusters to 0..c-1 in order of first appearance.
func Normalize(labels []int) []int {
	seen := make(map[int]int)
	out := make([]int, len(labels))
	for i, c := range labels {
		id, ok := seen[c]
		if !ok {
			id = len(seen)
			seen[c] = id
		}
		out[i] = id
	}
	return out
}

// Count returns the number of distinct labels.
func Count(labels []int) int {
	seen := make(map[int]struct{})
	for _, c := range labels {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// Members returns the nodes sharing a cluster with node u, in ascending order.
func Members(labels []int, u int) []int {
	var out []int
	for i, c := range labels {
		if c == labels[u] {
			out = append(out, i)
		}
	}
	return out
}

func labels(n int, groups [][]graph.Node) []int {
	out := make([]int, n)
	for c, nodes := range groups {
		for _, node := range nodes {
			out[node.ID()] = c
		}
	}
	return out
}

func singletons(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func checkSquare(adj mat.Matrix) error {
	if r, c := adj.Dims(); r != c {
		return ErrNotSquare
	}
	return nil
}
