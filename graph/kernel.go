package graph

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RBFRow returns exp(-gamma*||target - all[j]||^2) for every row j of all.
// A non-positive gamma defaults to 1/dim.
func RBFRow(target mat.Vector, all mat.Matrix, gamma float64) []float64 {
	n, d := all.Dims()
	if gamma <= 0 {
		gamma = 1 / float64(d)
	}

	t := make([]float64, d)
	for k := range t {
		t[k] = target.AtVec(k)
	}

	row := make([]float64, n)
	other := make([]float64, d)
	for j := 0; j < n; j++ {
		for k := range other {
			other[k] = all.At(j, k)
		}
		dist := floats.Distance(t, other, 2)
		row[j] = math.Exp(-gamma * dist * dist)
	}
	return row
}

// SetRow writes row into row and column u of adj and clears the diagonal
// entry, keeping adj symmetric with no self loop.
func SetRow(adj *mat.Dense, u int, row []float64) {
	for j, w := range row {
		adj.Set(u, j, w)
		adj.Set(j, u, w)
	}
	adj.Set(u, u, 0)
}

// TopK keeps the k largest entries of row and zeroes the rest in place.
// Ties are broken in favor of the lower index.
func TopK(row []float64, k int) {
	if k >= len(row) {
		return
	}
	if k <= 0 {
		for i := range row {
			row[i] = 0
		}
		return
	}

	idx := make([]int, len(row))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return row[idx[a]] > row[idx[b]]
	})
	for _, i := range idx[k:] {
		row[i] = 0
	}
}

// Threshold zeroes every entry of row below t in place.
func Threshold(row []float64, t float64) {
	for i, w := range row {
		if w < t {
			row[i] = 0
		}
	}
}
