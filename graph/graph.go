// Package graph builds and maintains user similarity graphs: adjacency
// validation, graph Laplacians, kernel similarity rows and community
// detection over the thresholded graph.
package graph

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultStabilizer is the multiple of the identity added to a Laplacian
// before it is used as a regularizer.
const DefaultStabilizer = 0.01

// symTol is the tolerance used when checking adjacency symmetry.
const symTol = 1e-9

var (
	ErrNotSquare      = errors.New("adjacency matrix must be square")
	ErrAsymmetric     = errors.New("adjacency matrix must be symmetric")
	ErrNegativeWeight = errors.New("adjacency matrix must be non-negative")
	ErrSelfLoop       = errors.New("adjacency matrix must have a zero diagonal")
)

// Normalization selects the Laplacian variant.
type Normalization int

const (
	// Unnormalized is L = D - A.
	Unnormalized Normalization = iota
	// RandomWalk is L = D^-1 (D - A). Rows of isolated nodes are zero.
	RandomWalk
	// Symmetric is L = I - D^-1/2 A D^-1/2. Isolated nodes get a zero diagonal.
	Symmetric
)

func (n Normalization) String() string {
	switch n {
	case Unnormalized:
		return "unnormalized"
	case RandomWalk:
		return "random-walk"
	case Symmetric:
		return "symmetric"
	default:
		return fmt.Sprintf("Normalization(%d)", int(n))
	}
}

// ParseNormalization maps a configuration string to a Normalization.
func ParseNormalization(s string) (Normalization, error) {
	switch s {
	case "", "unnormalized":
		return Unnormalized, nil
	case "random-walk", "rw":
		return RandomWalk, nil
	case "symmetric", "normed":
		return Symmetric, nil
	}
	return 0, fmt.Errorf("unknown laplacian normalization %q", s)
}

// Validate checks that adj is a square, symmetric, non-negative matrix with
// a zero diagonal.
func Validate(adj mat.Matrix) error {
	r, c := adj.Dims()
	if r != c {
		return fmt.Errorf("%w: got %dx%d", ErrNotSquare, r, c)
	}
	for i := 0; i < r; i++ {
		if adj.At(i, i) != 0 {
			return fmt.Errorf("%w: entry (%d,%d) = %g", ErrSelfLoop, i, i, adj.At(i, i))
		}
		for j := 0; j < c; j++ {
			w := adj.At(i, j)
			if w < 0 || math.IsNaN(w) {
				return fmt.Errorf("%w: entry (%d,%d) = %g", ErrNegativeWeight, i, j, w)
			}
			if j > i && math.Abs(w-adj.At(j, i)) > symTol {
				return fmt.Errorf("%w: entries (%d,%d)=%g and (%d,%d)=%g", ErrAsymmetric, i, j, w, j, i, adj.At(j, i))
			}
		}
	}
	return nil
}

// Degrees returns the weighted degree of every node. The diagonal is ignored.
func Degrees(adj mat.Matrix) []float64 {
	n, _ := adj.Dims()
	deg := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				deg[i] += adj.At(i, j)
			}
		}
	}
	return deg
}

// Laplacian derives the graph Laplacian of adj. Self loops are ignored.
func Laplacian(adj mat.Matrix, kind Normalization) *mat.Dense {
	n, _ := adj.Dims()
	deg := Degrees(adj)
	lap := mat.NewDense(n, n, nil)

	switch kind {
	case RandomWalk:
		for i := 0; i < n; i++ {
			if deg[i] == 0 {
				continue
			}
			lap.Set(i, i, 1)
			for j := 0; j < n; j++ {
				if i != j {
					lap.Set(i, j, -adj.At(i, j)/deg[i])
				}
			}
		}
	case Symmetric:
		scale := make([]float64, n)
		for i, d := range deg {
			if d > 0 {
				scale[i] = 1 / math.Sqrt(d)
			}
		}
		for i := 0; i < n; i++ {
			if deg[i] > 0 {
				lap.Set(i, i, 1)
			}
			for j := 0; j < n; j++ {
				if i != j {
					lap.Set(i, j, -adj.At(i, j)*scale[i]*scale[j])
				}
			}
		}
	default:
		for i := 0; i < n; i++ {
			lap.Set(i, i, deg[i])
			for j := 0; j < n; j++ {
				if i != j {
					lap.Set(i, j, -adj.At(i, j))
				}
			}
		}
	}
	return lap
}

// Regularize returns lap + eps*I. A positive eps keeps the regularizer
// invertible even when the graph splits into disconnected components.
func Regularize(lap mat.Matrix, eps float64) *mat.Dense {
	out := mat.DenseCopyOf(lap)
	n, _ := out.Dims()
	for i := 0; i < n; i++ {
		out.Set(i, i, out.At(i, i)+eps)
	}
	return out
}
