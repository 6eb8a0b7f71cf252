package graphucb

import (
	"gonum.org/v1/gonum/mat"
)

// Neighborhood exposes the per-user least-squares estimates and the current
// regularized Laplacian to a PointEstimate.
type Neighborhood struct {
	Locals    mat.Matrix // users×dim local estimates
	Laplacian mat.Matrix // users×users
}

// Average blends the local estimate of user with its neighbors, weighted by
// the negated Laplacian row: θ_u − Σ_j L_uj θ_j.
func (n Neighborhood) Average(user int) *mat.VecDense {
	users, d := n.Locals.Dims()
	avg := mat.NewVecDense(d, nil)
	for k := 0; k < d; k++ {
		v := n.Locals.At(user, k)
		for j := 0; j < users; j++ {
			v -= n.Laplacian.At(user, j) * n.Locals.At(j, k)
		}
		avg.SetVec(k, v)
	}
	return avg
}

// PointEstimate picks the coefficient vector used for prediction.
type PointEstimate interface {
	Point(user int, joint mat.Vector, n Neighborhood) mat.Vector
}

// JointEstimate predicts with the user's block of the joint Laplacian-regularized solution.
type JointEstimate struct{}

// Point implements PointEstimate.
func (JointEstimate) Point(_ int, joint mat.Vector, _ Neighborhood) mat.Vector {
	return joint
}

// NeighborAverage predicts with the neighbor-weighted average of local
// estimates, trading bias of the joint solution for lower variance.
type NeighborAverage struct{}

// Point implements PointEstimate.
func (NeighborAverage) Point(user int, _ mat.Vector, n Neighborhood) mat.Vector {
	return n.Average(user)
}
