// Package linalg contains the dense linear algebra shared by the estimators:
// pseudo-inversion, log-determinants, symmetric matrix functions and the
// Kronecker embedding used to couple per-user models.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// rcond is the relative cutoff below which singular values are treated as zero.
const rcond = 1e-15

// Identity returns scale*I of size n.
func Identity(n int, scale float64) *mat.SymDense {
	id := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		id.SetSym(i, i, scale)
	}
	return id
}

// Pinv returns the Moore-Penrose pseudo-inverse of a computed from a thin SVD.
//
// Singular values below rcond*max(s) are dropped, so singular and rank
// deficient inputs never fail. For a truly singular system the result is an
// approximation: solving with it can leave a small but non-zero residual.
func Pinv(a mat.Matrix) *mat.Dense {
	r, c := a.Dims()

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return mat.NewDense(c, r, nil)
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := 0.0
	if len(s) > 0 {
		cutoff = rcond * s[0] // values are sorted in descending order
	}

	// V * diag(1/s) * U^T
	scaled := mat.NewDense(c, len(s), nil)
	for j, sv := range s {
		if sv <= cutoff || sv == 0 {
			continue
		}
		inv := 1.0 / sv
		for i := 0; i < c; i++ {
			scaled.Set(i, j, v.At(i, j)*inv)
		}
	}

	out := mat.NewDense(c, r, nil)
	out.Mul(scaled, u.T())
	return out
}

// LogDet returns log(det(a)). Non-positive determinants yield -Inf so that
// callers working in log space never see NaN.
func LogDet(a mat.Matrix) float64 {
	ld, sign := mat.LogDet(a)
	if sign <= 0 || math.IsNaN(ld) {
		return math.Inf(-1)
	}
	return ld
}

// Symmetrize returns (a + a^T)/2 as a symmetric matrix.
func Symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}

// InvSqrt returns pinv(a)^(1/2) for a symmetric positive semi-definite matrix,
// computed from its eigen-decomposition. Eigenvalues that are non-positive or
// below the relative cutoff contribute nothing. ok is false when the
// decomposition fails.
func InvSqrt(a mat.Symmetric) (out *mat.SymDense, ok bool) {
	return symFunc(a, func(lambda, cutoff float64) float64 {
		if lambda <= cutoff {
			return 0
		}
		return 1 / math.Sqrt(lambda)
	})
}

// Sqrt returns a^(1/2) for a symmetric positive semi-definite matrix.
// Negative eigenvalues produced by rounding are clamped to zero.
func Sqrt(a mat.Symmetric) (out *mat.SymDense, ok bool) {
	return symFunc(a, func(lambda, _ float64) float64 {
		if lambda <= 0 {
			return 0
		}
		return math.Sqrt(lambda)
	})
}

func symFunc(a mat.Symmetric, f func(lambda, cutoff float64) float64) (*mat.SymDense, bool) {
	n := a.SymmetricDim()

	var es mat.EigenSym
	if !es.Factorize(a, true) {
		return nil, false
	}
	values := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	maxAbs := 0.0
	for _, v := range values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	cutoff := rcond * float64(n) * maxAbs

	fv := make([]float64, n)
	for k, v := range values {
		fv[k] = f(v, cutoff)
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sum := 0.0
			for k := 0; k < n; k++ {
				if fv[k] == 0 {
					continue
				}
				sum += vecs.At(i, k) * fv[k] * vecs.At(j, k)
			}
			out.SetSym(i, j, sum)
		}
	}
	return out, true
}

// Kron returns sym(l) ⊗ I_d. The (i,j) entry of the symmetrized l is placed on
// the diagonal of block (i,j), which penalizes differences between the
// coefficient blocks of adjacent users.
func Kron(l mat.Matrix, d int) *mat.SymDense {
	n, _ := l.Dims()
	out := mat.NewSymDense(n*d, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := 0.5 * (l.At(i, j) + l.At(j, i))
			if v == 0 {
				continue
			}
			for k := 0; k < d; k++ {
				out.SetSym(i*d+k, j*d+k, v)
			}
		}
	}
	return out
}

// Embed zero-pads x into the joint space of users blocks of size len(x),
// placing it in the block owned by user.
func Embed(x mat.Vector, user, users int) *mat.VecDense {
	d := x.Len()
	long := mat.NewVecDense(users*d, nil)
	for k := 0; k < d; k++ {
		long.SetVec(user*d+k, x.AtVec(k))
	}
	return long
}

// Reshape turns a joint vector of users*d entries into a users x d matrix.
func Reshape(v mat.Vector, users, d int) *mat.Dense {
	out := mat.NewDense(users, d, nil)
	for u := 0; u < users; u++ {
		for k := 0; k < d; k++ {
			out.Set(u, k, v.AtVec(u*d+k))
		}
	}
	return out
}

// Quad returns x^T a x, clamped at zero. Pseudo-inverses of PSD matrices can
// produce tiny negative values through rounding.
func Quad(x mat.Vector, a mat.Matrix) float64 {
	return math.Max(0, mat.Inner(x, a, x))
}

// Slice copies the entries of v into a new slice.
func Slice(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// Block returns a copy of block user of a joint vector with blocks of size d.
func Block(v mat.Vector, user, d int) *mat.VecDense {
	out := mat.NewVecDense(d, nil)
	for k := 0; k < d; k++ {
		out.SetVec(k, v.AtVec(user*d+k))
	}
	return out
}
