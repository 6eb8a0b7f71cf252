package linalg

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPinvInvertible(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{4, 1, 1, 3})
	inv := Pinv(a)

	var prod mat.Dense
	prod.Mul(a, inv)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(prod.At(i, j)-want) > 1e-10 {
				t.Errorf("A*pinv(A)[%d,%d] = %f, want %f", i, j, prod.At(i, j), want)
			}
		}
	}
}

func TestPinvSingular(t *testing.T) {
	// rank one: pinv must satisfy A*A+*A = A instead of failing
	a := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	inv := Pinv(a)

	var tmp, back mat.Dense
	tmp.Mul(a, inv)
	back.Mul(&tmp, a)
	if !mat.EqualApprox(&back, a, 1e-10) {
		t.Errorf("A*pinv(A)*A = %v, want %v", mat.Formatted(&back), mat.Formatted(a))
	}
	if math.Abs(inv.At(0, 0)-0.25) > 1e-10 {
		t.Errorf("pinv[0,0] = %f, want 0.25", inv.At(0, 0))
	}
}

func TestPinvZero(t *testing.T) {
	inv := Pinv(mat.NewDense(3, 3, nil))
	if mat.Norm(inv, 2) != 0 {
		t.Errorf("pinv of zero matrix should be zero, got %v", mat.Formatted(inv))
	}
}

func TestLogDet(t *testing.T) {
	if got := LogDet(Identity(4, 2)); math.Abs(got-4*math.Log(2)) > 1e-12 {
		t.Errorf("LogDet(2I) = %f, want %f", got, 4*math.Log(2))
	}
	if got := LogDet(mat.NewDense(2, 2, []float64{1, 1, 1, 1})); !math.IsInf(got, -1) {
		t.Errorf("LogDet(singular) = %f, want -Inf", got)
	}
}

func TestInvSqrt(t *testing.T) {
	a := mat.NewSymDense(2, []float64{2, 1, 1, 2})
	r, ok := InvSqrt(a)
	if !ok {
		t.Fatal("InvSqrt failed")
	}

	// r * a * r = I
	var tmp, prod mat.Dense
	tmp.Mul(r, a)
	prod.Mul(&tmp, r)
	if !mat.EqualApprox(&prod, Identity(2, 1), 1e-10) {
		t.Errorf("R*A*R = %v, want I", mat.Formatted(&prod))
	}

	s, ok := Sqrt(a)
	if !ok {
		t.Fatal("Sqrt failed")
	}
	var sq mat.Dense
	sq.Mul(s, s)
	if !mat.EqualApprox(&sq, a, 1e-10) {
		t.Errorf("Sqrt(A)^2 = %v, want %v", mat.Formatted(&sq), mat.Formatted(a))
	}
}

func TestKronEmbedReshape(t *testing.T) {
	l := mat.NewDense(2, 2, []float64{1, -1, -1, 1})
	k := Kron(l, 3)
	if k.SymmetricDim() != 6 {
		t.Fatalf("Kron dim = %d, want 6", k.SymmetricDim())
	}
	if k.At(0, 3) != -1 || k.At(1, 4) != -1 || k.At(0, 4) != 0 {
		t.Errorf("unexpected Kronecker layout: %v", mat.Formatted(k))
	}

	x := mat.NewVecDense(3, []float64{1, 2, 3})
	long := Embed(x, 1, 2)
	want := []float64{0, 0, 0, 1, 2, 3}
	for i, w := range want {
		if long.AtVec(i) != w {
			t.Errorf("Embed[%d] = %f, want %f", i, long.AtVec(i), w)
		}
	}

	m := Reshape(long, 2, 3)
	if m.At(1, 2) != 3 || m.At(0, 0) != 0 {
		t.Errorf("Reshape = %v", mat.Formatted(m))
	}
}

func TestQuadNonNegative(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{-1e-18, 0, 0, -1e-18})
	if q := Quad(mat.NewVecDense(2, []float64{1, 1}), a); q != 0 {
		t.Errorf("Quad = %g, want 0", q)
	}
}
