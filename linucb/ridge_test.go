package linucb

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-graph-bandits/internal/linalg"
)

func TestSolversAgree(t *testing.T) {
	obs := []struct {
		x []float64
		y float64
	}{
		{[]float64{1, 0, 0}, 0.4},
		{[]float64{0.3, 0.8, 0.1}, 1.1},
		{[]float64{0, 0, 1}, -0.2},
		{[]float64{0.5, 0.5, 0.5}, 0.7},
		{[]float64{1, 0, 0}, 0.5},
	}

	solvers := []struct {
		name   string
		solver Solver
	}{
		{"pinv", PinvSolver{}},
		{"cholesky", CholeskySolver{}},
		{"sherman-morrison", ShermanMorrison{}},
		{"sherman-morrison pinv", ShermanMorrison{Fallback: PinvSolver{}}},
	}

	var ref []float64
	for _, s := range solvers {
		t.Run(s.name, func(t *testing.T) {
			r := NewRidge(linalg.Identity(3, 0.5), s.solver)
			for _, o := range obs {
				r.Observe(mat.NewVecDense(3, o.x), o.y)
			}
			got := linalg.Slice(r.Theta())
			if ref == nil {
				ref = got
				return
			}
			if !floats.EqualApprox(got, ref, 1e-9) {
				t.Errorf("θ = %v, want %v", got, ref)
			}

			var id mat.Dense
			id.Mul(r.Cov(), r.CovInv())
			if !mat.EqualApprox(&id, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-9) {
				t.Errorf("V·V⁻¹ = %v", mat.Formatted(&id))
			}
		})
	}
}

func TestRidgeSingularPrior(t *testing.T) {
	// With a zero prior V is singular until enough directions are observed;
	// the pseudo-inverse returns the minimum norm solution instead of failing.
	r := NewRidge(mat.NewSymDense(2, nil), nil)
	r.Observe(mat.NewVecDense(2, []float64{1, 0}), 2)

	got := linalg.Slice(r.Theta())
	if !floats.EqualApprox(got, []float64{2, 0}, 1e-12) {
		t.Errorf("θ = %v, want [2 0]", got)
	}
	if !math.IsInf(r.LogDet(), -1) {
		t.Errorf("LogDet() = %v, want -Inf", r.LogDet())
	}
	if w := r.Width(mat.NewVecDense(2, []float64{0, 1})); w != 0 {
		t.Errorf("Width() in unobserved direction = %v, want 0", w)
	}
}

func TestRidgeSetPrior(t *testing.T) {
	r := NewRidge(linalg.Identity(2, 1), ShermanMorrison{})
	x := mat.NewVecDense(2, []float64{1, 1})
	r.Observe(x, 3)

	r.SetPrior(linalg.Identity(2, 2))
	if r.Cov().At(0, 0) != 3 || r.Cov().At(0, 1) != 1 {
		t.Errorf("Cov() = %v, want prior 2I plus xxᵀ", mat.Formatted(r.Cov()))
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}

	// V = [[3 1] [1 3]], b = [3 3] gives θ = [0.75 0.75]
	if got := linalg.Slice(r.Theta()); !floats.EqualApprox(got, []float64{0.75, 0.75}, 1e-12) {
		t.Errorf("θ = %v, want [0.75 0.75]", got)
	}
}

func TestPool(t *testing.T) {
	prior := linalg.Identity(2, 1)
	a := NewRidge(prior, nil)
	b := NewRidge(prior, nil)
	a.Observe(mat.NewVecDense(2, []float64{1, 0}), 1)
	b.Observe(mat.NewVecDense(2, []float64{0, 1}), 2)

	p := Pool(prior, nil, []*Ridge{a, b})
	if p.Count() != 2 {
		t.Errorf("Count() = %d, want 2", p.Count())
	}
	// the prior is counted once: V = I + diag(1,1)
	if p.Cov().At(0, 0) != 2 || p.Cov().At(1, 1) != 2 {
		t.Errorf("Cov() = %v, want 2I", mat.Formatted(p.Cov()))
	}
	if got := linalg.Slice(p.Theta()); !floats.EqualApprox(got, []float64{0.5, 1}, 1e-12) {
		t.Errorf("θ = %v, want [0.5 1]", got)
	}
}

func TestSelfNormalizedWidth(t *testing.T) {
	tests := []struct {
		name   string
		logDet float64
		dim    int
		alpha  float64
		sigma  float64
		delta  float64
		want   float64
	}{
		{"prior only", 0, 3, 1, 1, math.Exp(-2), 2},
		{"alpha cancels", 3 * math.Log(2), 3, 2, 1, 1, 0},
		{"singular clamps", math.Inf(-1), 3, 1, 1, 0.1, 0},
		{"negative radicand clamps", -10, 2, 1, 1, 0.9, 0},
		// det(V) would overflow float64 here but the log ratio is finite
		{"large log det", 2000, 1000, 1, 0.5, 1, 0.5 * math.Sqrt(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelfNormalizedWidth(tt.logDet, tt.dim, tt.alpha, tt.sigma, tt.delta)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SelfNormalizedWidth() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"single", []float64{0.3}, 0},
		{"first of ties", []float64{1, 2, 2, 0}, 1},
		{"skips NaN", []float64{math.NaN(), -1, -3}, 1},
		{"NaN never wins", []float64{0, math.NaN(), 0.5}, 2},
		{"all NaN", []float64{math.NaN()}, -1},
		{"empty", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Argmax(tt.scores); got != tt.want {
				t.Errorf("Argmax() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInflationAndParse(t *testing.T) {
	if got := NoInflation.Factor(100); got != 1 {
		t.Errorf("NoInflation.Factor() = %v, want 1", got)
	}
	if got := LogInflation.Factor(0); got != 0 {
		t.Errorf("LogInflation.Factor(0) = %v, want 0", got)
	}
	if got, want := LogInflation.Factor(9), math.Sqrt(math.Log(10)); math.Abs(got-want) > 1e-12 {
		t.Errorf("LogInflation.Factor(9) = %v, want %v", got, want)
	}

	for _, c := range []Confidence{ConstantConfidence, SelfNormalizedConfidence} {
		if got, err := ParseConfidence(c.String()); err != nil || got != c {
			t.Errorf("ParseConfidence(%q) = %v, %v", c.String(), got, err)
		}
	}
	for _, i := range []Inflation{NoInflation, LogInflation} {
		if got, err := ParseInflation(i.String()); err != nil || got != i {
			t.Errorf("ParseInflation(%q) = %v, %v", i.String(), got, err)
		}
	}
	if _, err := ParseConfidence("bogus"); err == nil {
		t.Error("ParseConfidence(bogus) expected error")
	}
	if _, err := ParseInflation("bogus"); err == nil {
		t.Error("ParseInflation(bogus) expected error")
	}
}
