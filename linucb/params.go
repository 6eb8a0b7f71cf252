package linucb

import (
	"fmt"
	"math"
)

// Params are the hyperparameters shared by every UCB variant.
type Params struct {
	Alpha      float64    // ridge prior weight
	Beta       float64    // exploration scale for ConstantConfidence
	Sigma      float64    // noise scale of the payoffs
	Delta      float64    // failure probability of the confidence bound
	Bound      float64    // assumed norm bound S on the coefficients
	Confidence Confidence // how β is obtained
	Inflation  Inflation  // round-dependent bonus multiplier
	Solver     Solver     // coefficient solver
}

// DefaultParams returns the defaults used by every constructor.
func DefaultParams() Params {
	return Params{
		Alpha:  1.0,
		Beta:   0.1,
		Sigma:  0.01,
		Delta:  0.1,
		Bound:  1.0,
		Solver: PinvSolver{},
	}
}

// Option configures Params.
type Option func(*Params)

// WithAlpha sets the ridge prior weight
func WithAlpha(alpha float64) Option {
	return func(p *Params) {
		p.Alpha = alpha
	}
}

// WithBeta sets the constant exploration scale
func WithBeta(beta float64) Option {
	return func(p *Params) {
		p.Beta = beta
	}
}

// WithSigma sets the payoff noise scale
func WithSigma(sigma float64) Option {
	return func(p *Params) {
		p.Sigma = sigma
	}
}

// WithDelta sets the failure probability
func WithDelta(delta float64) Option {
	return func(p *Params) {
		p.Delta = delta
	}
}

// WithBound sets the coefficient norm bound used by the self-normalized width
func WithBound(bound float64) Option {
	return func(p *Params) {
		p.Bound = bound
	}
}

// WithConfidence selects the β policy
func WithConfidence(c Confidence) Option {
	return func(p *Params) {
		p.Confidence = c
	}
}

// WithInflation selects the round-dependent bonus multiplier
func WithInflation(i Inflation) Option {
	return func(p *Params) {
		p.Inflation = i
	}
}

// WithSolver sets the coefficient solver
func WithSolver(s Solver) Option {
	return func(p *Params) {
		p.Solver = s
	}
}

// Apply applies opts on top of p.
func (p *Params) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(p)
	}
}

// Validate checks the hyperparameters.
func (p Params) Validate() error {
	switch {
	case !(p.Alpha > 0):
		return fmt.Errorf("alpha must be positive, got %g", p.Alpha)
	case p.Beta < 0 || math.IsNaN(p.Beta):
		return fmt.Errorf("beta must be non-negative, got %g", p.Beta)
	case p.Sigma < 0 || math.IsNaN(p.Sigma):
		return fmt.Errorf("sigma must be non-negative, got %g", p.Sigma)
	case !(p.Delta > 0 && p.Delta < 1):
		return fmt.Errorf("delta must be in (0,1), got %g", p.Delta)
	case p.Bound < 0 || math.IsNaN(p.Bound):
		return fmt.Errorf("bound must be non-negative, got %g", p.Bound)
	case p.Solver == nil:
		return fmt.Errorf("solver must be set")
	}
	return nil
}

// Radius returns β for the statistics held by r.
func (p Params) Radius(r *Ridge) float64 {
	if p.Confidence == ConstantConfidence {
		return p.Beta
	}
	return SelfNormalizedWidth(r.LogDet(), r.Dim(), p.Alpha, p.Sigma, p.Delta) + math.Sqrt(p.Alpha)*p.Bound
}
