package linucb

import (
	"fmt"
	"math"
)

// Confidence selects how the exploration scale β is obtained.
type Confidence int

const (
	// ConstantConfidence uses the configured β as is.
	ConstantConfidence Confidence = iota
	// SelfNormalizedConfidence derives β from the self-normalized martingale
	// bound σ·sqrt(2·log(det(V)^½·det(αI)^-½/δ)) + sqrt(α)·S.
	SelfNormalizedConfidence
)

func (c Confidence) String() string {
	switch c {
	case ConstantConfidence:
		return "constant"
	case SelfNormalizedConfidence:
		return "self-normalized"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// ParseConfidence maps a configuration string to a Confidence.
func ParseConfidence(s string) (Confidence, error) {
	switch s {
	case "", "constant":
		return ConstantConfidence, nil
	case "self-normalized", "selfnormalized":
		return SelfNormalizedConfidence, nil
	}
	return 0, fmt.Errorf("unknown confidence mode %q", s)
}

// Inflation is the round-dependent multiplier g(round) applied to the
// exploration bonus.
type Inflation int

const (
	// NoInflation is g ≡ 1.
	NoInflation Inflation = iota
	// LogInflation is g = sqrt(log(round+1)).
	LogInflation
)

// Factor returns g(round). Rounds count from zero.
func (i Inflation) Factor(round int) float64 {
	if i == LogInflation {
		return math.Sqrt(math.Log(float64(round) + 1))
	}
	return 1
}

func (i Inflation) String() string {
	switch i {
	case NoInflation:
		return "none"
	case LogInflation:
		return "log"
	default:
		return fmt.Sprintf("Inflation(%d)", int(i))
	}
}

// ParseInflation maps a configuration string to an Inflation.
func ParseInflation(s string) (Inflation, error) {
	switch s {
	case "", "none":
		return NoInflation, nil
	case "log":
		return LogInflation, nil
	}
	return 0, fmt.Errorf("unknown inflation %q", s)
}

// SelfNormalizedWidth returns σ·sqrt(2·(½·logdet V − ½·dim·log α − log δ)).
// The determinant ratio is evaluated in log space so large dim·users
// products do not overflow; a negative radicand clamps to zero.
func SelfNormalizedWidth(logDet float64, dim int, alpha, sigma, delta float64) float64 {
	r := 2 * (0.5*logDet - 0.5*float64(dim)*math.Log(alpha) - math.Log(delta))
	if !(r > 0) {
		return 0
	}
	return sigma * math.Sqrt(r)
}

// Argmax returns the index of the first maximal score. NaN scores never
// win; -1 is returned when no score is comparable.
func Argmax(scores []float64) int {
	best := -1
	for i, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best
}
