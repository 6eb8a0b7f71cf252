// Package simulation drives bandit policies over a fixed schedule of users
// and item pools, reveals payoffs from a reward oracle and records regret,
// estimation error and confidence traces.
package simulation

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrScheduleLength is returned when the user and pool sequences differ in length.
	ErrScheduleLength = errors.New("schedule users and pools differ in length")
	// ErrDimension is returned when oracle inputs disagree on their shapes.
	ErrDimension = errors.New("dimension mismatch")
)

// Oracle holds the hidden ground truth: item features, true user
// coefficients and the payoff matrix truth·itemsᵀ plus optional noise.
// It is read-only once built and may be shared between runs.
type Oracle struct {
	items   *mat.Dense // items×dim
	truth   *mat.Dense // users×dim
	payoffs *mat.Dense // users×items
}

// NewOracle builds an oracle. noise may be nil; otherwise it must be
// users×items and is added to the noiseless payoffs.
func NewOracle(items, truth, noise mat.Matrix) (*Oracle, error) {
	itemNum, dim := items.Dims()
	users, tdim := truth.Dims()
	if itemNum == 0 || users == 0 || dim == 0 {
		return nil, fmt.Errorf("%w: empty items or users", ErrDimension)
	}
	if dim != tdim {
		return nil, fmt.Errorf("%w: items have %d features, users %d", ErrDimension, dim, tdim)
	}

	o := &Oracle{
		items: mat.DenseCopyOf(items),
		truth: mat.DenseCopyOf(truth),
	}
	o.payoffs = mat.NewDense(users, itemNum, nil)
	o.payoffs.Mul(o.truth, o.items.T())
	if noise != nil {
		if r, c := noise.Dims(); r != users || c != itemNum {
			return nil, fmt.Errorf("%w: noise is %dx%d, want %dx%d", ErrDimension, r, c, users, itemNum)
		}
		o.payoffs.Add(o.payoffs, noise)
	}
	return o, nil
}

// Users returns the number of users.
func (o *Oracle) Users() int {
	r, _ := o.truth.Dims()
	return r
}

// Items returns the number of items.
func (o *Oracle) Items() int {
	r, _ := o.items.Dims()
	return r
}

// Dim returns the feature dimension.
func (o *Oracle) Dim() int {
	_, c := o.items.Dims()
	return c
}

// Item returns the feature vector of item i.
func (o *Oracle) Item(i int) mat.Vector {
	return o.items.RowView(i)
}

// Candidates returns the feature vectors of the items in pool.
func (o *Oracle) Candidates(pool []int) []mat.Vector {
	out := make([]mat.Vector, len(pool))
	for i, item := range pool {
		out[i] = o.Item(item)
	}
	return out
}

// Payoff returns the realized payoff of item for user.
func (o *Oracle) Payoff(user, item int) float64 {
	return o.payoffs.At(user, item)
}

// Best returns the highest payoff user can obtain from pool.
func (o *Oracle) Best(user int, pool []int) float64 {
	best := o.Payoff(user, pool[0])
	for _, item := range pool[1:] {
		if p := o.Payoff(user, item); p > best {
			best = p
		}
	}
	return best
}

// Regret returns the gap between the best payoff in pool and the payoff of item.
func (o *Oracle) Regret(user int, pool []int, item int) float64 {
	return o.Best(user, pool) - o.Payoff(user, item)
}

// Error returns the Frobenius distance between est and the true coefficients.
func (o *Oracle) Error(est mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(est, o.truth)
	return mat.Norm(&diff, 2)
}

// Truth returns a copy of the true user coefficients.
func (o *Oracle) Truth() *mat.Dense {
	return mat.DenseCopyOf(o.truth)
}

// Schedule is the fixed sequence of acting users and offered pools.
type Schedule struct {
	Users []int
	Pools [][]int
}

// Horizon returns the number of rounds.
func (s Schedule) Horizon() int {
	return len(s.Users)
}

// Validate checks the schedule against the oracle's user and item counts.
func (s Schedule) Validate(users, items int) error {
	if len(s.Users) != len(s.Pools) {
		return fmt.Errorf("%w: %d users, %d pools", ErrScheduleLength, len(s.Users), len(s.Pools))
	}
	for t, u := range s.Users {
		if u < 0 || u >= users {
			return fmt.Errorf("round %d: user %d not in [0,%d)", t, u, users)
		}
		if len(s.Pools[t]) == 0 {
			return fmt.Errorf("round %d: empty item pool", t)
		}
		for _, item := range s.Pools[t] {
			if item < 0 || item >= items {
				return fmt.Errorf("round %d: item %d not in [0,%d)", t, item, items)
			}
		}
	}
	return nil
}
