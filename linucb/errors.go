package linucb

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmptyPool is returned when Select is called without candidates.
	ErrEmptyPool = errors.New("candidate pool is empty")
	// ErrUserOutOfRange is returned for a user index outside [0, users).
	ErrUserOutOfRange = errors.New("user index out of range")
)

// InputError represents an input validation error
type InputError struct {
	Expected int
	Got      int
	Type     string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s must have size %d, got %d", e.Type, e.Expected, e.Got)
}

// CheckUser validates a user index against the number of users.
func CheckUser(user, users int) error {
	if user < 0 || user >= users {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrUserOutOfRange, user, users)
	}
	return nil
}

// CheckVector validates the length of a feature vector.
func CheckVector(dim int, x mat.Vector, kind string) error {
	if x == nil {
		return &InputError{Expected: dim, Got: 0, Type: kind}
	}
	if x.Len() != dim {
		return &InputError{Expected: dim, Got: x.Len(), Type: kind}
	}
	return nil
}

// CheckCandidates validates a selection request: the user index must be in
// range, the pool non-empty and every candidate of length dim.
func CheckCandidates(dim, users, user int, candidates []mat.Vector) error {
	if err := CheckUser(user, users); err != nil {
		return err
	}
	if len(candidates) == 0 {
		return ErrEmptyPool
	}
	for i, x := range candidates {
		if err := CheckVector(dim, x, "item features"); err != nil {
			return fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	return nil
}
