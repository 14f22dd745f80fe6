package pixtype

import "fmt"

// Domain is the closed interval [1, Max] of valid logical indices.
// A zero Max leaves the upper end unbounded.
type Domain struct {
	Max int
}

// Contains reports whether index lies inside the domain.
func (d Domain) Contains(index int) bool {
	if index < 1 {
		return false
	}
	return d.Max <= 0 || index <= d.Max
}

// Check returns an error wrapping ErrOutOfRange when index is outside the domain.
func (d Domain) Check(index int) error {
	if d.Contains(index) {
		return nil
	}
	if d.Max <= 0 {
		return fmt.Errorf("index %d: %w", index, ErrOutOfRange)
	}
	return fmt.Errorf("index %d not in [1, %d]: %w", index, d.Max, ErrOutOfRange)
}
