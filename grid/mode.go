package grid

import (
	"fmt"
	"strings"
)

// Mode selects which logical indices the grid shows.
type Mode int

const (
	// All shows every index.
	All Mode = iota
	// Odd shows 1, 3, 5, ...
	Odd
	// Even shows 2, 4, 6, ...
	Even
)

func (m Mode) String() string {
	switch m {
	case All:
		return "all"
	case Odd:
		return "odd"
	case Even:
		return "even"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "all", "odd" or "even", ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return All, nil
	case "odd":
		return Odd, nil
	case "even":
		return Even, nil
	}
	return All, fmt.Errorf("grid: unknown mode %q", s)
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}

// Logical maps a 1-based display position to a logical index.
func (m Mode) Logical(display int) int {
	switch m {
	case Odd:
		return 2*display - 1
	case Even:
		return 2 * display
	default:
		return display
	}
}

// LastElement returns the number of display positions needed to show every
// index in [1, maxIndex] that m accepts, or Unbounded when maxIndex is 0.
func (m Mode) LastElement(maxIndex int) int {
	if maxIndex <= 0 {
		return Unbounded
	}
	switch m {
	case Odd:
		return (maxIndex + 1) / 2
	case Even:
		return maxIndex / 2
	default:
		return maxIndex
	}
}

// Accepts reports whether index is shown in mode m.
func (m Mode) Accepts(index int) bool {
	switch m {
	case Odd:
		return index%2 != 0
	case Even:
		return index%2 == 0
	default:
		return true
	}
}
