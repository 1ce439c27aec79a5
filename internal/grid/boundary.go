package grid

import (
	"fmt"
	"strings"
)

// Boundary selects how a Neighborhood resolves coordinates outside the grid.
type Boundary int

const (
	// Mirror reflects at the edge, repeating the edge pixel: -1 -> 0, -2 -> 1.
	Mirror Boundary = iota

	// Clamp repeats the nearest edge pixel (zero-flux Neumann condition).
	Clamp

	// Wrap tiles the grid periodically.
	Wrap

	// Constant returns a fixed value for every component outside the grid.
	Constant
)

var boundaryNames = map[Boundary]string{
	Mirror:   "mirror",
	Clamp:    "clamp",
	Wrap:     "wrap",
	Constant: "constant",
}

// String returns the lower-case name of the mode.
func (b Boundary) String() string {
	if s, ok := boundaryNames[b]; ok {
		return s
	}
	return fmt.Sprintf("boundary(%d)", int(b))
}

// Valid returns true for the modes defined in this package.
func (b Boundary) Valid() bool {
	_, ok := boundaryNames[b]
	return ok
}

// ParseBoundary converts a mode name ("mirror", "clamp", "wrap", "constant")
// into a Boundary. Matching is case-insensitive.
func ParseBoundary(s string) (Boundary, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for b, n := range boundaryNames {
		if n == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown boundary mode: %q", s)
}

// resolve maps a local coordinate on an axis of the given size into [0, size).
// It returns false when the mode has no in-grid equivalent (Constant).
func (b Boundary) resolve(i, size int) (int, bool) {
	if i >= 0 && i < size {
		return i, true
	}
	switch b {
	case Clamp:
		return ClampIndex(i, size), true
	case Wrap:
		return WrapIndex(i, size), true
	case Constant:
		return 0, false
	default:
		return MirrorIndex(i, size), true
	}
}

// MirrorIndex reflects index into [0, size), repeating the edge sample.
func MirrorIndex(index, size int) int {
	if size <= 0 {
		return 0
	}
	if index < 0 {
		index = -index - 1
	}
	if index >= size {
		period := 2 * size
		index %= period
		if index >= size {
			index = period - index - 1
		}
	}
	return index
}

// ClampIndex returns index clamped to [0, size-1].
func ClampIndex(index, size int) int {
	if index < 0 {
		return 0
	}
	if index >= size {
		return size - 1
	}
	return index
}

// WrapIndex returns index wrapped to [0, size).
func WrapIndex(index, size int) int {
	if size <= 0 {
		return 0
	}
	index %= size
	if index < 0 {
		index += size
	}
	return index
}
