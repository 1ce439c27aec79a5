package grid

import (
	"fmt"
)

// Radius is the half-width of a neighborhood along each axis. A radius of 1
// on every axis gives the 3x3 (3x3x3, ...) window used by first and second
// order central differences.
type Radius []int

// UniformRadius returns a Radius of r on each of dim axes.
func UniformRadius(dim, r int) Radius {
	rad := make(Radius, dim)
	for d := range rad {
		rad[d] = r
	}
	return rad
}

// Neighborhood is a read-only window of grid samples around a center index.
//
// A Neighborhood is positioned with MoveTo and then queried with offsets
// relative to the center. Offsets that leave the grid resolve through the
// Boundary mode, so every query returns a valid sample. A Neighborhood is not
// safe for concurrent use; give each worker its own.
type Neighborhood struct {
	g        *Grid
	radius   Radius
	boundary Boundary
	constant []float64

	center  []int // absolute index
	local   []int // center relative to the grid origin
	base    int   // element offset of the center
	scratch []int
}

// NewNeighborhood creates a neighborhood over g.
//
// # Errors
//
// Returns an error wrapping ErrShape when the radius does not have one entry
// per grid axis or any entry is negative, and a plain error when the boundary
// mode is unknown. These are setup-time failures: once created, no query can
// read outside the grid.
func NewNeighborhood(g *Grid, radius Radius, b Boundary) (*Neighborhood, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil grid", ErrShape)
	}
	if len(radius) != g.Dim() {
		return nil, fmt.Errorf("%w: radius has %d axes, grid has %d", ErrShape, len(radius), g.Dim())
	}
	for d, r := range radius {
		if r < 0 {
			return nil, fmt.Errorf("%w: radius[%d] = %d is negative", ErrShape, d, r)
		}
	}
	if !b.Valid() {
		return nil, fmt.Errorf("unsupported boundary mode %v", b)
	}

	n := &Neighborhood{
		g:        g,
		radius:   append(Radius(nil), radius...),
		boundary: b,
		constant: make([]float64, g.components),
		center:   append([]int(nil), g.region.Index...),
		local:    make([]int, g.Dim()),
		scratch:  make([]int, g.Dim()),
	}
	return n, nil
}

// SetConstant sets the value returned for every component outside the grid
// when the boundary mode is Constant.
func (n *Neighborhood) SetConstant(v float64) {
	for i := range n.constant {
		n.constant[i] = v
	}
}

// MoveTo centers the neighborhood on idx, which must lie inside the grid.
func (n *Neighborhood) MoveTo(idx []int) {
	base := 0
	for d, i := range idx {
		n.center[d] = i
		n.local[d] = i - n.g.region.Index[d]
		base += n.local[d] * n.g.strides[d]
	}
	n.base = base
}

// Index returns the absolute center index. The slice must not be modified.
func (n *Neighborhood) Index() []int {
	return n.center
}

// Offset returns the element offset of the center in the grid's Data().
// Grids of the same shape share offsets, so it also addresses the center
// pixel in an update buffer.
func (n *Neighborhood) Offset() int {
	return n.base
}

// Radius returns the declared radius.
func (n *Neighborhood) Radius() Radius {
	return n.radius
}

// Boundary returns the boundary mode.
func (n *Neighborhood) Boundary() Boundary {
	return n.boundary
}

// Dim returns the number of axes.
func (n *Neighborhood) Dim() int {
	return len(n.center)
}

// Components returns the number of values per pixel.
func (n *Neighborhood) Components() int {
	return n.g.components
}

// Center returns the components of the center pixel.
func (n *Neighborhood) Center() []float64 {
	return n.g.data[n.base : n.base+n.g.components]
}

// Pixel returns the components of the pixel at center+offset.
// The returned slice aliases grid storage and must not be modified.
func (n *Neighborhood) Pixel(offset []int) []float64 {
	off := 0
	for d, o := range offset {
		i, ok := n.boundary.resolve(n.local[d]+o, n.g.region.Size[d])
		if !ok {
			return n.constant
		}
		off += i * n.g.strides[d]
	}
	return n.g.data[off : off+n.g.components]
}

// Value returns component c of the pixel at center+offset.
func (n *Neighborhood) Value(offset []int, c int) float64 {
	return n.Pixel(offset)[c]
}

// Axis returns component c of the pixel k steps from the center along axis d.
func (n *Neighborhood) Axis(d, k, c int) float64 {
	if k == 0 {
		return n.g.data[n.base+c]
	}
	i, ok := n.boundary.resolve(n.local[d]+k, n.g.region.Size[d])
	if !ok {
		return n.constant[c]
	}
	return n.g.data[n.base+(i-n.local[d])*n.g.strides[d]+c]
}

// Diagonal returns component c of the pixel at center + k1*e_d1 + k2*e_d2.
// It is the access pattern of mixed second derivatives.
func (n *Neighborhood) Diagonal(d1, k1, d2, k2, c int) float64 {
	clear(n.scratch)
	n.scratch[d1] += k1
	n.scratch[d2] += k2
	return n.Pixel(n.scratch)[c]
}
