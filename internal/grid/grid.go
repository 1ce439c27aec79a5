package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MaxElements bounds the number of float64 values a single Grid may hold.
// Requests above it fail with ErrAllocation instead of exhausting memory.
var MaxElements = 1 << 30

var (
	// ErrAllocation reports that a grid could not be sized or allocated.
	ErrAllocation = errors.New("grid allocation failed")

	// ErrShape reports mismatched dimensionality, size or component count.
	ErrShape = errors.New("grid shape mismatch")
)

// Grid is an n-dimensional array of pixels, each holding Components float64
// values. Storage is contiguous with axis 0 varying fastest.
type Grid struct {
	region     Region
	components int
	strides    []int // in elements, per axis
	data       []float64
}

// New allocates a zero-filled grid covering region with the given number of
// components per pixel.
//
// # Errors
//
//   - ErrShape if the region has no axes, a non-positive size, or
//     components < 1
//   - ErrAllocation if the element count overflows or exceeds MaxElements
func New(region Region, components int) (*Grid, error) {
	if region.Dim() == 0 {
		return nil, fmt.Errorf("%w: region has no axes", ErrShape)
	}
	if components < 1 {
		return nil, fmt.Errorf("%w: components must be >= 1, got %d", ErrShape, components)
	}
	for d, s := range region.Size {
		if s <= 0 {
			return nil, fmt.Errorf("%w: size[%d] = %d is not positive", ErrShape, d, s)
		}
	}

	strides := make([]int, region.Dim())
	n := components
	for d, s := range region.Size {
		strides[d] = n
		if n > math.MaxInt/s {
			return nil, fmt.Errorf("%w: region %s overflows", ErrAllocation, region)
		}
		n *= s
	}
	if n > MaxElements {
		return nil, fmt.Errorf("%w: %d elements exceeds limit of %d", ErrAllocation, n, MaxElements)
	}

	return &Grid{
		region:     region.Clone(),
		components: components,
		strides:    strides,
		data:       make([]float64, n),
	}, nil
}

// FromSlice wraps values in a grid without copying. len(values) must equal
// region.NumPixels()*components.
func FromSlice(region Region, components int, values []float64) (*Grid, error) {
	g, err := New(region, components)
	if err != nil {
		return nil, err
	}
	if len(values) != len(g.data) {
		return nil, fmt.Errorf("%w: %d values for %d elements", ErrShape, len(values), len(g.data))
	}
	g.data = values
	return g, nil
}

// NewLike allocates a zero-filled grid with the same region and components.
func (g *Grid) NewLike() (*Grid, error) {
	return New(g.region, g.components)
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := &Grid{
		region:     g.region.Clone(),
		components: g.components,
		strides:    append([]int(nil), g.strides...),
		data:       make([]float64, len(g.data)),
	}
	copy(c.data, g.data)
	return c
}

// CopyFrom overwrites g with the samples of src, which must have the same shape.
func (g *Grid) CopyFrom(src *Grid) error {
	if src == nil {
		return fmt.Errorf("%w: copy nil grid into %s/%d", ErrShape, g.region, g.components)
	}
	if !g.SameShape(src) {
		return fmt.Errorf("%w: copy %s/%d into %s/%d", ErrShape,
			src.region, src.components, g.region, g.components)
	}
	copy(g.data, src.data)
	return nil
}

// Region returns a copy of the region covered by the grid.
func (g *Grid) Region() Region {
	return g.region.Clone()
}

// Dim returns the number of axes.
func (g *Grid) Dim() int {
	return g.region.Dim()
}

// Size returns the extent of axis d.
func (g *Grid) Size(d int) int {
	return g.region.Size[d]
}

// Components returns the number of values per pixel.
func (g *Grid) Components() int {
	return g.components
}

// NumPixels returns the number of pixels in the grid.
func (g *Grid) NumPixels() int {
	return len(g.data) / g.components
}

// Data returns the backing slice. Pixel p occupies
// Data()[p*Components() : (p+1)*Components()].
func (g *Grid) Data() []float64 {
	return g.data
}

// Offset returns the element offset of idx in Data(), or -1 if idx lies
// outside the grid.
func (g *Grid) Offset(idx []int) int {
	if !g.region.Contains(idx) {
		return -1
	}
	off := 0
	for d, i := range idx {
		off += (i - g.region.Index[d]) * g.strides[d]
	}
	return off
}

// At returns the components of the pixel at idx as a slice into the grid,
// or nil if idx lies outside the grid. Writes through the slice modify g.
func (g *Grid) At(idx []int) []float64 {
	off := g.Offset(idx)
	if off < 0 {
		return nil
	}
	return g.data[off : off+g.components]
}

// Value returns component c of the pixel at idx, or 0 outside the grid.
func (g *Grid) Value(idx []int, c int) float64 {
	px := g.At(idx)
	if px == nil {
		return 0
	}
	return px[c]
}

// Set writes the components of the pixel at idx. Indices outside the grid
// are ignored. Extra values are dropped, missing ones leave components as is.
func (g *Grid) Set(idx []int, values ...float64) {
	px := g.At(idx)
	if px == nil {
		return
	}
	copy(px, values)
}

// Fill sets every element to v.
func (g *Grid) Fill(v float64) {
	for i := range g.data {
		g.data[i] = v
	}
}

// Clear sets every element to zero.
func (g *Grid) Clear() {
	clear(g.data)
}

// SameShape reports whether both grids cover the same region with the same
// number of components.
func (g *Grid) SameShape(o *Grid) bool {
	return o != nil && g.components == o.components && g.region.Equal(o.region)
}

// AddScaled performs g += alpha*u elementwise, componentwise for vector grids.
func (g *Grid) AddScaled(alpha float64, u *Grid) error {
	if u == nil {
		return fmt.Errorf("%w: nil update for grid %s/%d", ErrShape, g.region, g.components)
	}
	if !g.SameShape(u) {
		return fmt.Errorf("%w: update %s/%d for grid %s/%d", ErrShape,
			u.region, u.components, g.region, g.components)
	}
	floats.AddScaled(g.data, alpha, u.data)
	return nil
}

// AddScaledRange applies g += alpha*u to elements [start, end) and returns the
// sum of squared changes over that range. Both grids must have the same shape.
func (g *Grid) AddScaledRange(alpha float64, u *Grid, start, end int) float64 {
	dst := g.data[start:end]
	src := u.data[start:end]
	floats.AddScaled(dst, alpha, src)
	return alpha * alpha * floats.Dot(src, src)
}
