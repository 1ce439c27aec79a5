package grid

import (
	"fmt"
	"strings"
)

// Region is an axis-aligned rectangle in index space.
//
// Index is the inclusive origin and Size the extent along each axis, so a
// Region covers Index[d] <= i[d] < Index[d]+Size[d] for every axis d.
type Region struct {
	// Index is the first (lowest) index covered along each axis.
	Index []int `json:"index"`

	// Size is the number of pixels along each axis.
	Size []int `json:"size"`
}

// NewRegion creates a Region from an origin and a size.
// Both slices are copied. It panics if their lengths differ.
func NewRegion(index, size []int) Region {
	if len(index) != len(size) {
		panic(fmt.Sprintf("grid: index has %d axes, size has %d", len(index), len(size)))
	}
	return Region{
		Index: append([]int(nil), index...),
		Size:  append([]int(nil), size...),
	}
}

// RegionOfSize creates a Region with the given size anchored at the origin.
func RegionOfSize(size ...int) Region {
	return NewRegion(make([]int, len(size)), size)
}

// Dim returns the number of axes.
func (r Region) Dim() int {
	return len(r.Size)
}

// NumPixels returns the number of indices covered by the region.
// A region with no axes or a non-positive size covers nothing.
func (r Region) NumPixels() int {
	if len(r.Size) == 0 {
		return 0
	}
	n := 1
	for _, s := range r.Size {
		if s <= 0 {
			return 0
		}
		n *= s
	}
	return n
}

// IsEmpty returns true if the region covers no pixels.
func (r Region) IsEmpty() bool {
	return r.NumPixels() == 0
}

// Contains returns true if idx lies inside the region.
func (r Region) Contains(idx []int) bool {
	if len(idx) != len(r.Size) {
		return false
	}
	for d, i := range idx {
		if i < r.Index[d] || i >= r.Index[d]+r.Size[d] {
			return false
		}
	}
	return true
}

// ContainsRegion returns true if every index of o also lies in r.
// An empty o is contained in any region of the same dimension.
func (r Region) ContainsRegion(o Region) bool {
	if o.Dim() != r.Dim() {
		return false
	}
	if o.IsEmpty() {
		return true
	}
	for d := range r.Size {
		if o.Index[d] < r.Index[d] || o.Index[d]+o.Size[d] > r.Index[d]+r.Size[d] {
			return false
		}
	}
	return true
}

// Equal reports whether both regions have the same origin and size.
func (r Region) Equal(o Region) bool {
	if len(r.Size) != len(o.Size) {
		return false
	}
	for d := range r.Size {
		if r.Index[d] != o.Index[d] || r.Size[d] != o.Size[d] {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of two regions of the same dimension.
// The result has a zero size along any axis where they do not overlap.
func (r Region) Intersect(o Region) Region {
	out := r.Clone()
	for d := range r.Size {
		lo := max(r.Index[d], o.Index[d])
		hi := min(r.Index[d]+r.Size[d], o.Index[d]+o.Size[d])
		out.Index[d] = lo
		out.Size[d] = max(hi-lo, 0)
	}
	return out
}

// Clone returns a deep copy of the region.
func (r Region) Clone() Region {
	return NewRegion(r.Index, r.Size)
}

// ForEach calls fn for every index in the region, axis 0 fastest.
//
// The slice passed to fn is reused between calls; fn must copy it if it
// needs to keep the value.
func (r Region) ForEach(fn func(idx []int)) {
	if r.IsEmpty() {
		return
	}
	idx := append([]int(nil), r.Index...)
	for {
		fn(idx)
		d := 0
		for ; d < len(idx); d++ {
			idx[d]++
			if idx[d] < r.Index[d]+r.Size[d] {
				break
			}
			idx[d] = r.Index[d]
		}
		if d == len(idx) {
			return
		}
	}
}

// String formats the region as "[i0,i1)x[j0,j1)".
func (r Region) String() string {
	if len(r.Size) == 0 {
		return "[]"
	}
	parts := make([]string, len(r.Size))
	for d := range r.Size {
		parts[d] = fmt.Sprintf("[%d,%d)", r.Index[d], r.Index[d]+r.Size[d])
	}
	return strings.Join(parts, "x")
}

// Split divides r into at most n disjoint regions whose union is exactly r.
//
// The slowest varying axis with more than one pixel is cut into slabs of
// ceil(size/n) pixels, so the result may hold fewer than n regions when that
// axis is short. The partition depends only on r and n. An empty region
// yields nil; n <= 1 yields r itself.
func Split(r Region, n int) []Region {
	if r.IsEmpty() {
		return nil
	}
	if n <= 1 {
		return []Region{r.Clone()}
	}

	axis := -1
	for d := r.Dim() - 1; d >= 0; d-- {
		if r.Size[d] > 1 {
			axis = d
			break
		}
	}
	if axis < 0 {
		return []Region{r.Clone()}
	}

	size := r.Size[axis]
	chunk := (size + n - 1) / n
	count := (size + chunk - 1) / chunk

	out := make([]Region, 0, count)
	for i := range count {
		start := i * chunk
		sub := r.Clone()
		sub.Index[axis] = r.Index[axis] + start
		sub.Size[axis] = min(chunk, size-start)
		out = append(out, sub)
	}
	return out
}
