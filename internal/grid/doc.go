// Package grid provides the n-dimensional pixel storage evolved by the PDE
// solver, together with the index-space rectangles used to describe work.
//
// A Grid holds float64 samples in a single contiguous slice. Each pixel carries
// a fixed number of components: one for scalar images, several for vector
// images such as RGB/Lab color or displacement fields. Axis 0 varies fastest.
//
// # Coordinate System
//
// All coordinates are absolute index coordinates, not offsets into the
// buffer:
//   - A Region is described by an origin Index and a Size per axis
//   - Regions are half-open: Index[d] <= i[d] < Index[d]+Size[d]
//   - A Grid's Region need not start at the origin
//
// # Partitioning
//
// Split divides a Region into at most n disjoint slabs along the slowest
// varying axis. The result depends only on the Region and n, and the union of
// the slabs is exactly the input Region.
//
// # Boundary Handling
//
// Neighborhood gives read-only access to the pixels around a center index.
// Offsets that fall outside the grid are resolved by a Boundary mode:
//
//	Mirror   - reflect at the edge, repeating the edge pixel (-1 -> 0)
//	Clamp    - repeat the edge pixel (zero-flux Neumann)
//	Wrap     - periodic tiling
//	Constant - a fixed value outside the grid
//
// Every offset resolves to a valid sample, so stencil code never needs to
// special-case the edges.
//
// # Thread Safety
//
// A Grid performs no locking. Concurrent readers are safe; concurrent writers
// must touch disjoint pixels. Each goroutine needs its own Neighborhood.
package grid
