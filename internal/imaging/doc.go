// Package imaging connects image files to the pde solver.
//
// It converts decoded images to grids and back, caches decoded files, crops
// regions of interest and encodes results for transport. The solver itself
// never sees an image; everything here happens before Run or after it.
//
// # Coordinate System
//
// A 2-D image becomes a grid whose axis 0 is x and axis 1 is y, with the grid
// region equal to the image bounds. Pixel (x, y) is grid index [x, y], and
// rows are contiguous in grid storage exactly as in image.Gray.Pix.
//
// # Color Modes
//
//   - Gray: one component, luminance in [0, 255].
//   - RGB: three components in [0, 255].
//   - Lab: three components of CIE L*a*b*, L in [0, 100]. Diffusing in Lab
//     keeps edge strength perceptually uniform across hues.
//
// FromGrid clamps values back to the displayable range, so a filter may
// overshoot without corrupting the output image.
//
// # Regions
//
// Crop and NamedRegion take rectangles with (x1,y1) inclusive and (x2,y2)
// exclusive, the image.Rectangle convention.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The conversion functions are
// stateless.
package imaging
