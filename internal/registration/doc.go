// Package registration aligns a moving image to a fixed image by evolving a
// displacement field with the pde solver.
//
// # Demons
//
// Demons implements Thirion's demons force. The solver's grid is the
// displacement field u: it has one component per axis and covers the fixed
// image's region. For each pixel x the moving image is sampled at x + u(x)
// with n-linear interpolation and the field moves along the fixed image
// gradient:
//
//	Δu = (F(x) - M(x+u)) ∇F(x) / (|∇F(x)|² + (F(x) - M(x+u))² / normalizer)
//
// Pixels that map outside the moving image, whose intensity difference is
// below IntensityDifferenceThreshold, or whose denominator vanishes get a
// zero update.
//
// After every committed update the field is smoothed with a Gaussian of
// StandardDeviation pixels, the regularization of the classic algorithm.
//
// # Metric
//
// At the start of each iteration Demons publishes the mean squared intensity
// difference between F and the warped M under GlobalMetric, so
// pde.GlobalBelow can halt on it.
//
// # Warping
//
// Warp resamples a moving image through a displacement field, producing the
// registered image.
package registration
