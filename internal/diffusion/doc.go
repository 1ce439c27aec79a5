// Package diffusion provides smoothing functions for the pde solver.
//
// Every type here implements pde.Function and evolves a grid by explicit
// finite differences on a unit-spaced lattice.
//
// # Functions
//
//   - Heat: isotropic linear diffusion, u_t = Δu.
//   - GradientAnisotropic: Perona-Malik diffusion. Flux across each pixel face
//     is damped by exp(-|∇u|² / (K²·avg)), where avg is the mean squared
//     gradient magnitude of the grid at the start of the iteration. Each
//     component of a vector grid diffuses on its own.
//   - CurvatureAnisotropic: modified curvature diffusion,
//     u_t = |∇u| div(c(|∇u|) ∇u / |∇u|), which preserves edges while flattening
//     regions of low contrast.
//   - VectorGradientAnisotropic: Perona-Malik for vector grids with a single
//     conductance per face computed from the summed gradients of all
//     components, so edges stay aligned across channels.
//
// # Time Step
//
// Each function returns the same constant time step for every pixel. When the
// TimeStep field is zero the default 1/2^(N+1) for an N-dimensional grid is
// used (1/2^(N+2) for CurvatureAnisotropic). Validate rejects steps above
// 1/(2N), where the explicit scheme becomes unstable.
//
// # State
//
// The anisotropic functions compute their conductance scale in
// InitializeIteration and keep it in pde.State.Scratch, not in the function
// value. One value may drive several solvers at once.
package diffusion
