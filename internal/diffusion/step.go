package diffusion

import (
	"fmt"
	"math"

	"github.com/ironsheep/image-pde/internal/grid"
)

// GlobalAverageGradient is the state key under which the anisotropic
// functions publish the mean squared gradient magnitude of the current
// iteration, averaged over components.
const GlobalAverageGradient = "diffusion.average_gradient_squared"

// DefaultTimeStep returns 1/2^(dim+1).
func DefaultTimeStep(dim int) float64 {
	return math.Ldexp(1, -(dim + 1))
}

// MaxStableTimeStep returns 1/(2·dim), the largest step for which explicit
// diffusion on a unit grid does not amplify high frequencies.
func MaxStableTimeStep(dim int) float64 {
	return 1 / (2 * float64(dim))
}

// resolveStep returns step, or def when step is zero.
func resolveStep(step, def float64) float64 {
	if step == 0 {
		return def
	}
	return step
}

func validateStep(name string, step float64, dim int) error {
	if math.IsNaN(step) || step <= 0 {
		return fmt.Errorf("%s: time step must be positive, got %v", name, step)
	}
	if limit := MaxStableTimeStep(dim); step > limit {
		return fmt.Errorf("%s: time step %v exceeds stability limit %v for %d dimensions", name, step, limit, dim)
	}
	return nil
}

func validateConductance(name string, k float64) error {
	if math.IsNaN(k) || math.IsInf(k, 0) || k < 0 {
		return fmt.Errorf("%s: conductance must be finite and >= 0, got %v", name, k)
	}
	return nil
}

// laplacian returns the 2N+1 point Laplacian of component c.
func laplacian(nb *grid.Neighborhood, c int) float64 {
	center := nb.Axis(0, 0, c)
	var sum float64
	for d := range nb.Dim() {
		sum += nb.Axis(d, 1, c) + nb.Axis(d, -1, c) - 2*center
	}
	return sum
}

// centralDiff returns the central difference of component c along axis d.
func centralDiff(nb *grid.Neighborhood, d, c int) float64 {
	return 0.5 * (nb.Axis(d, 1, c) - nb.Axis(d, -1, c))
}

// faceGradients returns the forward and backward differences of component c
// along axis i together with the squared gradient magnitudes on the two faces
// they cross. Derivatives along the other axes are averaged from the center
// and the neighbor that shares the face.
func faceGradients(nb *grid.Neighborhood, i, c int) (fwd, bwd, magF, magB float64) {
	center := nb.Axis(i, 0, c)
	fwd = nb.Axis(i, 1, c) - center
	bwd = center - nb.Axis(i, -1, c)
	magF, magB = fwd*fwd, bwd*bwd

	for j := range nb.Dim() {
		if j == i {
			continue
		}
		dj := centralDiff(nb, j, c)
		ahead := 0.5 * (nb.Diagonal(i, 1, j, 1, c) - nb.Diagonal(i, 1, j, -1, c))
		behind := 0.5 * (nb.Diagonal(i, -1, j, 1, c) - nb.Diagonal(i, -1, j, -1, c))
		magF += 0.25 * (dj + ahead) * (dj + ahead)
		magB += 0.25 * (dj + behind) * (dj + behind)
	}
	return fwd, bwd, magF, magB
}

// conductance is the Perona-Malik edge-stopping term for a squared gradient
// magnitude. A zero scale stops diffusion entirely.
func conductance(magSq, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return math.Exp(-magSq / scale)
}
