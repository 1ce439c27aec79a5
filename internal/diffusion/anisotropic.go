package diffusion

import (
	"math"

	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/pde"
)

// GradientAnisotropic is Perona-Malik diffusion applied to each component.
type GradientAnisotropic struct {
	// Conductance scales the edge threshold. Smaller values keep more edges.
	Conductance float64

	// TimeStep is the step returned for every pixel. Zero uses DefaultTimeStep.
	TimeStep float64

	// FixedAverage, when positive, replaces the measured mean squared gradient
	// magnitude in the conductance scale.
	FixedAverage float64
}

func (f *GradientAnisotropic) Radius(dim int) grid.Radius {
	return grid.UniformRadius(dim, 1)
}

func (f *GradientAnisotropic) Validate(g *grid.Grid) error {
	if err := validateConductance("gradient anisotropic", f.Conductance); err != nil {
		return err
	}
	return validateStep("gradient anisotropic", resolveStep(f.TimeStep, DefaultTimeStep(g.Dim())), g.Dim())
}

func (f *GradientAnisotropic) InitializeIteration(g *grid.Grid, st *pde.State) error {
	step := resolveStep(f.TimeStep, DefaultTimeStep(g.Dim()))
	return iterationOf(st).prepare(g, st, f.Conductance, f.FixedAverage, step, false)
}

func (f *GradientAnisotropic) ComputeUpdate(nb *grid.Neighborhood, st *pde.State, delta []float64) float64 {
	it := st.Scratch.(*iteration)
	for c := range delta {
		var sum float64
		for i := range nb.Dim() {
			fwd, bwd, magF, magB := faceGradients(nb, i, c)
			sum += fwd*conductance(magF, it.scale[c]) - bwd*conductance(magB, it.scale[c])
		}
		delta[c] = sum
	}
	return it.step
}

// averages returns the per-component mean squared gradient magnitude of g, or
// fixed for every component when fixed is positive.
func averages(e *gradientEnergy, g *grid.Grid, fixed float64) ([]float64, error) {
	if fixed > 0 && !math.IsInf(fixed, 1) {
		avg := make([]float64, g.Components())
		for c := range avg {
			avg[c] = fixed
		}
		return avg, nil
	}
	return e.mean(g)
}
