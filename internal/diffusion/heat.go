package diffusion

import (
	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/pde"
)

// Heat is linear isotropic diffusion. Components diffuse independently.
type Heat struct {
	// TimeStep is the step returned for every pixel. Zero uses DefaultTimeStep.
	TimeStep float64
}

func (h Heat) Radius(dim int) grid.Radius {
	return grid.UniformRadius(dim, 1)
}

func (h Heat) Validate(g *grid.Grid) error {
	return validateStep("heat", resolveStep(h.TimeStep, DefaultTimeStep(g.Dim())), g.Dim())
}

func (h Heat) InitializeIteration(*grid.Grid, *pde.State) error {
	return nil
}

func (h Heat) ComputeUpdate(nb *grid.Neighborhood, _ *pde.State, delta []float64) float64 {
	for c := range delta {
		delta[c] = laplacian(nb, c)
	}
	return resolveStep(h.TimeStep, DefaultTimeStep(nb.Dim()))
}
