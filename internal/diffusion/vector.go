package diffusion

import (
	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/pde"
)

// VectorGradientAnisotropic is Perona-Malik diffusion for vector grids. The
// conductance of a face is computed once from the squared gradients of all
// components and applied to each of them.
type VectorGradientAnisotropic struct {
	Conductance  float64
	TimeStep     float64
	FixedAverage float64
}

func (f *VectorGradientAnisotropic) Radius(dim int) grid.Radius {
	return grid.UniformRadius(dim, 1)
}

func (f *VectorGradientAnisotropic) Validate(g *grid.Grid) error {
	if err := validateConductance("vector gradient anisotropic", f.Conductance); err != nil {
		return err
	}
	return validateStep("vector gradient anisotropic", resolveStep(f.TimeStep, DefaultTimeStep(g.Dim())), g.Dim())
}

func (f *VectorGradientAnisotropic) InitializeIteration(g *grid.Grid, st *pde.State) error {
	step := resolveStep(f.TimeStep, DefaultTimeStep(g.Dim()))
	return iterationOf(st).prepare(g, st, f.Conductance, f.FixedAverage, step, true)
}

func (f *VectorGradientAnisotropic) ComputeUpdate(nb *grid.Neighborhood, st *pde.State, delta []float64) float64 {
	it := st.Scratch.(*iteration)
	scale := it.scale[0]
	clear(delta)
	for i := range nb.Dim() {
		var magF, magB float64
		for c := range delta {
			_, _, mf, mb := faceGradients(nb, i, c)
			magF += mf
			magB += mb
		}
		cf, cb := conductance(magF, scale), conductance(magB, scale)
		for c := range delta {
			center := nb.Axis(i, 0, c)
			delta[c] += cf*(nb.Axis(i, 1, c)-center) - cb*(center-nb.Axis(i, -1, c))
		}
	}
	return it.step
}
