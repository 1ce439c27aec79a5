package diffusion

import (
	"math"

	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/pde"
)

// minNorm keeps the normalized face gradient finite on flat faces.
const minNorm = 1e-10

// CurvatureAnisotropic is modified curvature diffusion applied to each
// component. The update is the conductance-weighted divergence of the unit
// gradient, scaled by an upwind gradient magnitude.
type CurvatureAnisotropic struct {
	Conductance float64

	// TimeStep is the step returned for every pixel. Zero uses 1/2^(N+2).
	TimeStep float64

	FixedAverage float64
}

func (f *CurvatureAnisotropic) Radius(dim int) grid.Radius {
	return grid.UniformRadius(dim, 1)
}

func (f *CurvatureAnisotropic) defaultStep(dim int) float64 {
	return DefaultTimeStep(dim) / 2
}

func (f *CurvatureAnisotropic) Validate(g *grid.Grid) error {
	if err := validateConductance("curvature anisotropic", f.Conductance); err != nil {
		return err
	}
	return validateStep("curvature anisotropic", resolveStep(f.TimeStep, f.defaultStep(g.Dim())), g.Dim())
}

func (f *CurvatureAnisotropic) InitializeIteration(g *grid.Grid, st *pde.State) error {
	step := resolveStep(f.TimeStep, f.defaultStep(g.Dim()))
	return iterationOf(st).prepare(g, st, f.Conductance, f.FixedAverage, step, false)
}

func (f *CurvatureAnisotropic) ComputeUpdate(nb *grid.Neighborhood, st *pde.State, delta []float64) float64 {
	it := st.Scratch.(*iteration)
	for c := range delta {
		delta[c] = curvatureComponent(nb, c, it.scale[c])
	}
	return it.step
}

func curvatureComponent(nb *grid.Neighborhood, c int, scale float64) float64 {
	var speed float64
	for i := range nb.Dim() {
		fwd, bwd, magF, magB := faceGradients(nb, i, c)
		normF := math.Sqrt(minNorm + magF)
		normB := math.Sqrt(minNorm + magB)
		speed += fwd/normF*conductance(magF, scale) - bwd/normB*conductance(magB, scale)
	}

	// Upwind gradient magnitude in the direction the level sets move.
	var prop float64
	for i := range nb.Dim() {
		center := nb.Axis(i, 0, c)
		fwd := nb.Axis(i, 1, c) - center
		bwd := center - nb.Axis(i, -1, c)
		if speed > 0 {
			prop += sq(min(bwd, 0)) + sq(max(fwd, 0))
		} else {
			prop += sq(max(bwd, 0)) + sq(min(fwd, 0))
		}
	}
	return math.Sqrt(prop) * speed
}

func sq(x float64) float64 { return x * x }
