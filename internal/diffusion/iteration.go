package diffusion

import (
	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/pde"
)

// iteration is what the anisotropic functions derive from the solution in
// InitializeIteration. It lives in pde.State.Scratch so a function value can
// be shared by concurrent solvers.
type iteration struct {
	energy gradientEnergy
	scale  []float64
	step   float64
}

func iterationOf(st *pde.State) *iteration {
	it, ok := st.Scratch.(*iteration)
	if !ok {
		it = &iteration{}
		st.Scratch = it
	}
	return it
}

// prepare measures g and stores k²·avg per component, or a single scale from
// the summed averages when joint is set. It publishes the component mean of
// the averages under GlobalAverageGradient.
func (it *iteration) prepare(g *grid.Grid, st *pde.State, k, fixed, step float64, joint bool) error {
	avg, err := averages(&it.energy, g, fixed)
	if err != nil {
		return err
	}
	k2 := k * k
	total := floats.Sum(avg)
	it.scale = it.scale[:0]
	if joint {
		it.scale = append(it.scale, k2*total)
	} else {
		for _, a := range avg {
			it.scale = append(it.scale, k2*a)
		}
	}
	it.step = step
	st.SetGlobal(GlobalAverageGradient, total/float64(len(avg)))
	return nil
}
