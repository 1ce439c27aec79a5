package diffusion

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/image-pde/internal/grid"
)

// gradientEnergy measures the mean squared gradient magnitude of a grid, per
// component. Reads past the edge are clamped, whatever boundary the solver
// uses, so the measurement depends only on the grid contents.
type gradientEnergy struct {
	samples [][]float64
}

func (e *gradientEnergy) mean(g *grid.Grid) ([]float64, error) {
	dim, comps, n := g.Dim(), g.Components(), g.NumPixels()
	nb, err := grid.NewNeighborhood(g, grid.UniformRadius(dim, 1), grid.Clamp)
	if err != nil {
		return nil, err
	}

	if len(e.samples) != comps || len(e.samples[0]) != n {
		e.samples = make([][]float64, comps)
		for c := range e.samples {
			e.samples[c] = make([]float64, n)
		}
	}

	i := 0
	g.Region().ForEach(func(idx []int) {
		nb.MoveTo(idx)
		for c := range comps {
			var sq float64
			for d := range dim {
				dx := centralDiff(nb, d, c)
				sq += dx * dx
			}
			e.samples[c][i] = sq
		}
		i++
	})

	avg := make([]float64, comps)
	for c := range comps {
		avg[c] = stat.Mean(e.samples[c], nil)
	}
	return avg, nil
}
