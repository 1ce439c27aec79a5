package imaging

import (
	"fmt"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/noise"

	"github.com/ironsheep/image-pde/internal/grid"
)

// AddNoise perturbs every component of a 2-D grid with monochrome Gaussian
// noise of roughly the given amplitude. It is used to build test inputs for
// the smoothing filters.
func AddNoise(g *grid.Grid, amplitude float64) error {
	if g.Dim() != 2 {
		return fmt.Errorf("noise needs a 2-D grid, got %d-D", g.Dim())
	}
	w, h := g.Size(0), g.Size(1)
	n := effect.Grayscale(noise.Generate(w, h, &noise.Options{NoiseFn: noise.Gaussian, Monochrome: true}))

	comps := g.Components()
	data := g.Data()
	for y := range h {
		row := n.Pix[y*n.Stride : y*n.Stride+w]
		for x, v := range row {
			delta := amplitude * (float64(v) - 128) / 128
			px := data[(y*w+x)*comps : (y*w+x+1)*comps]
			for c := range px {
				px[c] += delta
			}
		}
	}
	return nil
}
