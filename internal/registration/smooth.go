package registration

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/image-pde/internal/grid"
)

// gaussianKernel returns a normalized kernel of radius ceil(3·sigma).
func gaussianKernel(sigma float64) []float64 {
	r := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*r+1)
	for i := range kernel {
		x := float64(i - r)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// smoothField smooths every component of g in place, one axis at a time,
// with clamped edges.
func smoothField(g *grid.Grid, sigma float64) {
	kernel := gaussianKernel(sigma)
	r := len(kernel) / 2
	region := g.Region()
	comps := g.Components()
	data := g.Data()

	var buf []float64
	stride := comps
	for d := range g.Dim() {
		size := region.Size[d]
		if size > 1 {
			if cap(buf) < size {
				buf = make([]float64, size)
			}
			line := buf[:size]

			// Visit the first pixel of every line along axis d.
			starts := region.Clone()
			starts.Size[d] = 1
			starts.ForEach(func(idx []int) {
				base := g.Offset(idx)
				for c := range comps {
					for i := range size {
						line[i] = data[base+i*stride+c]
					}
					for i := range size {
						var v float64
						for k, w := range kernel {
							v += w * line[grid.ClampIndex(i+k-r, size)]
						}
						data[base+i*stride+c] = v
					}
				}
			})
		}
		stride *= size
	}
}
