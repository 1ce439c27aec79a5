package grid

import "math"

// Interpolate returns component c of g at the continuous point p using
// n-linear interpolation between the 2^N surrounding pixels. The boolean is
// false when p lies outside the convex hull of the pixel centers, in which
// case the value is zero.
func (g *Grid) Interpolate(p []float64, c int) (float64, bool) {
	dim := g.Dim()
	if len(p) != dim {
		return 0, false
	}

	var (
		base  [8]int
		frac  [8]float64
		baseS []int
		fracS []float64
	)
	if dim <= len(base) {
		baseS, fracS = base[:dim], frac[:dim]
	} else {
		baseS, fracS = make([]int, dim), make([]float64, dim)
	}

	for d := range dim {
		x := p[d] - float64(g.region.Index[d])
		last := float64(g.region.Size[d] - 1)
		if math.IsNaN(x) || x < 0 || x > last {
			return 0, false
		}
		i := int(math.Floor(x))
		if i == g.region.Size[d]-1 && i > 0 {
			i--
		}
		baseS[d] = i
		fracS[d] = x - float64(i)
	}

	var v float64
	corners := 1 << dim
	for corner := range corners {
		w := 1.0
		off := c
		for d := range dim {
			i := baseS[d]
			if corner&(1<<d) != 0 {
				if g.region.Size[d] > 1 {
					i++
				}
				w *= fracS[d]
			} else {
				w *= 1 - fracS[d]
			}
			off += i * g.strides[d]
		}
		if w != 0 {
			v += w * g.data[off]
		}
	}
	return v, true
}
