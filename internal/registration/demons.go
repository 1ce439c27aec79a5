package registration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/pde"
)

const (
	// GlobalMetric is the state key of the mean squared intensity difference.
	GlobalMetric = "demons.metric"

	// GlobalOverlap is the state key of the fraction of field pixels that
	// map inside the moving image.
	GlobalOverlap = "demons.overlap"

	// DefaultIntensityDifferenceThreshold is used when the field is zero.
	DefaultIntensityDifferenceThreshold = 0.001

	denominatorThreshold = 1e-9
)

// Demons implements pde.Function on a displacement field grid.
type Demons struct {
	Fixed  *grid.Grid
	Moving *grid.Grid

	// IntensityDifferenceThreshold suppresses updates where |F - M| is below
	// it. Zero uses DefaultIntensityDifferenceThreshold.
	IntensityDifferenceThreshold float64

	// Normalizer weighs the intensity term of the denominator. Zero uses the
	// mean squared pixel spacing, which is 1.
	Normalizer float64

	// StandardDeviation of the Gaussian applied to the field after each
	// update, in pixels. Zero disables smoothing.
	StandardDeviation float64

	// TimeStep is returned for every pixel. Zero uses 1.
	TimeStep float64
}

// iteration is the per-run scratch kept in pde.State.Scratch.
type iteration struct {
	gradient *grid.Grid
	samples  []float64
}

func (f *Demons) Radius(dim int) grid.Radius {
	return make(grid.Radius, dim)
}

func (f *Demons) Validate(field *grid.Grid) error {
	switch {
	case f.Fixed == nil || f.Moving == nil:
		return errors.New("demons: fixed and moving images are required")
	case f.Fixed.Components() != 1 || f.Moving.Components() != 1:
		return fmt.Errorf("demons: images must be scalar, got %d and %d components",
			f.Fixed.Components(), f.Moving.Components())
	case field.Components() != field.Dim():
		return fmt.Errorf("demons: displacement field needs %d components, got %d", field.Dim(), field.Components())
	case !field.Region().Equal(f.Fixed.Region()):
		return fmt.Errorf("demons: field region %s differs from fixed region %s", field.Region(), f.Fixed.Region())
	case f.Moving.Dim() != field.Dim():
		return fmt.Errorf("demons: moving image has %d axes, field has %d", f.Moving.Dim(), field.Dim())
	}
	for name, v := range map[string]float64{
		"intensity difference threshold": f.IntensityDifferenceThreshold,
		"normalizer":                     f.Normalizer,
		"standard deviation":             f.StandardDeviation,
		"time step":                      f.TimeStep,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("demons: %s must be finite and >= 0, got %v", name, v)
		}
	}
	return nil
}

func (f *Demons) threshold() float64 {
	if f.IntensityDifferenceThreshold == 0 {
		return DefaultIntensityDifferenceThreshold
	}
	return f.IntensityDifferenceThreshold
}

func (f *Demons) normalizer() float64 {
	if f.Normalizer == 0 {
		return 1
	}
	return f.Normalizer
}

func (f *Demons) step() float64 {
	if f.TimeStep == 0 {
		return 1
	}
	return f.TimeStep
}

// InitializeIteration computes the fixed image gradient on the first
// iteration and publishes the metric of the current field.
func (f *Demons) InitializeIteration(field *grid.Grid, st *pde.State) error {
	it, ok := st.Scratch.(*iteration)
	if !ok {
		g, err := Gradient(f.Fixed)
		if err != nil {
			return fmt.Errorf("demons: fixed image gradient: %w", err)
		}
		it = &iteration{gradient: g}
		st.Scratch = it
	}

	it.samples = it.samples[:0]
	point := make([]float64, field.Dim())
	field.Region().ForEach(func(idx []int) {
		u := field.At(idx)
		for d := range point {
			point[d] = float64(idx[d]) + u[d]
		}
		m, ok := f.Moving.Interpolate(point, 0)
		if !ok {
			return
		}
		diff := f.Fixed.Value(idx, 0) - m
		it.samples = append(it.samples, diff*diff)
	})

	metric := math.Inf(1)
	if len(it.samples) > 0 {
		metric = stat.Mean(it.samples, nil)
	}
	st.SetGlobal(GlobalMetric, metric)
	st.SetGlobal(GlobalOverlap, float64(len(it.samples))/float64(field.NumPixels()))
	return nil
}

func (f *Demons) ComputeUpdate(nb *grid.Neighborhood, st *pde.State, delta []float64) float64 {
	idx := nb.Index()
	u := nb.Center()

	var buf [8]float64
	var point []float64
	if len(idx) <= len(buf) {
		point = buf[:len(idx)]
	} else {
		point = make([]float64, len(idx))
	}
	for d := range point {
		point[d] = float64(idx[d]) + u[d]
	}

	m, ok := f.Moving.Interpolate(point, 0)
	if !ok {
		return f.step()
	}
	speed := f.Fixed.Value(idx, 0) - m
	if math.Abs(speed) < f.threshold() {
		return f.step()
	}

	grad := st.Scratch.(*iteration).gradient.At(idx)
	var gradSq float64
	for _, g := range grad {
		gradSq += g * g
	}
	den := speed*speed/f.normalizer() + gradSq
	if den < denominatorThreshold {
		return f.step()
	}
	for d := range delta {
		delta[d] = speed * grad[d] / den
	}
	return f.step()
}

// PostUpdate smooths the committed field.
func (f *Demons) PostUpdate(field *grid.Grid) {
	if f.StandardDeviation > 0 {
		smoothField(field, f.StandardDeviation)
	}
}

// NewField returns a zero displacement field covering the fixed image.
func NewField(fixed *grid.Grid) (*grid.Grid, error) {
	return grid.New(fixed.Region(), fixed.Dim())
}

// Gradient returns the gradient of component 0 of g, one component per axis.
// Interior pixels use central differences and edge pixels one-sided ones.
func Gradient(g *grid.Grid) (*grid.Grid, error) {
	dim := g.Dim()
	out, err := grid.New(g.Region(), dim)
	if err != nil {
		return nil, err
	}
	nb, err := grid.NewNeighborhood(g, grid.UniformRadius(dim, 1), grid.Clamp)
	if err != nil {
		return nil, err
	}
	region := g.Region()
	region.ForEach(func(idx []int) {
		nb.MoveTo(idx)
		px := out.At(idx)
		for d := range dim {
			i := idx[d] - region.Index[d]
			lo, hi := max(i-1, 0), min(i+1, region.Size[d]-1)
			if hi == lo {
				px[d] = 0
				continue
			}
			px[d] = (nb.Axis(d, hi-i, 0) - nb.Axis(d, lo-i, 0)) / float64(hi-lo)
		}
	})
	return out, nil
}

// Warp samples moving at x + field(x) for every x in the field's region.
// Pixels that map outside the moving image take the value outside.
func Warp(moving, field *grid.Grid, outside float64) (*grid.Grid, error) {
	if field.Components() != field.Dim() || moving.Dim() != field.Dim() {
		return nil, fmt.Errorf("warp: %d-D field with %d components cannot warp a %d-D image",
			field.Dim(), field.Components(), moving.Dim())
	}
	out, err := grid.New(field.Region(), moving.Components())
	if err != nil {
		return nil, err
	}

	point := make([]float64, field.Dim())
	field.Region().ForEach(func(idx []int) {
		u := field.At(idx)
		for d := range point {
			point[d] = float64(idx[d]) + u[d]
		}
		px := out.At(idx)
		for c := range px {
			v, ok := moving.Interpolate(point, c)
			if !ok {
				v = outside
			}
			px[c] = v
		}
	})
	return out, nil
}
