package levelset

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/pde"
)

// distance returns a grid holding the distance of each pixel from (cx, cy).
func distance(t *testing.T, w, h int, cx, cy float64) *grid.Grid {
	t.Helper()
	g, err := grid.New(grid.RegionOfSize(w, h), 1)
	require.NoError(t, err)
	g.Region().ForEach(func(idx []int) {
		g.Set(idx, math.Hypot(float64(idx[0])-cx, float64(idx[1])-cy))
	})
	return g
}

func TestCurvature_Circle(t *testing.T) {
	g := distance(t, 31, 31, 15, 15)
	nb, err := grid.NewNeighborhood(g, grid.UniformRadius(2, 1), grid.Clamp)
	require.NoError(t, err)

	tests := []struct {
		idx    []int
		radius float64
	}{
		{[]int{25, 15}, 10},
		{[]int{15, 20}, 5},
		{[]int{22, 22}, math.Hypot(7, 7)},
	}

	for _, tt := range tests {
		nb.MoveTo(tt.idx)
		assert.InDelta(t, 1/tt.radius, Curvature(nb, 0), 0.01, "at %v", tt.idx)
	}
}

func TestCurvature_FlatAndOneDimensional(t *testing.T) {
	flat, err := grid.New(grid.RegionOfSize(5, 5), 1)
	require.NoError(t, err)
	flat.Fill(3)
	nb, err := grid.NewNeighborhood(flat, grid.UniformRadius(2, 1), grid.Mirror)
	require.NoError(t, err)
	nb.MoveTo([]int{2, 2})
	assert.Zero(t, Curvature(nb, 0))

	line, err := grid.FromSlice(grid.RegionOfSize(5), 1, []float64{0, 1, 4, 9, 16})
	require.NoError(t, err)
	nb, err = grid.NewNeighborhood(line, grid.UniformRadius(1, 1), grid.Mirror)
	require.NoError(t, err)
	for i := range 5 {
		nb.MoveTo([]int{i})
		assert.Zero(t, Curvature(nb, 0), "level sets of a 1-D function are points")
	}
}

func TestCurvatureFlow_Validate(t *testing.T) {
	scalar, err := grid.New(grid.RegionOfSize(4, 4), 1)
	require.NoError(t, err)
	vector, err := grid.New(grid.RegionOfSize(4, 4), 2)
	require.NoError(t, err)

	assert.NoError(t, CurvatureFlow{}.Validate(scalar))
	assert.Error(t, CurvatureFlow{}.Validate(vector))
	assert.Error(t, CurvatureFlow{TimeStep: 0.3}.Validate(scalar))
	assert.Error(t, CurvatureFlow{TimeStep: -1}.Validate(scalar))
}

func TestCurvatureFlow_SmoothsNoise(t *testing.T) {
	g, err := grid.New(grid.RegionOfSize(20, 20), 1)
	require.NoError(t, err)
	r := rand.New(rand.NewPCG(3, 5))
	for i := range g.Data() {
		g.Data()[i] = r.NormFloat64()
	}

	s, err := pde.New(CurvatureFlow{TimeStep: 0.1}, pde.MaxIterations(10), pde.Config{
		Workers:  4,
		Boundary: grid.Mirror,
		Logger:   log.New(io.Discard),
	})
	require.NoError(t, err)
	defer s.Close()

	out, err := s.Run(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 10, s.ElapsedIterations())
	assert.Equal(t, 0.1, s.State().TimeStep)
	assert.Less(t, stat.Variance(out.Data(), nil), stat.Variance(g.Data(), nil))
}
