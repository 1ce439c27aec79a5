package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g, err := New(RegionOfSize(4, 3), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, g.Dim())
	assert.Equal(t, 2, g.Components())
	assert.Equal(t, 12, g.NumPixels())
	assert.Len(t, g.Data(), 24)
	for _, v := range g.Data() {
		assert.Zero(t, v)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name       string
		region     Region
		components int
		want       error
	}{
		{"no axes", Region{}, 1, ErrShape},
		{"zero size", RegionOfSize(3, 0), 1, ErrShape},
		{"zero components", RegionOfSize(3), 0, ErrShape},
		{"too large", RegionOfSize(1<<20, 1<<20), 1, ErrAllocation},
		{"overflow", RegionOfSize(1<<40, 1<<40, 1<<40), 1, ErrAllocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.region, tt.components)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestGrid_AtAndSet(t *testing.T) {
	g, err := New(NewRegion([]int{10, 20}, []int{3, 2}), 3)
	require.NoError(t, err)

	g.Set([]int{11, 21}, 1, 2, 3)
	assert.Equal(t, []float64{1, 2, 3}, g.At([]int{11, 21}))
	assert.Equal(t, 2.0, g.Value([]int{11, 21}, 1))

	// (11-10)*3 + (21-20)*3*3
	assert.Equal(t, 12, g.Offset([]int{11, 21}))

	assert.Nil(t, g.At([]int{9, 20}))
	assert.Equal(t, -1, g.Offset([]int{13, 20}))
	g.Set([]int{0, 0}, 5) // ignored
}

func TestGrid_AddScaled(t *testing.T) {
	region := RegionOfSize(3, 2)
	out, err := FromSlice(region, 1, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	upd, err := FromSlice(region, 1, []float64{1, -1, 0.5, 0, 2, -2})
	require.NoError(t, err)

	require.NoError(t, out.AddScaled(0.5, upd))
	assert.Equal(t, []float64{1.5, 1.5, 3.25, 4, 6, 5}, out.Data())

	other, err := New(RegionOfSize(2, 3), 1)
	require.NoError(t, err)
	assert.ErrorIs(t, out.AddScaled(1, other), ErrShape)
	assert.ErrorIs(t, out.AddScaled(1, nil), ErrShape)
	assert.Equal(t, []float64{1.5, 1.5, 3.25, 4, 6, 5}, out.Data())
}

func TestGrid_AddScaledRange(t *testing.T) {
	out, err := FromSlice(RegionOfSize(4), 2, []float64{0, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	upd, err := FromSlice(RegionOfSize(4), 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	sq := out.AddScaledRange(2, upd, 2, 6)
	assert.Equal(t, []float64{0, 0, 6, 8, 10, 12, 0, 0}, out.Data())
	assert.InDelta(t, 36+64+100+144, sq, 1e-12)
}

func TestGrid_CloneAndCopy(t *testing.T) {
	g, err := FromSlice(RegionOfSize(2, 2), 1, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	c := g.Clone()
	c.Data()[0] = 99
	assert.Equal(t, 1.0, g.Data()[0], "clone must not alias")

	like, err := g.NewLike()
	require.NoError(t, err)
	assert.True(t, like.SameShape(g))
	require.NoError(t, like.CopyFrom(g))
	assert.Equal(t, g.Data(), like.Data())

	wrong, err := New(RegionOfSize(4), 1)
	require.NoError(t, err)
	assert.ErrorIs(t, wrong.CopyFrom(g), ErrShape)
	assert.ErrorIs(t, wrong.CopyFrom(nil), ErrShape)
}

func TestFromSlice_LengthMismatch(t *testing.T) {
	_, err := FromSlice(RegionOfSize(3), 1, []float64{1, 2})
	assert.ErrorIs(t, err, ErrShape)
}
