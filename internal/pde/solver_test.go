package pde

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/image-pde/internal/grid"
)

// laplacian is a heat equation rule with a constant stable step. When
// scaleByMean is set it also publishes the grid mean as a global and
// scales the update by a factor derived from it.
type laplacian struct {
	dt          float64
	scaleByMean bool
}

func (l laplacian) Radius(dim int) grid.Radius { return grid.UniformRadius(dim, 1) }

func (l laplacian) InitializeIteration(g *grid.Grid, st *State) error {
	if l.scaleByMean {
		st.SetGlobal("mean", stat.Mean(g.Data(), nil))
	}
	return nil
}

func (l laplacian) ComputeUpdate(nb *grid.Neighborhood, st *State, delta []float64) float64 {
	scale := 1.0
	if l.scaleByMean {
		m, _ := st.Global("mean")
		scale = 1 / (1 + math.Abs(m)/100)
	}
	for c := range delta {
		sum := 0.0
		for d := 0; d < nb.Dim(); d++ {
			sum += nb.Axis(d, 1, c) + nb.Axis(d, -1, c) - 2*nb.Axis(d, 0, c)
		}
		delta[c] = scale * sum
	}
	return l.dt
}

// scripted writes a known update per pixel and a chosen local time step.
type scripted struct {
	update func(idx []int, delta []float64)
	step   func(idx []int) float64
	initFn func(st *State) error
}

func (s scripted) Radius(dim int) grid.Radius { return make(grid.Radius, dim) }

func (s scripted) InitializeIteration(_ *grid.Grid, st *State) error {
	if s.initFn != nil {
		return s.initFn(st)
	}
	return nil
}

func (s scripted) ComputeUpdate(nb *grid.Neighborhood, _ *State, delta []float64) float64 {
	s.update(nb.Index(), delta)
	return s.step(nb.Index())
}

func quietConfig(workers int) Config {
	return Config{
		Workers:  workers,
		Boundary: grid.Mirror,
		Logger:   log.New(io.Discard),
	}
}

func newSolver(t *testing.T, fn Function, h Halter, cfg Config) *Solver {
	t.Helper()
	s, err := New(fn, h, cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func randomGrid(t *testing.T, region grid.Region, comps int, seed uint64) *grid.Grid {
	t.Helper()
	g, err := grid.New(region, comps)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(seed, seed+1))
	for i := range g.Data() {
		g.Data()[i] = rng.Float64() * 100
	}
	return g
}

func TestNew_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   Function
		h    Halter
		cfg  Config
	}{
		{"no function", nil, MaxIterations(1), quietConfig(1)},
		{"no halter", laplacian{dt: 0.25}, nil, quietConfig(1)},
		{"bad boundary", laplacian{dt: 0.25}, MaxIterations(1), Config{Boundary: grid.Boundary(9)}},
		{"negative max step", laplacian{dt: 0.25}, MaxIterations(1), Config{MaxTimeStep: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fn, tt.h, tt.cfg)
			require.Error(t, err)
			assert.True(t, Is(err, CodeConfiguration), "got %v", err)
		})
	}
}

func TestRun_MaxIterationsZeroReturnsCopy(t *testing.T) {
	input := randomGrid(t, grid.RegionOfSize(7, 5), 1, 1)
	before := input.Clone()

	s := newSolver(t, laplacian{dt: 0.125}, MaxIterations(0), quietConfig(4))
	out, err := s.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 0, s.ElapsedIterations())
	assert.Equal(t, before.Data(), out.Data())
	assert.NotSame(t, input, out)
	assert.Equal(t, Halted, s.Phase())
}

func TestRun_ApplyUpdateArithmetic(t *testing.T) {
	region := grid.RegionOfSize(6, 4)
	input := randomGrid(t, region, 2, 7)

	fn := scripted{
		update: func(idx []int, delta []float64) {
			delta[0] = float64(idx[0] + 10*idx[1])
			delta[1] = -float64(idx[0])
		},
		step: func(idx []int) float64 {
			if idx[0] == 5 && idx[1] == 3 {
				return 0.2
			}
			return 0.7
		},
	}

	s := newSolver(t, fn, MaxIterations(1), quietConfig(3))
	out, err := s.Run(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, 1, s.ElapsedIterations())

	st := s.State()
	assert.Equal(t, 0.2, st.TimeStep)

	sumSq := 0.0
	region.ForEach(func(idx []int) {
		in := input.At(idx)
		got := out.At(idx)
		u0 := float64(idx[0] + 10*idx[1])
		u1 := -float64(idx[0])
		assert.InDelta(t, in[0]+0.2*u0, got[0], 1e-12, "component 0 at %v", idx)
		assert.InDelta(t, in[1]+0.2*u1, got[1], 1e-12, "component 1 at %v", idx)
		sumSq += 0.04 * (u0*u0 + u1*u1)
	})
	assert.InDelta(t, math.Sqrt(sumSq/48), st.RMSChange, 1e-9)
}

func TestRun_MaxTimeStepCaps(t *testing.T) {
	input := randomGrid(t, grid.RegionOfSize(4), 1, 3)
	fn := scripted{
		update: func(_ []int, delta []float64) { delta[0] = 1 },
		step:   func([]int) float64 { return 10 },
	}
	cfg := quietConfig(2)
	cfg.MaxTimeStep = 0.5

	s := newSolver(t, fn, MaxIterations(1), cfg)
	out, err := s.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 0.5, s.State().TimeStep)
	for i, v := range out.Data() {
		assert.InDelta(t, input.Data()[i]+0.5, v, 1e-12)
	}
}

func TestRun_PartitionCountInvariant(t *testing.T) {
	tests := []struct {
		name   string
		region grid.Region
		comps  int
		fn     Function
	}{
		{"2-D scalar", grid.RegionOfSize(37, 23), 1, laplacian{dt: 0.125}},
		{"2-D scalar with globals", grid.RegionOfSize(29, 31), 1, laplacian{dt: 0.125, scaleByMean: true}},
		{"3-D vector", grid.RegionOfSize(9, 8, 7), 3, laplacian{dt: 1.0 / 16}},
		{"large 2-D", grid.RegionOfSize(180, 120), 1, laplacian{dt: 0.125, scaleByMean: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := randomGrid(t, tt.region, tt.comps, 42)

			var reference *grid.Grid
			var referenceRMS float64
			for _, workers := range []int{1, 4, 16} {
				for range 2 {
					s := newSolver(t, tt.fn, MaxIterations(8), quietConfig(workers))
					out, err := s.Run(context.Background(), input)
					require.NoError(t, err)
					require.Equal(t, 8, s.ElapsedIterations())

					if reference == nil {
						reference = out
						referenceRMS = s.State().RMSChange
						continue
					}
					require.Equal(t, reference.Data(), out.Data(), "workers=%d", workers)
					require.Equal(t, referenceRMS, s.State().RMSChange, "workers=%d", workers)
				}
			}
		})
	}
}

func TestRun_HeatStepConverges(t *testing.T) {
	input, err := grid.FromSlice(grid.RegionOfSize(6), 1, []float64{0, 0, 0, 10, 10, 10})
	require.NoError(t, err)

	const maxIter = 1000
	s := newSolver(t, laplacian{dt: 0.25}, RMSChange{Threshold: 1e-3, MaxIterations: maxIter}, quietConfig(4))
	out, err := s.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Less(t, s.ElapsedIterations(), maxIter)
	assert.Greater(t, s.ElapsedIterations(), 1)

	v := out.Data()
	for i := 1; i < len(v); i++ {
		assert.LessOrEqual(t, v[i-1], v[i], "ramp must be monotonic at %d", i)
	}
	assert.Less(t, v[0], v[5])
	assert.Greater(t, v[0], 0.0)
	assert.Less(t, v[5], 10.0)
	assert.InDelta(t, 30.0, v[0]+v[1]+v[2]+v[3]+v[4]+v[5], 1e-9, "mirror boundary conserves mass")
}

func TestRun_MaxIterationsOne(t *testing.T) {
	input, err := grid.FromSlice(grid.RegionOfSize(6), 1, []float64{0, 0, 0, 10, 10, 10})
	require.NoError(t, err)

	var reports []IterationReport
	cfg := quietConfig(2)
	cfg.Observer = observerFunc(func(r IterationReport) { reports = append(reports, r) })

	s := newSolver(t, laplacian{dt: 0.25}, MaxIterations(1), cfg)
	out, err := s.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1, s.ElapsedIterations())
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Iteration)
	assert.Equal(t, s.RunID(), reports[0].RunID)

	// One explicit step of u += 0.25 * (u[i-1] - 2u[i] + u[i+1]).
	assert.Equal(t, []float64{0, 0, 2.5, 7.5, 10, 10}, out.Data())
}

func TestRun_PartitionFailureAbortsIteration(t *testing.T) {
	input := randomGrid(t, grid.RegionOfSize(8, 8), 1, 9)
	var calls atomic.Int32

	fn := scripted{
		update: func(_ []int, delta []float64) { delta[0] = 1 },
		step: func(idx []int) float64 {
			calls.Add(1)
			if idx[0] == 6 && idx[1] == 7 {
				return math.NaN()
			}
			return 0.1
		},
	}

	s := newSolver(t, fn, MaxIterations(5), quietConfig(4))
	out, err := s.Run(context.Background(), input)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, Is(err, CodeNumericalInstability), "got %v", err)
	assert.Equal(t, 0, s.ElapsedIterations(), "failed iteration must not be counted")
	assert.Positive(t, calls.Load())
}

func TestRun_InfiniteOrZeroStepRejected(t *testing.T) {
	for _, step := range []float64{0, -1, math.Inf(1)} {
		fn := scripted{
			update: func(_ []int, delta []float64) {},
			step:   func([]int) float64 { return step },
		}
		s := newSolver(t, fn, MaxIterations(1), quietConfig(1))
		_, err := s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(3), 1, 1))
		assert.True(t, Is(err, CodeNumericalInstability), "step %v: got %v", step, err)
	}
}

func TestRun_InitializeIterationError(t *testing.T) {
	boom := errors.New("boom")
	fn := scripted{
		update: func(_ []int, delta []float64) {},
		step:   func([]int) float64 { return 1 },
		initFn: func(st *State) error {
			if st.Elapsed == 2 {
				return boom
			}
			return nil
		},
	}

	s := newSolver(t, fn, MaxIterations(10), quietConfig(2))
	_, err := s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(4, 4), 1, 5))
	require.ErrorIs(t, err, boom)
	assert.True(t, Is(err, CodeConfiguration))
	assert.Equal(t, 2, s.ElapsedIterations())
}

type rejectVectors struct{ laplacian }

func (rejectVectors) Validate(g *grid.Grid) error {
	if g.Components() != 1 {
		return errors.New("scalar grids only")
	}
	return nil
}

func TestRun_ValidatorAndNilInput(t *testing.T) {
	s := newSolver(t, rejectVectors{laplacian{dt: 0.1}}, MaxIterations(1), quietConfig(1))

	_, err := s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(3, 3), 2, 1))
	assert.True(t, Is(err, CodeConfiguration), "got %v", err)

	_, err = s.Run(context.Background(), nil)
	assert.True(t, Is(err, CodeConfiguration), "got %v", err)
}

type badRadius struct{ laplacian }

func (badRadius) Radius(int) grid.Radius { return grid.Radius{1} }

func TestRun_RadiusDimensionMismatch(t *testing.T) {
	s := newSolver(t, badRadius{laplacian{dt: 0.1}}, MaxIterations(1), quietConfig(1))
	_, err := s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(3, 3), 1, 1))
	assert.True(t, Is(err, CodeConfiguration), "got %v", err)
}

func TestRun_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := quietConfig(2)
	cfg.Observer = observerFunc(func(r IterationReport) {
		if r.Iteration == 3 {
			cancel()
		}
	})

	s := newSolver(t, laplacian{dt: 0.1}, MaxIterations(100), cfg)
	_, err := s.Run(ctx, randomGrid(t, grid.RegionOfSize(5, 5), 1, 2))
	require.Error(t, err)
	assert.True(t, Is(err, CodeCanceled))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, s.ElapsedIterations(), "in-flight iteration completes")
}

func TestRun_Stop(t *testing.T) {
	var s *Solver
	cfg := quietConfig(2)
	cfg.Observer = observerFunc(func(r IterationReport) {
		if r.Iteration == 4 {
			s.Stop()
		}
	})

	s = newSolver(t, laplacian{dt: 0.1}, MaxIterations(100), cfg)
	out, err := s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(5, 5), 1, 2))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 4, s.ElapsedIterations())

	// A later run starts fresh.
	_, err = s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(5, 5), 1, 2))
	require.NoError(t, err)
	assert.Equal(t, 4, s.ElapsedIterations())
}

func TestRun_StopBeforeRunHaltsImmediately(t *testing.T) {
	input := randomGrid(t, grid.RegionOfSize(5, 5), 1, 4)
	s := newSolver(t, laplacian{dt: 0.1}, MaxIterations(5), quietConfig(2))

	s.Stop()
	out, err := s.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input.Data(), out.Data())
	assert.Equal(t, 0, s.ElapsedIterations())

	// The request was consumed by the first run.
	_, err = s.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 5, s.ElapsedIterations())
}

type resolverFunc func([]TimeStepResult) (float64, error)

func (f resolverFunc) ResolveTimeStep(r []TimeStepResult) (float64, error) { return f(r) }

func TestRun_ResolverFailureCommitsNothing(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		dt   float64
		err  error
		code Code
	}{
		{"error", 0, boom, CodeConfiguration},
		{"nan", math.NaN(), nil, CodeNumericalInstability},
		{"zero", 0, nil, CodeNumericalInstability},
		{"negative", -0.5, nil, CodeNumericalInstability},
		{"infinite", math.Inf(1), nil, CodeNumericalInstability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := randomGrid(t, grid.RegionOfSize(6, 4), 1, 8)
			want := input.Clone()

			cfg := quietConfig(3)
			cfg.Resolver = resolverFunc(func([]TimeStepResult) (float64, error) {
				return tt.dt, tt.err
			})
			s := newSolver(t, laplacian{dt: 0.1}, MaxIterations(3), cfg)

			out, err := s.Run(context.Background(), input)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.code, CodeOf(err), "got %v", err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
			assert.Equal(t, 0, s.ElapsedIterations())
			assert.Equal(t, want.Data(), input.Data())
		})
	}
}

func TestNew_WorkersBound(t *testing.T) {
	_, err := New(laplacian{dt: 0.1}, MaxIterations(1), quietConfig(MaxWorkers+1))
	require.Error(t, err)
	assert.True(t, Is(err, CodeConfiguration))

	s := newSolver(t, laplacian{dt: 0.1}, MaxIterations(1), quietConfig(MaxWorkers))
	assert.Equal(t, MaxWorkers, s.Workers())
}

func TestRun_PoolSizedToPartitions(t *testing.T) {
	s := newSolver(t, laplacian{dt: 0.1}, MaxIterations(2), quietConfig(8))
	assert.Equal(t, 8, s.Workers())

	_, err := s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(3), 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Workers())

	_, err = s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(16), 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 8, s.Workers())
}

func TestRun_ScratchStartsEmptyEachRun(t *testing.T) {
	var seen []any
	fn := scripted{
		update: func(_ []int, delta []float64) {},
		step:   func([]int) float64 { return 1 },
		initFn: func(st *State) error {
			seen = append(seen, st.Scratch)
			st.Scratch = st.Elapsed
			return nil
		},
	}

	s := newSolver(t, fn, MaxIterations(2), quietConfig(1))
	for range 2 {
		_, err := s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(4), 1, 3))
		require.NoError(t, err)
	}
	assert.Equal(t, []any{nil, 0, nil, 0}, seen)
}

func TestRun_AfterClose(t *testing.T) {
	s := newSolver(t, laplacian{dt: 0.1}, MaxIterations(1), quietConfig(2))
	s.Close()

	_, err := s.Run(context.Background(), randomGrid(t, grid.RegionOfSize(4), 1, 3))
	require.Error(t, err)
	assert.True(t, Is(err, CodeConfiguration))
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "copy input", CopyInput.String())
	assert.Equal(t, "halted", Halted.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
}

type observerFunc func(r IterationReport)

func (f observerFunc) OnIteration(r IterationReport) { f(r) }
func (f observerFunc) OnHalt(string, int, error)     {}
