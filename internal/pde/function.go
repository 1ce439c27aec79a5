package pde

import (
	"maps"

	"github.com/ironsheep/image-pde/internal/grid"
)

// Function is the per-pixel update rule evolved by a Solver.
//
// InitializeIteration is called once per iteration, before any partition
// runs, and is the only place a Function may write State.Globals or
// State.Scratch. A Function value holds configuration only and may be shared
// by several solvers; whatever it derives from the solution lives in State.
// ComputeUpdate is then called concurrently from several partitions; it
// writes the change for the pixel at nb.Index() into delta (one value per
// component) and returns the largest time step it considers stable there.
// The returned step must be finite and positive.
type Function interface {
	// Radius returns the neighborhood radius needed on a grid of dim axes.
	Radius(dim int) grid.Radius

	// InitializeIteration computes per-iteration globals from the current
	// solution.
	InitializeIteration(g *grid.Grid, st *State) error

	// ComputeUpdate computes the change at the neighborhood's center.
	ComputeUpdate(nb *grid.Neighborhood, st *State, delta []float64) float64
}

// Validator is implemented by functions that only support certain grids,
// for example a fixed dimensionality or component count. Validate is called
// once when a run starts.
type Validator interface {
	Validate(g *grid.Grid) error
}

// PostUpdater is implemented by functions that regularize the solution after
// each committed update, such as smoothing a displacement field. PostUpdate
// runs serially inside the ApplyUpdate phase and cannot fail, so an
// iteration is either fully committed or not at all.
type PostUpdater interface {
	PostUpdate(g *grid.Grid)
}

// State is the iteration state shared between the solver and its Function.
// It is mutated only at iteration boundaries, never while partitions run.
type State struct {
	// Elapsed is the number of committed iterations.
	Elapsed int

	// TimeStep is the dt applied by the last committed iteration.
	TimeStep float64

	// RMSChange is the root mean square of the last committed change,
	// dt*update, over every element of the grid.
	RMSChange float64

	// Globals holds per-iteration scalars published by the Function.
	Globals map[string]float64

	// Scratch holds the Function's own per-run values, such as a
	// conductance scale or a precomputed gradient. It is nil when a run
	// starts, survives between iterations and is not reported to observers.
	Scratch any
}

// Global returns a published per-iteration scalar.
func (s *State) Global(key string) (float64, bool) {
	v, ok := s.Globals[key]
	return v, ok
}

// SetGlobal publishes a per-iteration scalar. Only call it from
// InitializeIteration.
func (s *State) SetGlobal(key string, v float64) {
	if s.Globals == nil {
		s.Globals = make(map[string]float64)
	}
	s.Globals[key] = v
}

// Clone returns a copy whose Globals map does not alias s. Scratch is shared.
func (s *State) Clone() State {
	c := *s
	c.Globals = maps.Clone(s.Globals)
	return c
}

func (s *State) reset() {
	*s = State{Globals: make(map[string]float64)}
}
