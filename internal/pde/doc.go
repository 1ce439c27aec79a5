// Package pde implements a dense finite-difference solver that evolves a grid
// by repeatedly applying a pluggable per-pixel update rule.
//
// A Solver owns the output grid and an update buffer of the same shape. Each
// iteration runs a fixed sequence of phases:
//
//	InitializeIteration  Function computes per-iteration globals (once)
//	CalculateChange      partitions compute updates and local time steps
//	ResolveTimeStep      the Resolver reduces local steps to one dt
//	ApplyUpdate          output += dt * update, elapsed count advances
//
// The Halter is consulted before each iteration, so a policy that halts at
// zero iterations returns a copy of the input.
//
// # Functions
//
// A Function computes the change at one pixel from a grid.Neighborhood and
// reports the largest time step it considers stable there. It must not write
// to the grid. Per-iteration scalars, such as the average gradient magnitude
// used to scale conductance, are stored in State.Globals by
// InitializeIteration; other derived values go in State.Scratch. Both are
// read-only while partitions run.
//
// # Concurrency
//
// The output region is split into at most Config.Workers partitions, and the
// pool keeps one worker per partition. Partitions write only their own slice
// of the update buffer and return an immutable TimeStepResult. There are two barriers per iteration: after CalculateChange
// and after ApplyUpdate. ApplyUpdate is split into fixed-size chunks that do
// not depend on the worker count, so results are bit-identical for any
// number of workers.
//
// Function values are read-only during a run. Whatever a Function derives
// from the solution goes into State, so one value may serve several solvers.
//
// # Errors
//
// Failures are reported as *Error values carrying a Code:
//   - CONFIGURATION: missing function or halter, bad boundary, dimension
//     mismatch, no valid time step
//   - ALLOCATION: output or update buffer cannot be sized
//   - NUMERICAL_INSTABILITY: a function reported a non-finite or
//     non-positive time step
//   - CANCELED: the context was canceled between iterations
//
// An iteration that fails is never committed, and the elapsed iteration count
// only advances after a complete ApplyUpdate.
package pde
