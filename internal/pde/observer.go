package pde

import "time"

// IterationReport describes one committed iteration.
type IterationReport struct {
	RunID     string
	Iteration int // 1-based count after the commit
	TimeStep  float64
	RMSChange float64
	Globals   map[string]float64 // copy, safe to retain
	Duration  time.Duration
}

// Observer receives solver events. Calls happen on the goroutine running
// Solver.Run, between iterations.
type Observer interface {
	// OnIteration is called after every committed iteration.
	OnIteration(r IterationReport)

	// OnHalt is called once when a run ends, with the run's error if any.
	OnHalt(runID string, elapsed int, err error)
}

// NopObserver ignores all events.
type NopObserver struct{}

// OnIteration implements Observer.
func (NopObserver) OnIteration(IterationReport) {}

// OnHalt implements Observer.
func (NopObserver) OnHalt(string, int, error) {}
