package pde

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/workerpool"
)

// applyChunk is the number of elements committed per ApplyUpdate task. It
// is fixed so the RMS reduction order does not depend on the worker count.
const applyChunk = 1 << 14

// MaxWorkers bounds Config.Workers.
const MaxWorkers = 1024

// Phase is the solver's position in its state machine.
type Phase int32

const (
	Uninitialized Phase = iota
	CopyInput
	InitializeIteration
	CalculateChange
	ResolveTimeStep
	ApplyUpdate
	Halted
)

var phaseNames = [...]string{
	Uninitialized:       "uninitialized",
	CopyInput:           "copy input",
	InitializeIteration: "initialize iteration",
	CalculateChange:     "calculate change",
	ResolveTimeStep:     "resolve time step",
	ApplyUpdate:         "apply update",
	Halted:              "halted",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Config holds solver settings that do not belong to a particular Function.
type Config struct {
	// Workers is the requested number of partitions, at most MaxWorkers.
	// Zero or negative uses GOMAXPROCS. The region may split into fewer
	// partitions, and the pool never has more workers than partitions.
	Workers int

	// Boundary resolves neighborhood reads outside the grid.
	Boundary grid.Boundary

	// BoundaryValue is returned outside the grid when Boundary is Constant.
	BoundaryValue float64

	// MaxTimeStep caps the resolved time step when positive.
	MaxTimeStep float64

	// Resolver reduces partition time steps. Nil uses MinResolver.
	Resolver Resolver

	// Observer receives per-iteration reports. Nil uses NopObserver.
	Observer Observer

	// Logger receives progress messages. Nil uses log.Default().
	Logger *log.Logger
}

// Solver drives the iterate-evaluate-apply-halt loop for one Function.
//
// A Solver may run several times, sequentially. Run must not be called
// concurrently on the same Solver; ElapsedIterations, Phase and Stop may be
// called from any goroutine.
type Solver struct {
	fn       Function
	halter   Halter
	cfg      Config
	resolver Resolver
	observer Observer
	logger   *log.Logger
	workers  int
	pool     *workerpool.Pool

	phase      atomic.Int32
	elapsed    atomic.Int64
	partitions atomic.Int64
	stop       atomic.Bool
	closed     bool

	runID string
	state State
}

// New creates a solver for fn that stops when halter says so.
//
// # Errors
//
// Returns a CONFIGURATION error if fn or halter is nil, the boundary mode is
// unknown, Workers exceeds MaxWorkers or MaxTimeStep is negative.
func New(fn Function, halter Halter, cfg Config) (*Solver, error) {
	if fn == nil {
		return nil, newError(CodeConfiguration, "new solver", "no spatial function set")
	}
	if halter == nil {
		return nil, newError(CodeConfiguration, "new solver", "no halting policy set")
	}
	if !cfg.Boundary.Valid() {
		return nil, newError(CodeConfiguration, "new solver", "unsupported boundary mode %v", cfg.Boundary)
	}
	if cfg.Workers > MaxWorkers {
		return nil, newError(CodeConfiguration, "new solver", "workers must be at most %d, got %d", MaxWorkers, cfg.Workers)
	}
	if cfg.MaxTimeStep < 0 || math.IsNaN(cfg.MaxTimeStep) {
		return nil, newError(CodeConfiguration, "new solver", "max time step must be >= 0, got %v", cfg.MaxTimeStep)
	}

	s := &Solver{
		fn:       fn,
		halter:   halter,
		cfg:      cfg,
		resolver: cfg.Resolver,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		workers:  cfg.Workers,
	}
	if s.workers <= 0 {
		s.workers = min(runtime.GOMAXPROCS(0), MaxWorkers)
	}
	s.partitions.Store(int64(s.workers))
	if s.resolver == nil {
		s.resolver = MinResolver{}
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.state.reset()
	return s, nil
}

// Close releases the worker pool. A later Run fails with a CONFIGURATION
// error. Close must not be called while Run is in progress.
func (s *Solver) Close() {
	s.closed = true
	if s.pool != nil {
		s.pool.Close()
	}
}

// Workers returns the number of partitions, and pool workers, of the current
// or last run. Before the first run it returns the requested count, which is
// an upper bound.
func (s *Solver) Workers() int {
	return int(s.partitions.Load())
}

// ElapsedIterations returns the number of committed iterations of the
// current or last run.
func (s *Solver) ElapsedIterations() int {
	return int(s.elapsed.Load())
}

// Phase returns the current state machine phase.
func (s *Solver) Phase() Phase {
	return Phase(s.phase.Load())
}

// State returns a copy of the iteration state of the last run. Call it only
// after Run has returned.
func (s *Solver) State() State {
	return s.state.Clone()
}

// RunID returns the identifier of the current or last run.
func (s *Solver) RunID() string {
	return s.runID
}

// Stop asks the solver to halt at the next iteration boundary. The iteration
// in flight completes and is committed. A Stop issued before Run starts
// halts that run before its first iteration; the request is cleared when a
// run returns.
func (s *Solver) Stop() {
	s.stop.Store(true)
}

// Run evolves a copy of input until the halting policy stops it and returns
// the evolved grid. The input grid is never modified.
//
// Cancellation of ctx is honored only between iterations and yields a
// CANCELED error; Stop yields the grid evolved so far with a nil error.
func (s *Solver) Run(ctx context.Context, input *grid.Grid) (out *grid.Grid, err error) {
	s.runID = uuid.NewString()
	s.state.reset()
	s.elapsed.Store(0)
	s.setPhase(CopyInput)

	logger := s.logger.With("run", s.runID)
	start := time.Now()
	defer func() {
		s.stop.Store(false)
		s.setPhase(Halted)
		s.observer.OnHalt(s.runID, s.state.Elapsed, err)
		if err != nil {
			logger.Error("solver failed", "iterations", s.state.Elapsed, "err", err)
			return
		}
		logger.Info("solver halted",
			"iterations", s.state.Elapsed,
			"rms", s.state.RMSChange,
			"elapsed", time.Since(start).Round(time.Millisecond))
	}()

	output, update, parts, nbs, err := s.setup(input)
	if err != nil {
		return nil, err
	}
	logger.Info("solver started",
		"region", output.Region().String(),
		"components", output.Components(),
		"partitions", len(parts),
		"boundary", s.cfg.Boundary)

	for !s.halter.Halt(&s.state) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapError(CodeCanceled, "run", ctxErr)
		}
		if s.stop.Load() {
			logger.Info("stop requested", "iterations", s.state.Elapsed)
			break
		}
		if err := s.iterate(output, update, parts, nbs); err != nil {
			return nil, err
		}
	}

	return output, nil
}

// setup performs CopyInput: validates the configuration against the input,
// allocates the output and update buffers and partitions the output region.
func (s *Solver) setup(input *grid.Grid) (*grid.Grid, *grid.Grid, []grid.Region, []*grid.Neighborhood, error) {
	const op = "copy input"
	if s.closed {
		return nil, nil, nil, nil, newError(CodeConfiguration, op, "solver is closed")
	}
	if input == nil {
		return nil, nil, nil, nil, newError(CodeConfiguration, op, "nil input grid")
	}
	if v, ok := s.fn.(Validator); ok {
		if err := v.Validate(input); err != nil {
			return nil, nil, nil, nil, wrapError(CodeConfiguration, op, err)
		}
	}

	output, err := input.NewLike()
	if err != nil {
		return nil, nil, nil, nil, allocationError(op, err)
	}
	if err := output.CopyFrom(input); err != nil {
		return nil, nil, nil, nil, wrapError(CodeConfiguration, op, err)
	}
	update, err := output.NewLike()
	if err != nil {
		return nil, nil, nil, nil, allocationError(op, err)
	}

	parts := grid.Split(output.Region(), s.workers)
	if len(parts) == 0 {
		return nil, nil, nil, nil, newError(CodeConfiguration, op, "empty output region %s", output.Region())
	}
	s.sizePool(len(parts))

	radius := s.fn.Radius(output.Dim())
	nbs := make([]*grid.Neighborhood, len(parts))
	for i := range parts {
		nb, err := grid.NewNeighborhood(output, radius, s.cfg.Boundary)
		if err != nil {
			return nil, nil, nil, nil, wrapError(CodeConfiguration, op, err)
		}
		nb.SetConstant(s.cfg.BoundaryValue)
		nbs[i] = nb
	}

	return output, update, parts, nbs, nil
}

// sizePool keeps one worker per partition. The pool is reused while the
// partition count stays the same.
func (s *Solver) sizePool(n int) {
	s.partitions.Store(int64(n))
	if s.pool != nil && s.pool.NumWorkers() == n {
		return
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.pool = workerpool.New(n)
}

func allocationError(op string, err error) *Error {
	if errors.Is(err, grid.ErrAllocation) {
		return wrapError(CodeAllocation, op, err)
	}
	return wrapError(CodeConfiguration, op, err)
}

// iterate runs one full iteration. Nothing is committed to output unless
// every phase before ApplyUpdate succeeds.
func (s *Solver) iterate(output, update *grid.Grid, parts []grid.Region, nbs []*grid.Neighborhood) error {
	start := time.Now()

	s.setPhase(InitializeIteration)
	if err := s.fn.InitializeIteration(output, &s.state); err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			return err
		}
		return wrapError(CodeConfiguration, InitializeIteration.String(), err)
	}

	s.setPhase(CalculateChange)
	results := make([]TimeStepResult, len(parts))
	err := s.pool.Run(len(parts), func(i int) error {
		r, err := s.calculateChange(parts[i], nbs[i], update)
		results[i] = r
		return err
	})
	if err != nil {
		return err
	}

	s.setPhase(ResolveTimeStep)
	dt, err := s.resolver.ResolveTimeStep(results)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			return err
		}
		return wrapError(CodeConfiguration, ResolveTimeStep.String(), err)
	}
	if !(dt > 0) || math.IsInf(dt, 1) {
		return newError(CodeNumericalInstability, ResolveTimeStep.String(), "resolved time step %v", dt)
	}
	if s.cfg.MaxTimeStep > 0 && dt > s.cfg.MaxTimeStep {
		dt = s.cfg.MaxTimeStep
	}

	s.setPhase(ApplyUpdate)
	rms := s.applyUpdate(output, update, dt)
	if pu, ok := s.fn.(PostUpdater); ok {
		pu.PostUpdate(output)
	}

	s.state.Elapsed++
	s.state.TimeStep = dt
	s.state.RMSChange = rms
	s.elapsed.Store(int64(s.state.Elapsed))

	s.logger.Debug("iteration",
		"run", s.runID,
		"n", s.state.Elapsed,
		"dt", dt,
		"rms", rms)
	s.observer.OnIteration(IterationReport{
		RunID:     s.runID,
		Iteration: s.state.Elapsed,
		TimeStep:  dt,
		RMSChange: rms,
		Globals:   s.state.Clone().Globals,
		Duration:  time.Since(start),
	})
	return nil
}

// calculateChange fills the update buffer for one partition and returns the
// smallest local time step. It writes only update pixels inside part.
func (s *Solver) calculateChange(part grid.Region, nb *grid.Neighborhood, update *grid.Grid) (TimeStepResult, error) {
	data := update.Data()
	comps := update.Components()
	dt := math.Inf(1)
	count := 0

	var failure error
	part.ForEach(func(idx []int) {
		if failure != nil {
			return
		}
		nb.MoveTo(idx)
		off := nb.Offset()
		delta := data[off : off+comps]
		clear(delta)

		local := s.fn.ComputeUpdate(nb, &s.state, delta)
		if !(local > 0) || math.IsInf(local, 1) {
			failure = newError(CodeNumericalInstability, CalculateChange.String(),
				"time step %v at index %v", local, idx)
			return
		}
		dt = min(dt, local)
		count++
	})
	if failure != nil {
		return TimeStepResult{}, failure
	}

	return TimeStepResult{TimeStep: dt, Valid: count > 0}, nil
}

// applyUpdate commits output += dt*update and returns the RMS change. Chunks
// are independent so they run on the pool; the reduction is ordered.
func (s *Solver) applyUpdate(output, update *grid.Grid, dt float64) float64 {
	n := len(output.Data())
	chunks := (n + applyChunk - 1) / applyChunk
	sums := make([]float64, chunks)

	s.pool.ParallelFor(chunks, func(first, last int) {
		for c := first; c < last; c++ {
			start := c * applyChunk
			end := min(start+applyChunk, n)
			sums[c] = output.AddScaledRange(dt, update, start, end)
		}
	})

	return math.Sqrt(floats.Sum(sums) / float64(n))
}

func (s *Solver) setPhase(p Phase) {
	s.phase.Store(int32(p))
}
