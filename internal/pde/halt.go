package pde

// Halter decides when a run stops. Halt is evaluated before every iteration
// and must be deterministic given the State.
type Halter interface {
	Halt(st *State) bool
}

// HalterFunc adapts a function to the Halter interface.
type HalterFunc func(st *State) bool

// Halt implements Halter.
func (f HalterFunc) Halt(st *State) bool {
	return f(st)
}

// MaxIterations halts once the elapsed count reaches the value. Zero or a
// negative value halts before the first iteration.
type MaxIterations int

// Halt implements Halter.
func (m MaxIterations) Halt(st *State) bool {
	return st.Elapsed >= int(m)
}

// RMSChange halts when the root mean square change of the last iteration is
// at or below Threshold, or when MaxIterations iterations have run.
type RMSChange struct {
	Threshold     float64
	MaxIterations int
}

// Halt implements Halter.
func (h RMSChange) Halt(st *State) bool {
	if st.Elapsed >= h.MaxIterations {
		return true
	}
	return st.Elapsed > 0 && st.RMSChange <= h.Threshold
}

// GlobalBelow halts when the published global Key is at or below Threshold
// after at least one iteration, or when MaxIterations iterations have run.
// It suits energy-style criteria such as the demons intensity metric.
type GlobalBelow struct {
	Key           string
	Threshold     float64
	MaxIterations int
}

// Halt implements Halter.
func (h GlobalBelow) Halt(st *State) bool {
	if st.Elapsed >= h.MaxIterations {
		return true
	}
	if st.Elapsed == 0 {
		return false
	}
	v, ok := st.Global(h.Key)
	return ok && v <= h.Threshold
}

// Any halts as soon as one of the policies halts.
func Any(policies ...Halter) Halter {
	return HalterFunc(func(st *State) bool {
		for _, p := range policies {
			if p.Halt(st) {
				return true
			}
		}
		return false
	})
}
