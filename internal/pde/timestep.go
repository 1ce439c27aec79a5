package pde

// TimeStepResult is what a partition reports after CalculateChange.
type TimeStepResult struct {
	// TimeStep is the smallest local stable step seen in the partition.
	TimeStep float64

	// Valid is false when the partition processed no pixels.
	Valid bool
}

// Resolver reduces the per-partition results of one iteration to the single
// time step applied to the whole grid.
type Resolver interface {
	ResolveTimeStep(results []TimeStepResult) (float64, error)
}

// MinResolver picks the minimum over all valid entries, so the step is
// governed by the most restrictive partition. It fails with a configuration
// error wrapping ErrNoValidTimeStep when no entry is valid.
type MinResolver struct{}

// ResolveTimeStep implements Resolver.
func (MinResolver) ResolveTimeStep(results []TimeStepResult) (float64, error) {
	found := false
	dt := 0.0
	for _, r := range results {
		if !r.Valid {
			continue
		}
		if !found || r.TimeStep < dt {
			dt = r.TimeStep
			found = true
		}
	}
	if !found {
		return 0, wrapError(CodeConfiguration, "resolve time step", ErrNoValidTimeStep)
	}
	return dt, nil
}
