package config

import (
	"fmt"
	"slices"

	"github.com/ironsheep/image-pde/internal/diffusion"
	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/imaging"
	"github.com/ironsheep/image-pde/internal/levelset"
	"github.com/ironsheep/image-pde/internal/pde"
	"github.com/ironsheep/image-pde/internal/registration"
)

// Filter names accepted by Function.
const (
	FilterHeat          = "heat"
	FilterGradient      = "gradient"
	FilterCurvature     = "curvature"
	FilterVector        = "vector"
	FilterCurvatureFlow = "curvature-flow"
)

// Filters returns the filter names in sorted order.
func Filters() []string {
	names := []string{FilterHeat, FilterGradient, FilterCurvature, FilterVector, FilterCurvatureFlow}
	slices.Sort(names)
	return names
}

// Function returns a new spatial function for filter configured from c.
// Each call returns a fresh value, so concurrent runs never share state.
func (c *Config) Function(filter string) (pde.Function, error) {
	switch filter {
	case FilterHeat:
		return diffusion.Heat{TimeStep: c.GetDiffusionTimeStep()}, nil
	case FilterGradient:
		return &diffusion.GradientAnisotropic{
			Conductance:  c.GetConductance(),
			TimeStep:     c.GetDiffusionTimeStep(),
			FixedAverage: c.GetFixedAverage(),
		}, nil
	case FilterCurvature:
		return &diffusion.CurvatureAnisotropic{
			Conductance:  c.GetConductance(),
			TimeStep:     c.GetDiffusionTimeStep(),
			FixedAverage: c.GetFixedAverage(),
		}, nil
	case FilterVector:
		return &diffusion.VectorGradientAnisotropic{
			Conductance:  c.GetConductance(),
			TimeStep:     c.GetDiffusionTimeStep(),
			FixedAverage: c.GetFixedAverage(),
		}, nil
	case FilterCurvatureFlow:
		return levelset.CurvatureFlow{TimeStep: c.GetLevelSetTimeStep()}, nil
	}
	return nil, fmt.Errorf("unknown filter %q (want one of %v)", filter, Filters())
}

// Demons returns a demons function registering moving onto fixed.
func (c *Config) Demons(fixed, moving *grid.Grid) *registration.Demons {
	return &registration.Demons{
		Fixed:                        fixed,
		Moving:                       moving,
		IntensityDifferenceThreshold: c.GetIntensityThreshold(),
		Normalizer:                   c.GetNormalizer(),
		StandardDeviation:            c.GetStandardDeviation(),
		TimeStep:                     c.GetDemonsTimeStep(),
	}
}

// Halter returns the halting policy of the filters: the RMS change
// criterion when rms_threshold is set, otherwise the iteration cap alone.
func (c *Config) Halter() pde.Halter {
	if t := c.GetRMSThreshold(); t > 0 {
		return pde.RMSChange{Threshold: t, MaxIterations: c.GetMaxIterations()}
	}
	return pde.MaxIterations(c.GetMaxIterations())
}

// DemonsHalter returns the halting policy of registration: the demons
// metric when metric_threshold is set, combined with the filter policy.
func (c *Config) DemonsHalter() pde.Halter {
	if t := c.GetMetricThreshold(); t > 0 {
		return pde.Any(c.Halter(), pde.GlobalBelow{
			Key:           registration.GlobalMetric,
			Threshold:     t,
			MaxIterations: c.GetMaxIterations(),
		})
	}
	return c.Halter()
}

// SolverConfig returns the solver settings. Logger and Observer are left
// for the caller.
func (c *Config) SolverConfig() (pde.Config, error) {
	b, err := parseBoundary(c.GetBoundary())
	if err != nil {
		return pde.Config{}, err
	}
	return pde.Config{
		Workers:       c.GetWorkers(),
		Boundary:      b,
		BoundaryValue: c.GetBoundaryValue(),
		MaxTimeStep:   c.GetMaxTimeStep(),
	}, nil
}

// ColorMode returns the parsed output mode.
func (c *Config) ColorMode() (imaging.Mode, error) {
	return parseMode(c.GetMode())
}

func parseBoundary(s string) (grid.Boundary, error) {
	b, err := grid.ParseBoundary(s)
	if err != nil {
		return 0, fmt.Errorf("invalid boundary: %w", err)
	}
	return b, nil
}

func parseMode(s string) (imaging.Mode, error) {
	m, err := imaging.ParseMode(s)
	if err != nil {
		return 0, fmt.Errorf("invalid output mode: %w", err)
	}
	return m, nil
}
