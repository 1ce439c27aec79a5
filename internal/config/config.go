// Package config loads solver and filter settings from TOML.
//
// Every field is a pointer so a file may set any subset of values; the Get*
// methods return the built-in default for anything left unset. Command-line
// flags override file values by assigning the pointers directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ironsheep/image-pde/internal/pde"
)

// maxFileSize bounds the config files Load accepts.
const maxFileSize = 1 << 20

// Config is the root of a configuration file.
type Config struct {
	Solver    Solver    `toml:"solver"`
	Diffusion Diffusion `toml:"diffusion"`
	LevelSet  LevelSet  `toml:"levelset"`
	Demons    Demons    `toml:"demons"`
	Output    Output    `toml:"output"`
}

// Solver holds settings shared by every filter.
type Solver struct {
	MaxIterations *int     `toml:"max_iterations,omitempty"`
	RMSThreshold  *float64 `toml:"rms_threshold,omitempty"`
	Workers       *int     `toml:"workers,omitempty"`
	Boundary      *string  `toml:"boundary,omitempty"`
	BoundaryValue *float64 `toml:"boundary_value,omitempty"`
	MaxTimeStep   *float64 `toml:"max_time_step,omitempty"`
	Timeout       *string  `toml:"timeout,omitempty"` // duration string like "30s"
}

// Diffusion holds parameters of the diffusion filters.
type Diffusion struct {
	Conductance  *float64 `toml:"conductance,omitempty"`
	TimeStep     *float64 `toml:"time_step,omitempty"`
	FixedAverage *float64 `toml:"fixed_average,omitempty"`
}

// LevelSet holds parameters of curvature flow.
type LevelSet struct {
	TimeStep *float64 `toml:"time_step,omitempty"`
}

// Demons holds parameters of demons registration.
type Demons struct {
	IntensityThreshold *float64 `toml:"intensity_threshold,omitempty"`
	Normalizer         *float64 `toml:"normalizer,omitempty"`
	StandardDeviation  *float64 `toml:"standard_deviation,omitempty"`
	MetricThreshold    *float64 `toml:"metric_threshold,omitempty"`
	TimeStep           *float64 `toml:"time_step,omitempty"`
}

// Output holds settings of the written results.
type Output struct {
	Mode *string `toml:"mode,omitempty"` // gray, rgb or lab
	Plot *string `toml:"plot,omitempty"` // convergence plot path
}

func ptr[T any](v T) *T { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	c := Empty()
	c.Solver = Solver{
		MaxIterations: ptr(c.GetMaxIterations()),
		RMSThreshold:  ptr(c.GetRMSThreshold()),
		Workers:       ptr(c.GetWorkers()),
		Boundary:      ptr(c.GetBoundary()),
		BoundaryValue: ptr(c.GetBoundaryValue()),
		MaxTimeStep:   ptr(c.GetMaxTimeStep()),
		Timeout:       ptr("0s"),
	}
	c.Diffusion = Diffusion{
		Conductance:  ptr(c.GetConductance()),
		TimeStep:     ptr(c.GetDiffusionTimeStep()),
		FixedAverage: ptr(c.GetFixedAverage()),
	}
	c.LevelSet = LevelSet{TimeStep: ptr(c.GetLevelSetTimeStep())}
	c.Demons = Demons{
		IntensityThreshold: ptr(c.GetIntensityThreshold()),
		Normalizer:         ptr(c.GetNormalizer()),
		StandardDeviation:  ptr(c.GetStandardDeviation()),
		MetricThreshold:    ptr(c.GetMetricThreshold()),
		TimeStep:           ptr(c.GetDemonsTimeStep()),
	}
	c.Output = Output{
		Mode: ptr(c.GetMode()),
		Plot: ptr(""),
	}
	return c
}

// Clone returns a copy of c whose fields can be reassigned without
// affecting c. The pointed-to values are shared and must not be written.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Load reads a Config from a .toml file. Fields omitted from the file keep
// their defaults; unknown keys are an error so typos do not pass silently.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".toml" {
		return nil, fmt.Errorf("config file must have .toml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if v := c.Solver.MaxIterations; v != nil && *v < 0 {
		return fmt.Errorf("max_iterations must be non-negative, got %d", *v)
	}
	if v := c.Solver.Workers; v != nil && (*v < 0 || *v > pde.MaxWorkers) {
		return fmt.Errorf("workers must be between 0 and %d, got %d", pde.MaxWorkers, *v)
	}
	if v := c.Solver.Boundary; v != nil {
		if _, err := parseBoundary(*v); err != nil {
			return err
		}
	}
	if v := c.Solver.Timeout; v != nil && *v != "" {
		if _, err := time.ParseDuration(*v); err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *v, err)
		}
	}
	if v := c.Output.Mode; v != nil {
		if _, err := parseMode(*v); err != nil {
			return err
		}
	}

	nonNegative := map[string]*float64{
		"rms_threshold":              c.Solver.RMSThreshold,
		"max_time_step":              c.Solver.MaxTimeStep,
		"diffusion.conductance":      c.Diffusion.Conductance,
		"diffusion.time_step":        c.Diffusion.TimeStep,
		"diffusion.fixed_average":    c.Diffusion.FixedAverage,
		"levelset.time_step":         c.LevelSet.TimeStep,
		"demons.intensity_threshold": c.Demons.IntensityThreshold,
		"demons.normalizer":          c.Demons.Normalizer,
		"demons.standard_deviation":  c.Demons.StandardDeviation,
		"demons.metric_threshold":    c.Demons.MetricThreshold,
		"demons.time_step":           c.Demons.TimeStep,
	}
	for name, v := range nonNegative {
		if v != nil && !(*v >= 0) {
			return fmt.Errorf("%s must be non-negative, got %v", name, *v)
		}
	}
	return nil
}

// GetMaxIterations returns max_iterations or the default.
func (c *Config) GetMaxIterations() int {
	if c.Solver.MaxIterations == nil {
		return 50
	}
	return *c.Solver.MaxIterations
}

// GetRMSThreshold returns rms_threshold or the default. Zero disables
// halting on the RMS change.
func (c *Config) GetRMSThreshold() float64 {
	if c.Solver.RMSThreshold == nil {
		return 0
	}
	return *c.Solver.RMSThreshold
}

// GetWorkers returns workers or the default (0 = GOMAXPROCS).
func (c *Config) GetWorkers() int {
	if c.Solver.Workers == nil {
		return 0
	}
	return *c.Solver.Workers
}

// GetBoundary returns the boundary mode name or the default.
func (c *Config) GetBoundary() string {
	if c.Solver.Boundary == nil {
		return "mirror"
	}
	return *c.Solver.Boundary
}

func (c *Config) GetBoundaryValue() float64 {
	if c.Solver.BoundaryValue == nil {
		return 0
	}
	return *c.Solver.BoundaryValue
}

func (c *Config) GetMaxTimeStep() float64 {
	if c.Solver.MaxTimeStep == nil {
		return 0
	}
	return *c.Solver.MaxTimeStep
}

// GetTimeout returns the timeout as a time.Duration. Zero means none.
func (c *Config) GetTimeout() time.Duration {
	if c.Solver.Timeout == nil || *c.Solver.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.Solver.Timeout)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) GetConductance() float64 {
	if c.Diffusion.Conductance == nil {
		return 1
	}
	return *c.Diffusion.Conductance
}

// GetDiffusionTimeStep returns diffusion.time_step; zero lets each filter
// pick its stable default.
func (c *Config) GetDiffusionTimeStep() float64 {
	if c.Diffusion.TimeStep == nil {
		return 0
	}
	return *c.Diffusion.TimeStep
}

func (c *Config) GetFixedAverage() float64 {
	if c.Diffusion.FixedAverage == nil {
		return 0
	}
	return *c.Diffusion.FixedAverage
}

func (c *Config) GetLevelSetTimeStep() float64 {
	if c.LevelSet.TimeStep == nil {
		return 0
	}
	return *c.LevelSet.TimeStep
}

func (c *Config) GetIntensityThreshold() float64 {
	if c.Demons.IntensityThreshold == nil {
		return 0.001
	}
	return *c.Demons.IntensityThreshold
}

func (c *Config) GetNormalizer() float64 {
	if c.Demons.Normalizer == nil {
		return 0
	}
	return *c.Demons.Normalizer
}

func (c *Config) GetStandardDeviation() float64 {
	if c.Demons.StandardDeviation == nil {
		return 1
	}
	return *c.Demons.StandardDeviation
}

// GetMetricThreshold returns demons.metric_threshold; zero disables halting
// on the demons metric.
func (c *Config) GetMetricThreshold() float64 {
	if c.Demons.MetricThreshold == nil {
		return 0
	}
	return *c.Demons.MetricThreshold
}

func (c *Config) GetDemonsTimeStep() float64 {
	if c.Demons.TimeStep == nil {
		return 0
	}
	return *c.Demons.TimeStep
}

// GetMode returns the color mode name or the default.
func (c *Config) GetMode() string {
	if c.Output.Mode == nil {
		return "gray"
	}
	return *c.Output.Mode
}

// GetPlot returns the convergence plot path; empty means no plot.
func (c *Config) GetPlot() string {
	if c.Output.Plot == nil {
		return ""
	}
	return *c.Output.Plot
}
