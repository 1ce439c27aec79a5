// Package pipeline runs the filters and registration on decoded images.
//
// It is the glue shared by the command line and the MCP server: convert an
// image to a grid, build the spatial function and halting policy from a
// config.Config, run the solver and convert the result back to an image.
package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/charmbracelet/log"

	"github.com/ironsheep/image-pde/internal/config"
	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/imaging"
	"github.com/ironsheep/image-pde/internal/pde"
	"github.com/ironsheep/image-pde/internal/registration"
	"github.com/ironsheep/image-pde/internal/report"
)

// Options control a single run.
type Options struct {
	// Config supplies every solver and filter parameter. Nil uses
	// config.Default().
	Config *config.Config

	// Logger receives solver progress. Nil uses log.Default().
	Logger *log.Logger

	// Noise adds Gaussian noise of this amplitude to the input grid before
	// filtering. Zero leaves the input unchanged.
	Noise float64
}

func (o Options) config() *config.Config {
	if o.Config == nil {
		return config.Default()
	}
	return o.Config
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// Result is the outcome of a run.
type Result struct {
	Image   image.Image
	Summary report.Summary
	History *report.History

	// Globals are the named values the function published in its last
	// iteration, such as the demons metric.
	Globals map[string]float64
}

// Smooth evolves img under filter and returns the filtered image in the
// configured color mode.
func Smooth(ctx context.Context, img image.Image, filter string, opts Options) (*Result, error) {
	cfg := opts.config()
	mode, err := cfg.ColorMode()
	if err != nil {
		return nil, err
	}
	fn, err := cfg.Function(filter)
	if err != nil {
		return nil, err
	}

	input, err := imaging.ToGrid(img, mode)
	if err != nil {
		return nil, err
	}
	if opts.Noise > 0 {
		if err := imaging.AddNoise(input, opts.Noise); err != nil {
			return nil, err
		}
	}

	out, res, err := solve(ctx, fn, cfg.Halter(), input, opts.logger().With("filter", filter), cfg)
	if err != nil {
		return nil, err
	}
	res.Image, err = imaging.FromGrid(out, mode)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Register estimates the displacement field that maps moving onto fixed
// with the demons algorithm and returns moving warped by it. Both images
// are registered in grayscale.
func Register(ctx context.Context, fixed, moving image.Image, opts Options) (*Result, error) {
	cfg := opts.config()
	fg, err := imaging.ToGrid(fixed, imaging.Gray)
	if err != nil {
		return nil, fmt.Errorf("fixed image: %w", err)
	}
	mg, err := imaging.ToGrid(moving, imaging.Gray)
	if err != nil {
		return nil, fmt.Errorf("moving image: %w", err)
	}
	field, err := registration.NewField(fg)
	if err != nil {
		return nil, err
	}

	out, res, err := solve(ctx, cfg.Demons(fg, mg), cfg.DemonsHalter(), field, opts.logger().With("filter", "demons"), cfg)
	if err != nil {
		return nil, err
	}
	warped, err := registration.Warp(mg, out, 0)
	if err != nil {
		return nil, err
	}
	res.Image, err = imaging.FromGrid(warped, imaging.Gray)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func solve(ctx context.Context, fn pde.Function, halter pde.Halter, input *grid.Grid, logger *log.Logger, cfg *config.Config) (*grid.Grid, *Result, error) {
	scfg, err := cfg.SolverConfig()
	if err != nil {
		return nil, nil, err
	}
	history := report.NewHistory()
	scfg.Observer = history
	scfg.Logger = logger

	if d := cfg.GetTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	s, err := pde.New(fn, halter, scfg)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()

	out, err := s.Run(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return out, &Result{
		Summary: history.Summary(),
		History: history,
		Globals: s.State().Globals,
	}, nil
}
