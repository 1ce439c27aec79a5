package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/image-pde/internal/config"
	"github.com/ironsheep/image-pde/internal/imaging"
	"github.com/ironsheep/image-pde/internal/pipeline"
)

// solverOpts are the flags shared by the solver commands. They override the
// config file only when set on the command line.
type solverOpts struct {
	iterations  int
	rms         float64
	workers     int
	boundary    string
	timeout     string
	mode        string
	conductance float64
	timeStep    float64
	plot        string
}

func (o *solverOpts) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&o.iterations, "iterations", "n", 0, "maximum number of iterations (default 50)")
	f.Float64Var(&o.rms, "rms", 0, "stop once the RMS change falls below this value")
	f.IntVarP(&o.workers, "workers", "w", 0, "parallel partitions (0 = all CPUs)")
	f.StringVar(&o.boundary, "boundary", "", "boundary mode: mirror, clamp, wrap or constant")
	f.StringVar(&o.timeout, "timeout", "", "abort a run after this duration, e.g. 30s")
	f.StringVarP(&o.mode, "mode", "m", "", "color mode: gray, rgb or lab")
	f.Float64VarP(&o.conductance, "conductance", "k", 0, "conductance of the anisotropic filters")
	f.Float64Var(&o.timeStep, "time-step", 0, "time step (0 = the filter's stable default)")
	f.StringVar(&o.plot, "plot", "", "write a convergence plot PNG to this path")
}

// apply copies the flags that were set into cfg and validates the result.
func (o *solverOpts) apply(cmd *cobra.Command, cfg *config.Config, filter string) error {
	changed := cmd.Flags().Changed
	if changed("iterations") {
		cfg.Solver.MaxIterations = &o.iterations
	}
	if changed("rms") {
		cfg.Solver.RMSThreshold = &o.rms
	}
	if changed("workers") {
		cfg.Solver.Workers = &o.workers
	}
	if changed("boundary") {
		cfg.Solver.Boundary = &o.boundary
	}
	if changed("timeout") {
		cfg.Solver.Timeout = &o.timeout
	}
	if changed("mode") {
		cfg.Output.Mode = &o.mode
	}
	if changed("conductance") {
		cfg.Diffusion.Conductance = &o.conductance
	}
	if changed("time-step") {
		switch filter {
		case config.FilterCurvatureFlow:
			cfg.LevelSet.TimeStep = &o.timeStep
		case "demons":
			cfg.Demons.TimeStep = &o.timeStep
		default:
			cfg.Diffusion.TimeStep = &o.timeStep
		}
	}
	if changed("plot") {
		cfg.Output.Plot = &o.plot
	}
	return cfg.Validate()
}

func (c *CLI) runCommand() *cobra.Command {
	var (
		opts    solverOpts
		filter  string
		in, out string
		noise   float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Filter one image",
		Long: `Evolve an image under a PDE filter and write the result.

Filters: ` + strings.Join(config.Filters(), ", ") + `.`,
		Example: `  image-pde run --filter gradient --in noisy.png --out clean.png -n 20
  image-pde run --filter vector --mode lab --in photo.jpg --out smooth.png --plot conv.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg, filter); err != nil {
				return err
			}

			img, err := imaging.NewImageCache().Load(in)
			if err != nil {
				return err
			}
			res, err := pipeline.Smooth(cmd.Context(), img, filter, pipeline.Options{
				Config: cfg,
				Logger: c.Logger.With("file", filepath.Base(in)),
				Noise:  noise,
			})
			if err != nil {
				return err
			}
			return c.writeResult(res, out, cfg.GetPlot(), filter)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVarP(&filter, "filter", "f", config.FilterGradient, "filter to apply")
	cmd.Flags().StringVarP(&in, "in", "i", "", "input image")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output image (.png or .jpg)")
	cmd.Flags().Float64Var(&noise, "noise", 0, "add Gaussian noise of this amplitude before filtering")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func (c *CLI) batchCommand() *cobra.Command {
	var (
		opts   solverOpts
		filter string
		outDir string
		jobs   int
	)

	cmd := &cobra.Command{
		Use:     "batch [files...]",
		Short:   "Filter many images concurrently",
		Example: `  image-pde batch --filter curvature --out-dir smoothed -j 4 scans/*.png`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg, filter); err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			return c.batch(cmd.Context(), cfg, filter, outDir, jobs, args)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVarP(&filter, "filter", "f", config.FilterGradient, "filter to apply")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "directory for the filtered images")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 2, "images filtered at the same time")
	_ = cmd.MarkFlagRequired("out-dir")

	return cmd
}

// outputNames returns the output base name of every file. Two inputs that
// would write the same output are rejected.
func outputNames(files []string) ([]string, error) {
	names := make([]string, len(files))
	owner := make(map[string]string, len(files))
	for i, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		if prev, ok := owner[name]; ok {
			return nil, fmt.Errorf("%s and %s would both write %s.png", prev, file, name)
		}
		owner[name] = file
		names[i] = name
	}
	return names, nil
}

// batch filters files into outDir, at most jobs at a time. The first failure
// cancels the remaining runs. Plots, when requested, are written next to
// each output as <name>.plot.png.
func (c *CLI) batch(ctx context.Context, cfg *config.Config, filter, outDir string, jobs int, files []string) error {
	names, err := outputNames(files)
	if err != nil {
		return err
	}

	start := time.Now()
	cache := imaging.NewImageCache()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, file := range files {
		g.Go(func() error {
			img, err := cache.Load(file)
			if err != nil {
				return err
			}
			res, err := pipeline.Smooth(ctx, img, filter, pipeline.Options{
				Config: cfg,
				Logger: c.Logger.With("file", filepath.Base(file)),
			})
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			name := names[i]
			out := filepath.Join(outDir, name+".png")
			plot := ""
			if cfg.GetPlot() != "" {
				plot = filepath.Join(outDir, name+".plot.png")
			}
			return c.writeResult(res, out, plot, filter)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.Logger.Infof("filtered %d images (%s)", len(files), time.Since(start).Round(time.Millisecond))
	return nil
}

// writeResult saves the evolved image and, when plot is set, its
// convergence plot.
func (c *CLI) writeResult(res *pipeline.Result, out, plot, title string) error {
	if err := imaging.Save(out, res.Image); err != nil {
		return err
	}
	c.Logger.Info("wrote image", "path", out,
		"iterations", res.Summary.Iterations,
		"rms", res.Summary.RMSChange)

	if plot == "" {
		return nil
	}
	if err := res.History.SavePlot(plot, title); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	c.Logger.Debug("wrote plot", "path", plot)
	return nil
}
