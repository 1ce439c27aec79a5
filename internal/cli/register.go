package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-pde/internal/imaging"
	"github.com/ironsheep/image-pde/internal/pipeline"
	"github.com/ironsheep/image-pde/internal/registration"
)

func (c *CLI) registerCommand() *cobra.Command {
	var (
		opts              solverOpts
		fixed, moving     string
		out               string
		standardDeviation float64
		metricThreshold   float64
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Align a moving image to a fixed image",
		Long: `Estimate the displacement field that maps the moving image onto the fixed
image with the demons algorithm and write the warped moving image.`,
		Example: `  image-pde register --fixed ref.png --moving scan.png --out aligned.png -n 100 --sigma 1.5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("sigma") {
				cfg.Demons.StandardDeviation = &standardDeviation
			}
			if cmd.Flags().Changed("metric") {
				cfg.Demons.MetricThreshold = &metricThreshold
			}
			if err := opts.apply(cmd, cfg, "demons"); err != nil {
				return err
			}

			cache := imaging.NewImageCache()
			fixedImg, err := cache.Load(fixed)
			if err != nil {
				return err
			}
			movingImg, err := cache.Load(moving)
			if err != nil {
				return err
			}
			c.Logger.Debug("registering",
				"fixed", fixedImg.Bounds().Size(),
				"moving", movingImg.Bounds().Size())

			res, err := pipeline.Register(cmd.Context(), fixedImg, movingImg, pipeline.Options{
				Config: cfg,
				Logger: c.Logger.With("file", filepath.Base(moving)),
			})
			if err != nil {
				return err
			}
			if metric, ok := res.Globals[registration.GlobalMetric]; ok {
				c.Logger.Info("registration finished", "metric", metric,
					"overlap", res.Globals[registration.GlobalOverlap])
			}
			return c.writeResult(res, out, cfg.GetPlot(), "demons")
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&fixed, "fixed", "", "reference image")
	cmd.Flags().StringVar(&moving, "moving", "", "image to align")
	cmd.Flags().StringVarP(&out, "out", "o", "", "warped moving image")
	cmd.Flags().Float64Var(&standardDeviation, "sigma", 0, "Gaussian smoothing of the field per iteration (default 1)")
	cmd.Flags().Float64Var(&metricThreshold, "metric", 0, "stop once the mean squared difference falls below this value")
	_ = cmd.MarkFlagRequired("fixed")
	_ = cmd.MarkFlagRequired("moving")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
