// Package report records solver convergence and renders it with gonum/plot.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ironsheep/image-pde/internal/pde"
)

// Plot dimensions.
const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// ErrNoData is returned when plotting a history without iterations.
var ErrNoData = errors.New("report: no iterations recorded")

// History is a pde.Observer that keeps every iteration report of a run.
// It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	reports []pde.IterationReport
	summary Summary
}

// Summary describes a finished run.
type Summary struct {
	RunID      string        `json:"run_id"`
	Iterations int           `json:"iterations"`
	RMSChange  float64       `json:"rms_change"`
	TimeStep   float64       `json:"time_step"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Error      string        `json:"error,omitempty"`
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// OnIteration implements pde.Observer.
func (h *History) OnIteration(r pde.IterationReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.reports) > 0 && h.reports[0].RunID != r.RunID {
		h.reports = h.reports[:0]
		h.summary = Summary{}
	}
	h.reports = append(h.reports, r)
	h.summary.RunID = r.RunID
	h.summary.Iterations = r.Iteration
	h.summary.RMSChange = r.RMSChange
	h.summary.TimeStep = r.TimeStep
	h.summary.Elapsed += r.Duration
}

// OnHalt implements pde.Observer.
func (h *History) OnHalt(runID string, elapsed int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.summary.RunID != runID {
		h.reports = h.reports[:0]
		h.summary = Summary{RunID: runID}
	}
	h.summary.Iterations = elapsed
	if err != nil {
		h.summary.Error = err.Error()
	}
}

// Reports returns a copy of the recorded iterations.
func (h *History) Reports() []pde.IterationReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.reports)
}

// Summary returns the summary of the last run.
func (h *History) Summary() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.summary
}

// Plot renders the RMS change and every published global against the
// iteration number.
func (h *History) Plot(title string) (*plot.Plot, error) {
	reports := h.Reports()
	if len(reports) == 0 {
		return nil, ErrNoData
	}

	series := map[string]plotter.XYs{"rms change": make(plotter.XYs, len(reports))}
	for i, r := range reports {
		series["rms change"][i] = plotter.XY{X: float64(r.Iteration), Y: r.RMSChange}
		for k, v := range r.Globals {
			series[k] = append(series[k], plotter.XY{X: float64(r.Iteration), Y: v})
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Value"
	p.Legend.Top = true
	p.Legend.Left = false

	names := slices.Sorted(maps.Keys(series))
	colors := palette(len(names))
	for i, name := range names {
		line, err := plotter.NewLine(series[name])
		if err != nil {
			return nil, fmt.Errorf("failed to plot %s: %w", name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	return p, nil
}

// SavePlot writes the convergence plot to path. The format follows the
// extension (png, svg, pdf, ...).
func (h *History) SavePlot(path, title string) error {
	p, err := h.Plot(title)
	if err != nil {
		return err
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// PlotPNG returns the convergence plot encoded as PNG.
func (h *History) PlotPNG(title string) ([]byte, error) {
	p, err := h.Plot(title)
	if err != nil {
		return nil, err
	}
	w, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode plot: %w", err)
	}
	return buf.Bytes(), nil
}

// palette returns n colors with evenly spaced hues at constant chroma and
// luminance, so no series stands out.
func palette(n int) []colorful.Color {
	colors := make([]colorful.Color, n)
	for i := range colors {
		colors[i] = colorful.Hcl(360*float64(i)/float64(max(n, 1)), 0.5, 0.55).Clamped()
	}
	return colors
}
