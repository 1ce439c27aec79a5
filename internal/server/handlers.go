package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/image-pde/internal/config"
	"github.com/ironsheep/image-pde/internal/grid"
	"github.com/ironsheep/image-pde/internal/imaging"
	"github.com/ironsheep/image-pde/internal/pipeline"
	"github.com/ironsheep/image-pde/internal/report"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "pde_smooth", "image_crop").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "err", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Solver
	case "pde_filters":
		return s.handlePDEFilters()
	case "pde_smooth":
		return s.handlePDESmooth(ctx, args)
	case "pde_curvature_flow":
		return s.handlePDECurvatureFlow(ctx, args)
	case "pde_register":
		return s.handlePDERegister(ctx, args)

	// Images
	case "image_load":
		return s.handleImageLoad(args)
	case "image_crop":
		return s.handleImageCrop(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments, treating missing arguments as {}.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, v)
}

// === Solver Handlers ===

type filtersResult struct {
	Filters    []string `json:"filters"`
	Boundaries []string `json:"boundaries"`
	Modes      []string `json:"modes"`
}

func (s *Server) handlePDEFilters() (interface{}, error) {
	return &filtersResult{
		Filters:    config.Filters(),
		Boundaries: []string{grid.Mirror.String(), grid.Clamp.String(), grid.Wrap.String(), grid.Constant.String()},
		Modes:      []string{imaging.Gray.String(), imaging.RGB.String(), imaging.Lab.String()},
	}, nil
}

// regionArgs selects the part of an image a tool works on: a named region,
// or the rectangle (x1,y1)-(x2,y2) when x2 > x1. Neither means the whole
// image.
type regionArgs struct {
	Region string `json:"region"`
	X1     int    `json:"x1"`
	Y1     int    `json:"y1"`
	X2     int    `json:"x2"`
	Y2     int    `json:"y2"`
}

func (r regionArgs) apply(img image.Image) (image.Image, error) {
	var rect image.Rectangle
	switch {
	case r.Region != "":
		var err error
		if rect, err = imaging.NamedRegion(img.Bounds(), r.Region); err != nil {
			return nil, err
		}
	case r.X2 > r.X1 || r.Y2 > r.Y1:
		rect = image.Rect(r.X1, r.Y1, r.X2, r.Y2)
	default:
		return img, nil
	}
	return imaging.CropImage(img, rect, 1)
}

// solverArgs are the solver settings a tool call may override. Zero values
// keep the server configuration.
type solverArgs struct {
	Iterations   int     `json:"iterations"`
	RMSThreshold float64 `json:"rms_threshold"`
	Boundary     string  `json:"boundary"`
	Workers      int     `json:"workers"`
	TimeStep     float64 `json:"time_step"`
	Timeout      string  `json:"timeout"`
	IncludePlot  bool    `json:"include_plot"`
}

func (a solverArgs) override(cfg *config.Config) {
	if a.Iterations > 0 {
		cfg.Solver.MaxIterations = &a.Iterations
	}
	if a.RMSThreshold > 0 {
		cfg.Solver.RMSThreshold = &a.RMSThreshold
	}
	if a.Boundary != "" {
		cfg.Solver.Boundary = &a.Boundary
	}
	if a.Workers > 0 {
		cfg.Solver.Workers = &a.Workers
	}
	if a.Timeout != "" {
		cfg.Solver.Timeout = &a.Timeout
	}
}

type smoothArgs struct {
	Path        string  `json:"path"`
	Filter      string  `json:"filter"`
	Mode        string  `json:"mode"`
	Conductance float64 `json:"conductance"`
	Noise       float64 `json:"noise"`
	regionArgs
	solverArgs
}

// filterResult is returned by the filter and registration tools.
type filterResult struct {
	Filter string `json:"filter"`
	report.Summary
	Globals    map[string]float64    `json:"globals,omitempty"`
	Image      *imaging.EncodedImage `json:"image"`
	PlotBase64 string                `json:"plot_png_base64,omitempty"`
}

func (s *Server) handlePDESmooth(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a smoothArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Filter == "" {
		a.Filter = config.FilterGradient
	}
	return s.smooth(ctx, a)
}

func (s *Server) handlePDECurvatureFlow(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a smoothArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	a.Filter = config.FilterCurvatureFlow
	a.Mode = imaging.Gray.String()
	return s.smooth(ctx, a)
}

func (s *Server) smooth(ctx context.Context, a smoothArgs) (*filterResult, error) {
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	cfg := s.cfg.Clone()
	a.solverArgs.override(cfg)
	if a.Mode != "" {
		cfg.Output.Mode = &a.Mode
	}
	if a.Conductance > 0 {
		cfg.Diffusion.Conductance = &a.Conductance
	}
	if a.TimeStep > 0 {
		if a.Filter == config.FilterCurvatureFlow {
			cfg.LevelSet.TimeStep = &a.TimeStep
		} else {
			cfg.Diffusion.TimeStep = &a.TimeStep
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	if img, err = a.regionArgs.apply(img); err != nil {
		return nil, err
	}

	res, err := pipeline.Smooth(ctx, img, a.Filter, pipeline.Options{
		Config: cfg,
		Logger: s.logger,
		Noise:  a.Noise,
	})
	if err != nil {
		return nil, err
	}
	return newFilterResult(a.Filter, res, a.IncludePlot)
}

type registerArgs struct {
	FixedPath         string  `json:"fixed_path"`
	MovingPath        string  `json:"moving_path"`
	StandardDeviation float64 `json:"standard_deviation"`
	MetricThreshold   float64 `json:"metric_threshold"`
	solverArgs
}

func (s *Server) handlePDERegister(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a registerArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.FixedPath == "" || a.MovingPath == "" {
		return nil, fmt.Errorf("fixed_path and moving_path are required")
	}

	cfg := s.cfg.Clone()
	a.solverArgs.override(cfg)
	if a.StandardDeviation > 0 {
		cfg.Demons.StandardDeviation = &a.StandardDeviation
	}
	if a.MetricThreshold > 0 {
		cfg.Demons.MetricThreshold = &a.MetricThreshold
	}
	if a.TimeStep > 0 {
		cfg.Demons.TimeStep = &a.TimeStep
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fixed, err := s.cache.Load(a.FixedPath)
	if err != nil {
		return nil, err
	}
	moving, err := s.cache.Load(a.MovingPath)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Register(ctx, fixed, moving, pipeline.Options{Config: cfg, Logger: s.logger})
	if err != nil {
		return nil, err
	}
	return newFilterResult("demons", res, a.IncludePlot)
}

func newFilterResult(filter string, res *pipeline.Result, withPlot bool) (*filterResult, error) {
	enc, err := imaging.Encode(res.Image)
	if err != nil {
		return nil, err
	}
	out := &filterResult{
		Filter:  filter,
		Summary: res.Summary,
		Globals: res.Globals,
		Image:   enc,
	}
	if withPlot && res.Summary.Iterations > 0 {
		png, err := res.History.PlotPNG(fmt.Sprintf("%s convergence", filter))
		if err != nil {
			return nil, err
		}
		out.PlotBase64 = base64.StdEncoding.EncodeToString(png)
	}
	return out, nil
}

// === Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type imageCropArgs struct {
	Path  string  `json:"path"`
	Scale float64 `json:"scale"`
	regionArgs
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	if a.Region != "" {
		rect, err := imaging.NamedRegion(img.Bounds(), a.Region)
		if err != nil {
			return nil, err
		}
		cropped, err := imaging.CropImage(img, rect, a.Scale)
		if err != nil {
			return nil, err
		}
		return imaging.Encode(cropped)
	}
	return imaging.Crop(img, a.X1, a.Y1, a.X2, a.Y2, a.Scale)
}
