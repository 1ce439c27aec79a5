package server

import "maps"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func property(typ, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        typ,
		"description": description,
	}
}

// regionProperties select part of the input image.
func regionProperties() map[string]interface{} {
	return map[string]interface{}{
		"region": map[string]interface{}{
			"type":        "string",
			"description": "Named region to process instead of the whole image",
			"enum": []string{
				"full", "top-left", "top-right", "bottom-left", "bottom-right",
				"top-half", "bottom-half", "left-half", "right-half", "center",
			},
		},
		"x1": property("integer", "Left edge X coordinate (0-based)"),
		"y1": property("integer", "Top edge Y coordinate (0-based)"),
		"x2": property("integer", "Right edge X coordinate (exclusive)"),
		"y2": property("integer", "Bottom edge Y coordinate (exclusive)"),
	}
}

// solverProperties override the server's solver configuration for one call.
func solverProperties() map[string]interface{} {
	return map[string]interface{}{
		"iterations":    property("integer", "Maximum number of iterations. Default from the server config (50)"),
		"rms_threshold": property("number", "Stop once the RMS change of an iteration falls below this value. 0 disables"),
		"boundary": map[string]interface{}{
			"type":        "string",
			"description": "How pixels outside the image are read",
			"enum":        []string{"mirror", "clamp", "wrap", "constant"},
		},
		"workers":      property("integer", "Number of parallel partitions, at most 1024. 0 uses every CPU"),
		"time_step":    property("number", "Time step per iteration. 0 picks the filter's stable default"),
		"timeout":      property("string", "Abort the run after this duration, e.g. \"30s\""),
		"include_plot": property("boolean", "Also return a PNG plot of the convergence history"),
	}
}

func merge(parts ...map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, p := range parts {
		maps.Copy(out, p)
	}
	return out
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Solver
		{
			Name:        "pde_filters",
			Description: "List the available PDE filters, boundary modes and color modes.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "pde_smooth",
			Description: "Smooth an image by evolving it under a diffusion PDE. Anisotropic filters remove noise while keeping edges sharp. Returns the result as base64-encoded PNG with convergence statistics.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(map[string]interface{}{
					"path": property("string", "Absolute path to the image file"),
					"filter": map[string]interface{}{
						"type":        "string",
						"description": "Filter to apply. Default gradient",
						"enum":        []string{"heat", "gradient", "curvature", "vector", "curvature-flow"},
						"default":     "gradient",
					},
					"mode": map[string]interface{}{
						"type":        "string",
						"description": "Color space the filter runs in. Default from the server config (gray)",
						"enum":        []string{"gray", "rgb", "lab"},
					},
					"conductance": property("number", "Edge-stopping parameter of the anisotropic filters. Larger values smooth across stronger edges"),
					"noise":       property("number", "Add Gaussian noise of this amplitude before filtering, for experiments"),
				}, regionProperties(), solverProperties()),
				"required": []string{"path"},
			},
		},
		{
			Name:        "pde_curvature_flow",
			Description: "Evolve a grayscale image under mean curvature flow, which shrinks level sets and removes small-scale noise. Returns the result as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(map[string]interface{}{
					"path":  property("string", "Absolute path to the image file"),
					"noise": property("number", "Add Gaussian noise of this amplitude before filtering, for experiments"),
				}, regionProperties(), solverProperties()),
				"required": []string{"path"},
			},
		},
		{
			Name:        "pde_register",
			Description: "Register a moving image onto a fixed image with the demons algorithm. Returns the warped moving image and the final mean squared difference.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(map[string]interface{}{
					"fixed_path":         property("string", "Absolute path to the reference image"),
					"moving_path":        property("string", "Absolute path to the image to align"),
					"standard_deviation": property("number", "Gaussian smoothing of the displacement field per iteration. Default 1.0"),
					"metric_threshold":   property("number", "Stop once the mean squared difference falls below this value. 0 disables"),
				}, solverProperties()),
				"required": []string{"fixed_path", "moving_path"},
			},
		},

		// Images
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The image stays cached for subsequent operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": property("string", "Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_crop",
			Description: "Crop a rectangular or named region from an image and return it as base64-encoded PNG. Use this to inspect the input or output of a filter more closely.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(map[string]interface{}{
					"path": property("string", "Absolute path to the image file"),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				}, regionProperties()),
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
