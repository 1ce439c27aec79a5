// Package server implements the MCP (Model Context Protocol) server for the
// PDE image filters.
//
// This package provides a JSON-RPC 2.0 server that exposes the solver's
// filters and demons registration through the MCP protocol, so an MCP client
// can denoise, smooth and align images by path.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Solver:
//   - pde_filters: List filters, boundary modes and color modes
//   - pde_smooth: Evolve an image under a diffusion filter
//   - pde_curvature_flow: Evolve a grayscale image under mean curvature flow
//   - pde_register: Align a moving image to a fixed one with demons
//
// Images:
//   - image_load: Load image and get metadata
//   - image_crop: Extract a rectangular or named region
//
// The solver tools accept per-call overrides (iterations, rms_threshold,
// boundary, workers, time_step, timeout) on top of the configuration the
// server was started with. The server's configuration itself is never
// modified by a call.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across multiple tool calls, avoiding redundant disk I/O.
// The cache persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC errors with code -32000 and the error
// text in data. Solver failures carry their code, for example
// "pde: copy input: CONFIGURATION: ...".
//
// # Logging
//
// Logs go to stderr, leaving stdout to the protocol. The level comes from
// IMAGE_PDE_LOG_LEVEL (debug, info, warn, error); the default is warn.
package server
