// Package tools implements the MCP tool handlers for beam-search simulations.
//
// Each tool receives its dependencies via its struct (DIP) and exposes
// Definition() for registration and Handle() for the call itself.
//
// Design principles:
// - SRP: each file = one tool
// - DIP: tools depend on small interfaces satisfied by simulation.Service
// - user mistakes come back as tool errors; infrastructure faults as Go errors
package tools

import (
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beamsim/beamsim/internal/sim"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing. JSON numbers arrive as float64; fractional values are rejected
// rather than truncated.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) (int, error) {
	v, err := int64Arg(req, key, int64(defaultVal))
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, fmt.Errorf("%w: '%s' is out of range", sim.ErrInvalidParams, key)
	}
	return int(v), nil
}

// int64Arg is intArg for 64-bit values such as seeds.
func int64Arg(req mcp.CallToolRequest, key string, defaultVal int64) (int64, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return defaultVal, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: '%s' must be an integer, got %v", sim.ErrInvalidParams, key, v)
		}
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("%w: '%s' is out of range", sim.ErrInvalidParams, key)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: '%s' must be an integer, got %T", sim.ErrInvalidParams, key, raw)
	}
}

// toolError maps the error taxonomy onto the MCP result: invalid input and
// unknown runs are reported to the caller, anything else is a server fault.
func toolError(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, sim.ErrInvalidParams), errors.Is(err, sim.ErrNotFound):
		return mcp.NewToolResultError(err.Error()), nil
	default:
		return nil, err
	}
}
