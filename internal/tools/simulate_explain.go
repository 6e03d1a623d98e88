package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Explainer renders stored runs.
type Explainer interface {
	Explain(ctx context.Context, runID string) (string, error)
}

// SimulateExplainTool handles the simulate_explain MCP tool.
type SimulateExplainTool struct {
	explainer Explainer
}

// NewSimulateExplainTool creates a SimulateExplainTool.
func NewSimulateExplainTool(explainer Explainer) *SimulateExplainTool {
	return &SimulateExplainTool{explainer: explainer}
}

// Definition returns the MCP tool definition for registration.
func (t *SimulateExplainTool) Definition() mcp.Tool {
	return mcp.NewTool("simulate_explain",
		mcp.WithDescription(
			"Explain a stored simulation step by step: the scenario, the search "+
				"progress per step, each action on the winning path with the state, "+
				"score and penalty it produced, and which constraints the result satisfies. "+
				"Uses only stored data; the search is not re-run.",
		),
		mcp.WithString("runId",
			mcp.Required(),
			mcp.Description("Run id returned by simulate_run"),
		),
	)
}

// Handle processes the simulate_explain tool call.
func (t *SimulateExplainTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := strings.TrimSpace(req.GetString("runId", ""))
	if runID == "" {
		return mcp.NewToolResultError("'runId' is required"), nil
	}

	text, err := t.explainer.Explain(ctx, runID)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(text), nil
}
