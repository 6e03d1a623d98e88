package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beamsim/beamsim/internal/runstore"
)

// Lister enumerates stored runs.
type Lister interface {
	List(ctx context.Context) ([]runstore.Summary, error)
}

// SimulateListTool handles the simulate_list MCP tool.
type SimulateListTool struct {
	lister Lister
}

// NewSimulateListTool creates a SimulateListTool.
func NewSimulateListTool(lister Lister) *SimulateListTool {
	return &SimulateListTool{lister: lister}
}

// Definition returns the MCP tool definition for registration.
func (t *SimulateListTool) Definition() mcp.Tool {
	return mcp.NewTool("simulate_list",
		mcp.WithDescription(
			"List stored simulations, oldest first, with their parameters and best score.",
		),
	)
}

// Handle processes the simulate_list tool call.
func (t *SimulateListTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := t.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing simulations: %w", err)
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No simulations stored yet. Start one with `simulate_run`."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Simulations (%d)\n\n", len(runs))
	b.WriteString("| Run ID | Created | Beam | Steps | Seed | Scoring | Best score |\n")
	b.WriteString("|--------|---------|------|-------|------|---------|------------|\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "| `%s` | %s | %d | %d | %d | %s | %g |\n",
			r.RunID, r.CreatedAt, r.BeamWidth, r.MaxSteps, r.Seed, r.Scoring, r.BestScore)
	}
	return mcp.NewToolResultText(b.String()), nil
}
