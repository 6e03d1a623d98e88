package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ExplainPrompt handles the beamsim-explain MCP prompt.
// It instructs the AI to fetch and walk through a stored run.
type ExplainPrompt struct{}

// NewExplainPrompt creates an ExplainPrompt.
func NewExplainPrompt() *ExplainPrompt {
	return &ExplainPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ExplainPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("beamsim-explain",
		mcp.WithPromptDescription(
			"Walk through a stored simulation: what the search did at each step, "+
				"why the winning path won, and which constraints held.",
		),
		mcp.WithArgument("runId",
			mcp.ArgumentDescription("Run id returned by simulate_run"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the beamsim-explain prompt request.
func (p *ExplainPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	runID := strings.TrimSpace(req.Params.Arguments["runId"])
	if runID == "" {
		return nil, fmt.Errorf("argument 'runId' is required")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explain simulation %s", runID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Please run `simulate_explain` with runId='%s'.\n\n"+
						"Then:\n"+
						"1. Summarize the scenario and constraints in one or two sentences\n"+
						"2. Walk me through the winning path, one action at a time, with the score after each\n"+
						"3. Point out any constraint the final state still violates and by how much\n"+
						"4. Compare the best result with the runner-up candidates\n"+
						"5. If the full record is needed, read the resource simulations://%s",
					runID, runID,
				)),
			},
		},
	}, nil
}
