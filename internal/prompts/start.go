// Package prompts implements MCP prompt handlers for beam-search simulations.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the beamsim-start MCP prompt.
// It guides the AI to turn a goal into a scenario and run it.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("beamsim-start",
		mcp.WithPromptDescription(
			"Model a goal as a numeric scenario and search it. "+
				"Guides you from naming the attributes and their bounds "+
				"to a first simulate_run and its explanation.",
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What you want to optimize, in plain words"),
		),
		mcp.WithArgument("attributes",
			mcp.ArgumentDescription("Comma-separated attribute names to start from, e.g. 'budget,quality'"),
		),
	)
}

// Handle processes the beamsim-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	goal := "maximize the total of my attributes"
	var attrs []string
	if args := req.Params.Arguments; args != nil {
		if g := strings.TrimSpace(args["goal"]); g != "" {
			goal = g
		}
		for _, a := range strings.Split(args["attributes"], ",") {
			if a = strings.TrimSpace(a); a != "" {
				attrs = append(attrs, a)
			}
		}
	}

	attrLine := "Ask me which numeric attributes describe the situation and their starting values."
	if len(attrs) > 0 {
		attrLine = fmt.Sprintf("Use the attributes %s; ask me for their starting values.", strings.Join(attrs, ", "))
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start a simulation: %s", goal),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to explore this goal with a beam search: %s.\n\n"+
						"Please:\n"+
						"1. %s\n"+
						"2. Ask me for upper or lower bounds and express them as max_<attr> / min_<attr> constraints\n"+
						"3. If plain +1/-1 steps do not fit, propose custom actions with a name and per-attribute deltas\n"+
						"4. Run `simulate_run` with the scenario and constraints (keep the default beamWidth and maxSteps unless I ask otherwise)\n"+
						"5. Run `simulate_explain` with the returned runId and summarize the winning path for me",
					goal, attrLine,
				)),
			},
		},
	}, nil
}
