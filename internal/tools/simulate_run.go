package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beamsim/beamsim/internal/config"
	"github.com/beamsim/beamsim/internal/sim"
	"github.com/beamsim/beamsim/internal/simulation"
)

// Runner executes and persists simulations.
type Runner interface {
	Run(ctx context.Context, p simulation.Params) (*sim.Run, error)
	Defaults() config.Defaults
}

// SimulateRunTool handles the simulate_run MCP tool.
type SimulateRunTool struct {
	runner Runner
}

// NewSimulateRunTool creates a SimulateRunTool.
func NewSimulateRunTool(runner Runner) *SimulateRunTool {
	return &SimulateRunTool{runner: runner}
}

// Definition returns the MCP tool definition for registration.
func (t *SimulateRunTool) Definition() mcp.Tool {
	d := t.runner.Defaults()
	return mcp.NewTool("simulate_run",
		mcp.WithDescription(
			"Run a deterministic beam search over a numeric scenario. "+
				"Every step expands each candidate with +step/-step on every attribute "+
				"plus any custom actions the scenario declares, scores the children as "+
				"sum(values) - constraint penalty, and keeps the best beamWidth. "+
				"Identical inputs always return the same runId and result. "+
				"The run is stored and can be explained with simulate_explain "+
				"or read as the simulations://<runId> resource.",
		),
		mcp.WithObject("scenario",
			mcp.Required(),
			mcp.Description(
				"Scenario definition: {\"initial_state\": {\"x\": 0, \"y\": 0}, "+
					"\"step\": 1, \"actions\": [{\"name\": \"boost\", \"delta\": {\"x\": 2}}]}. "+
					"initial_state is required; step and actions are optional.",
			),
			mcp.Properties(map[string]any{
				"initial_state": map[string]any{
					"type":                 "object",
					"description":          "Attribute name to numeric value",
					"additionalProperties": map[string]any{"type": "number"},
				},
				"step": map[string]any{
					"type":        "number",
					"description": "Magnitude of the default increment/decrement actions (default 1)",
				},
				"actions": map[string]any{
					"type":        "array",
					"description": "Custom actions applied in addition to the default increment/decrement pair per attribute: " +
						"{\"name\", \"delta\": {attr: n}, \"set\": {attr: n}} or {\"type\": increment|decrement|set, \"field\", \"delta\"|\"value\"}",
				},
			}),
		),
		mcp.WithObject("constraints",
			mcp.Description(
				"Bounds on attributes, keyed max_<attr> or min_<attr>: "+
					"{\"max_x\": 3, \"min_y\": 1}. The attribute must exist in initial_state.",
			),
		),
		mcp.WithNumber("beamWidth",
			mcp.Description(fmt.Sprintf("Candidates kept per step, >= 1 (default %d)", d.BeamWidth)),
		),
		mcp.WithNumber("maxSteps",
			mcp.Description(fmt.Sprintf("Expansion steps, >= 0 (default %d)", d.MaxSteps)),
		),
		mcp.WithNumber("seed",
			mcp.Description("Integer seed for tie-breaking between equal scores (default 0)"),
		),
		mcp.WithString("scoring",
			mcp.Description(fmt.Sprintf("Scoring function, one of %v (default %s)", sim.ScorerNames(), d.Scoring)),
		),
	)
}

// Handle processes the simulate_run tool call.
func (t *SimulateRunTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	d := t.runner.Defaults()

	rawScenario, ok := args["scenario"]
	if !ok {
		return mcp.NewToolResultError("'scenario' is required"), nil
	}
	scenario, err := sim.DecodeScenario(rawScenario)
	if err != nil {
		return toolError(err)
	}
	constraints, err := sim.DecodeConstraints(args["constraints"])
	if err != nil {
		return toolError(err)
	}

	beamWidth, err := intArg(req, "beamWidth", d.BeamWidth)
	if err != nil {
		return toolError(err)
	}
	maxSteps, err := intArg(req, "maxSteps", d.MaxSteps)
	if err != nil {
		return toolError(err)
	}
	seed, err := int64Arg(req, "seed", 0)
	if err != nil {
		return toolError(err)
	}

	run, err := t.runner.Run(ctx, simulation.Params{
		Scenario:    scenario,
		Constraints: constraints,
		BeamWidth:   beamWidth,
		MaxSteps:    maxSteps,
		Seed:        seed,
		Scoring:     req.GetString("scoring", ""),
	})
	if err != nil {
		return toolError(err)
	}

	out, err := json.MarshalIndent(newRunResponse(run), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding run %s: %w", run.RunID, err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// runResponse is the simulate_run payload. Paths are reduced to their
// action labels; full snapshots live in the stored run.
type runResponse struct {
	RunID          string              `json:"runId"`
	BestResult     candidateResponse   `json:"bestResult"`
	TopK           []candidateResponse `json:"topK"`
	ScoreBreakdown breakdownResponse   `json:"scoreBreakdown"`
}

type candidateResponse struct {
	Values  sim.State `json:"values"`
	Score   float64   `json:"score"`
	Penalty float64   `json:"penalty"`
	Path    []string  `json:"path"`
}

type breakdownResponse struct {
	ValueSum          float64 `json:"value_sum"`
	ConstraintPenalty float64 `json:"constraint_penalty"`
}

func newRunResponse(run *sim.Run) runResponse {
	topK := make([]candidateResponse, len(run.TopK))
	for i, c := range run.TopK {
		topK[i] = newCandidateResponse(c)
	}
	return runResponse{
		RunID:      run.RunID,
		BestResult: newCandidateResponse(run.BestResult),
		TopK:       topK,
		ScoreBreakdown: breakdownResponse{
			ValueSum:          run.ScoreBreakdown.ValueSum,
			ConstraintPenalty: run.ScoreBreakdown.ConstraintPenalty,
		},
	}
}

func newCandidateResponse(c sim.Candidate) candidateResponse {
	return candidateResponse{
		Values:  c.Values,
		Score:   c.Score,
		Penalty: c.Penalty,
		Path:    c.Labels(),
	}
}
