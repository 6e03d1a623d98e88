package tools

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beamsim/beamsim/internal/config"
	"github.com/beamsim/beamsim/internal/logging"
	"github.com/beamsim/beamsim/internal/runstore"
	"github.com/beamsim/beamsim/internal/sim"
	"github.com/beamsim/beamsim/internal/simulation"
)

// --- Test helpers ---

// newTestService creates a Service backed by a file store in a temp dir.
func newTestService(t *testing.T) *simulation.Service {
	t.Helper()
	store, err := runstore.OpenFileStore(filepath.Join(t.TempDir(), "simulations.json"), logging.Discard())
	if err != nil {
		t.Fatalf("setup: open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	return simulation.New(store, simulation.Options{
		Defaults: cfg.Defaults,
		Limits:   cfg.Limits,
		Logger:   logging.Discard(),
	})
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// decodeRun parses a simulate_run response.
func decodeRun(t *testing.T, result *mcp.CallToolResult) runResponse {
	t.Helper()
	var out runResponse
	if err := json.Unmarshal([]byte(getResultText(result)), &out); err != nil {
		t.Fatalf("decoding response: %v\n%s", err, getResultText(result))
	}
	return out
}

func scenarioArgs() map[string]interface{} {
	return map[string]interface{}{
		"scenario": map[string]interface{}{
			"initial_state": map[string]interface{}{"x": float64(0), "y": float64(0)},
		},
		"constraints": map[string]interface{}{"max_x": float64(2)},
		"beamWidth":   float64(3),
		"maxSteps":    float64(4),
		"seed":        float64(1),
	}
}

// --- Definitions ---

func TestDefinitions(t *testing.T) {
	svc := newTestService(t)
	tests := []struct {
		name string
		def  mcp.Tool
	}{
		{"simulate_run", NewSimulateRunTool(svc).Definition()},
		{"simulate_explain", NewSimulateExplainTool(svc).Definition()},
		{"simulate_list", NewSimulateListTool(svc).Definition()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.def.Name != tt.name {
				t.Errorf("name = %q, want %q", tt.def.Name, tt.name)
			}
			if tt.def.Description == "" {
				t.Errorf("definition description is empty for %s", tt.name)
			}
		})
	}
}

// --- SimulateRunTool ---

func TestSimulateRunTool_Handle_Success(t *testing.T) {
	tool := NewSimulateRunTool(newTestService(t))

	result, err := tool.Handle(context.Background(), makeReq(scenarioArgs()))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	out := decodeRun(t, result)
	if out.RunID == "" {
		t.Error("response should carry a runId")
	}
	if len(out.TopK) == 0 || len(out.TopK) > 3 {
		t.Errorf("topK has %d entries, want 1..3", len(out.TopK))
	}
	if len(out.BestResult.Path) != 5 {
		t.Errorf("path length = %d, want 5 (initial + 4 steps)", len(out.BestResult.Path))
	}
	if out.BestResult.Path[0] != "initial" {
		t.Errorf("path[0] = %q, want initial", out.BestResult.Path[0])
	}
	if out.BestResult.Penalty < 0 {
		t.Errorf("penalty = %v, must be >= 0", out.BestResult.Penalty)
	}
	if out.ScoreBreakdown.ValueSum-out.ScoreBreakdown.ConstraintPenalty != out.BestResult.Score {
		t.Errorf("breakdown %+v does not add up to score %v", out.ScoreBreakdown, out.BestResult.Score)
	}
}

func TestSimulateRunTool_Handle_BreakdownKeys(t *testing.T) {
	tool := NewSimulateRunTool(newTestService(t))

	result, err := tool.Handle(context.Background(), makeReq(scenarioArgs()))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	var out struct {
		ScoreBreakdown map[string]float64 `json:"scoreBreakdown"`
	}
	if err := json.Unmarshal([]byte(getResultText(result)), &out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	for _, key := range []string{"value_sum", "constraint_penalty"} {
		if _, ok := out.ScoreBreakdown[key]; !ok {
			t.Errorf("scoreBreakdown missing %q: %v", key, out.ScoreBreakdown)
		}
	}
	if len(out.ScoreBreakdown) != 2 {
		t.Errorf("scoreBreakdown has unexpected keys: %v", out.ScoreBreakdown)
	}
}

func TestSimulateRunTool_Handle_TypedActions(t *testing.T) {
	tool := NewSimulateRunTool(newTestService(t))

	// {"type", "field", "delta"} actions without names.
	args := map[string]interface{}{
		"scenario": map[string]interface{}{
			"initial_state": map[string]interface{}{"x": float64(0), "y": float64(0)},
			"actions": []interface{}{
				map[string]interface{}{"type": "increment", "field": "x", "delta": float64(2)},
				map[string]interface{}{"type": "decrement", "field": "y"},
			},
		},
		"beamWidth": float64(2),
		"maxSteps":  float64(2),
	}

	result, err := tool.Handle(context.Background(), makeReq(args))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	out := decodeRun(t, result)
	want := "initial,increment(x,2),increment(x,2)"
	if got := strings.Join(out.BestResult.Path, ","); got != want {
		t.Errorf("path = %s, want %s", got, want)
	}
	if out.BestResult.Values["x"] != 4 {
		t.Errorf("x = %v, want 4", out.BestResult.Values["x"])
	}
}

func TestSimulateRunTool_Handle_Deterministic(t *testing.T) {
	tool := NewSimulateRunTool(newTestService(t))

	first, err := tool.Handle(context.Background(), makeReq(scenarioArgs()))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	second, err := tool.Handle(context.Background(), makeReq(scenarioArgs()))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if getResultText(first) != getResultText(second) {
		t.Errorf("repeated call differs:\n%s\n---\n%s", getResultText(first), getResultText(second))
	}
}

func TestSimulateRunTool_Handle_Defaults(t *testing.T) {
	tool := NewSimulateRunTool(newTestService(t))

	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"scenario": map[string]interface{}{
			"initial_state": map[string]interface{}{"x": float64(0)},
		},
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	out := decodeRun(t, result)
	// Default maxSteps is 10.
	if len(out.BestResult.Path) != 11 {
		t.Errorf("path length = %d, want 11", len(out.BestResult.Path))
	}
	if out.BestResult.Values["x"] != 10 {
		t.Errorf("x = %v, want 10", out.BestResult.Values["x"])
	}
}

func TestSimulateRunTool_Handle_DocumentedExample(t *testing.T) {
	tool := NewSimulateRunTool(newTestService(t))
	args := map[string]interface{}{
		"scenario": map[string]interface{}{
			"initial_state": map[string]interface{}{"x": float64(0), "score": float64(10)},
		},
		"constraints": map[string]interface{}{"min_y": float64(5)},
		"beamWidth":   float64(2),
		"maxSteps":    float64(3),
	}

	result, err := tool.Handle(context.Background(), makeReq(args))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("constraint on an unknown attribute should be rejected")
	}
	if !strings.Contains(getResultText(result), "y") {
		t.Errorf("error should name the attribute: %s", getResultText(result))
	}

	args["scenario"].(map[string]interface{})["initial_state"].(map[string]interface{})["y"] = float64(0)
	first, err := tool.Handle(context.Background(), makeReq(args))
	if err != nil || isErrorResult(first) {
		t.Fatalf("expected success: %v %s", err, getResultText(first))
	}
	second, err := tool.Handle(context.Background(), makeReq(args))
	if err != nil || isErrorResult(second) {
		t.Fatalf("expected success: %v %s", err, getResultText(second))
	}

	a, b := decodeRun(t, first), decodeRun(t, second)
	if a.RunID != b.RunID {
		t.Errorf("runId changed: %s vs %s", a.RunID, b.RunID)
	}
	if a.BestResult.Score != b.BestResult.Score || strings.Join(a.BestResult.Path, ",") != strings.Join(b.BestResult.Path, ",") {
		t.Errorf("bestResult changed: %+v vs %+v", a.BestResult, b.BestResult)
	}
}

func TestSimulateRunTool_Handle_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		want   string
	}{
		{"missing scenario", func(a map[string]interface{}) { delete(a, "scenario") }, "scenario"},
		{"scenario not an object", func(a map[string]interface{}) { a["scenario"] = "x=1" }, "scenario"},
		{"zero beam width", func(a map[string]interface{}) { a["beamWidth"] = float64(0) }, "beamWidth"},
		{"negative steps", func(a map[string]interface{}) { a["maxSteps"] = float64(-1) }, "maxSteps"},
		{"fractional beam width", func(a map[string]interface{}) { a["beamWidth"] = 2.5 }, "integer"},
		{"string seed", func(a map[string]interface{}) { a["seed"] = "7" }, "integer"},
		{"bad constraint key", func(a map[string]interface{}) { a["constraints"] = map[string]interface{}{"x": float64(1)} }, "x"},
		{"unknown scoring", func(a map[string]interface{}) { a["scoring"] = "magic" }, "magic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewSimulateRunTool(newTestService(t))
			args := scenarioArgs()
			tt.mutate(args)

			result, err := tool.Handle(context.Background(), makeReq(args))
			if err != nil {
				t.Fatalf("invalid input should not be a Go error: %v", err)
			}
			if !isErrorResult(result) {
				t.Fatalf("expected tool error, got: %s", getResultText(result))
			}
			if !strings.Contains(getResultText(result), tt.want) {
				t.Errorf("error %q should mention %q", getResultText(result), tt.want)
			}
		})
	}
}

var errStoreFault = errors.New("disk full")

// failingRunner returns an infrastructure fault.
type failingRunner struct{}

func (failingRunner) Run(context.Context, simulation.Params) (*sim.Run, error) {
	return nil, errStoreFault
}

func (failingRunner) Defaults() config.Defaults { return config.Default().Defaults }

func TestSimulateRunTool_Handle_InternalError(t *testing.T) {
	tool := NewSimulateRunTool(failingRunner{})
	result, err := tool.Handle(context.Background(), makeReq(scenarioArgs()))
	if err == nil {
		t.Fatalf("expected Go error, got result: %s", getResultText(result))
	}
	if !errors.Is(err, errStoreFault) {
		t.Errorf("err = %v, want the store fault", err)
	}
}

// --- SimulateExplainTool ---

func TestSimulateExplainTool_Handle(t *testing.T) {
	svc := newTestService(t)
	runResult, err := NewSimulateRunTool(svc).Handle(context.Background(), makeReq(scenarioArgs()))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	runID := decodeRun(t, runResult).RunID

	tool := NewSimulateExplainTool(svc)
	result, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"runId": runID}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, runID) {
		t.Error("explanation should contain the run id")
	}
	if strings.Count(text, "applied ") != 4 {
		t.Errorf("explanation should have one applied line per step:\n%s", text)
	}
}

func TestSimulateExplainTool_Handle_Errors(t *testing.T) {
	tool := NewSimulateExplainTool(newTestService(t))

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing run id", map[string]interface{}{}, "runId"},
		{"unknown run id", map[string]interface{}{"runId": "does-not-exist"}, "does-not-exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Handle(context.Background(), makeReq(tt.args))
			if err != nil {
				t.Fatalf("Handle returned Go error: %v", err)
			}
			if !isErrorResult(result) {
				t.Fatal("expected tool error")
			}
			if !strings.Contains(getResultText(result), tt.want) {
				t.Errorf("error %q should mention %q", getResultText(result), tt.want)
			}
		})
	}
}

// --- SimulateListTool ---

func TestSimulateListTool_Handle(t *testing.T) {
	svc := newTestService(t)
	tool := NewSimulateListTool(svc)

	result, err := tool.Handle(context.Background(), makeReq(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "No simulations") {
		t.Errorf("empty store should say so: %s", getResultText(result))
	}

	runResult, err := NewSimulateRunTool(svc).Handle(context.Background(), makeReq(scenarioArgs()))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	runID := decodeRun(t, runResult).RunID

	result, err = tool.Handle(context.Background(), makeReq(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := getResultText(result)
	if !strings.Contains(text, "Simulations (1)") {
		t.Errorf("list should count one run:\n%s", text)
	}
	if !strings.Contains(text, runID) {
		t.Errorf("list should contain %s:\n%s", runID, text)
	}
}

// --- helpers ---

func TestIntArg(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		def      int
		expected int
		wantErr  bool
	}{
		{"present", map[string]interface{}{"n": float64(20)}, 10, 20, false},
		{"missing", map[string]interface{}{}, 10, 10, false},
		{"null", map[string]interface{}{"n": nil}, 10, 10, false},
		{"zero", map[string]interface{}{"n": float64(0)}, 10, 0, false},
		{"negative", map[string]interface{}{"n": float64(-3)}, 10, -3, false},
		{"fraction", map[string]interface{}{"n": 1.5}, 10, 0, true},
		{"wrong type", map[string]interface{}{"n": "not a number"}, 10, 0, true},
		{"too large", map[string]interface{}{"n": float64(1 << 40)}, 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := intArg(makeReq(tt.args), "n", tt.def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("intArg() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.expected {
				t.Errorf("intArg() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestInt64Arg_LargeSeed(t *testing.T) {
	got, err := int64Arg(makeReq(map[string]interface{}{"seed": float64(1 << 40)}), "seed", 0)
	if err != nil {
		t.Fatalf("int64Arg() error: %v", err)
	}
	if got != 1<<40 {
		t.Errorf("int64Arg() = %d, want %d", got, int64(1<<40))
	}
}
