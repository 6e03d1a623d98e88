package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beamsim/beamsim/internal/sim"
)

// execute runs the CLI against an isolated store and returns stdout.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("BEAMSIM_STORE_PATH", filepath.Join(dir, "simulations.json"))
	t.Setenv("BEAMSIM_STORE_BACKEND", "file")

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "missing.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeScenario(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing scenario: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "beamsim v") {
		t.Errorf("version output = %q", out)
	}
}

func TestRunExplainList(t *testing.T) {
	dir := t.TempDir()
	scenario := writeScenario(t, dir, "initial_state:\n  x: 0\n  y: 0\nconstraints:\n  max_x: 2\n")

	out, err := execute(t, dir, "run", "--scenario", scenario, "--constraint", "min_y=1", "--beam-width", "3", "--max-steps", "4")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var run sim.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("run output is not JSON: %v\n%s", err, out)
	}
	if run.BeamWidth != 3 || run.MaxSteps != 4 {
		t.Errorf("flags not applied: beam %d steps %d", run.BeamWidth, run.MaxSteps)
	}
	if run.Constraints["max_x"] != 2 || run.Constraints["min_y"] != 1 {
		t.Errorf("constraints = %v", run.Constraints)
	}

	out, err = execute(t, dir, "explain", run.RunID)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if !strings.Contains(out, run.RunID) || strings.Count(out, "applied ") != 4 {
		t.Errorf("unexpected explanation:\n%s", out)
	}

	out, err = execute(t, dir, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, run.RunID) {
		t.Errorf("list should contain %s:\n%s", run.RunID, out)
	}
}

func TestRun_UsesConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	scenario := writeScenario(t, dir, "initial_state: {x: 0}\n")

	out, err := execute(t, dir, "run", "--scenario", scenario)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var run sim.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("run output is not JSON: %v", err)
	}
	if run.BeamWidth != 5 || run.MaxSteps != 10 {
		t.Errorf("defaults not applied: beam %d steps %d", run.BeamWidth, run.MaxSteps)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		args []string
	}{
		{"bad constraint flag", "initial_state: {x: 0}\n", []string{"--constraint", "max_x"}},
		{"unknown attribute", "initial_state: {x: 0}\n", []string{"--constraint", "max_z=1"}},
		{"empty state", "initial_state: {}\n", nil},
		{"zero beam width", "initial_state: {x: 0}\n", []string{"--beam-width", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			scenario := writeScenario(t, dir, tt.body)
			_, err := execute(t, dir, append([]string{"run", "--scenario", scenario}, tt.args...)...)
			if !errors.Is(err, sim.ErrInvalidParams) {
				t.Errorf("err = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestExplain_Unknown(t *testing.T) {
	_, err := execute(t, t.TempDir(), "explain", "nope")
	if !errors.Is(err, sim.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
