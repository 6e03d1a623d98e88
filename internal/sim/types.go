// Package sim implements the deterministic beam-search simulation engine.
//
// A simulation starts from a scenario's initial state, expands every
// candidate in the beam with a fixed action vocabulary, scores the
// children against a set of bound constraints, and keeps the best
// beamWidth of them for the next step.
//
// This package follows the same layout as the rest of the server:
// - types, expansion, constraints, scoring and the engine live in separate files
// - the scoring formula and the tie-break generator are injected, never global
// - nothing here performs I/O; persistence lives in internal/runstore
package sim

import (
	"sort"
	"time"
)

// InitialAction is the sentinel label of the first entry of every path.
const InitialAction = "initial"

// DefaultStep is the increment/decrement magnitude used when a scenario
// does not override it.
const DefaultStep = 1.0

// --- State ---

// State maps attribute names to numeric values. The key set is fixed for
// the duration of a run.
type State map[string]float64

// Keys returns the attribute names in canonical (sorted) order. Every
// iteration over a State goes through Keys so results never depend on
// map ordering.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sum adds the values in key order.
func (s State) Sum() float64 {
	var total float64
	for _, k := range s.Keys() {
		total += s[k]
	}
	return total
}

// Clone returns an independent copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether both states hold the same attributes and values.
func (s State) Equal(o State) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		ov, ok := o[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// --- Actions ---

// ActionKind distinguishes the default per-attribute steps from
// scenario-declared actions.
type ActionKind string

const (
	KindIncrement ActionKind = "increment"
	KindDecrement ActionKind = "decrement"
	KindCustom    ActionKind = "custom"
)

// Action is a named, deterministic transform over a State.
// Deltas are added first, then Sets are assigned.
type Action struct {
	Name   string             `json:"name"`
	Kind   ActionKind         `json:"kind"`
	Deltas map[string]float64 `json:"delta,omitempty"`
	Sets   map[string]float64 `json:"set,omitempty"`
}

// Label is the path entry recorded when the action is applied.
func (a Action) Label() string {
	return a.Name
}

// Apply returns a new State; the input is never modified.
func (a Action) Apply(s State) State {
	next := s.Clone()
	for _, k := range sortedKeys(a.Deltas) {
		next[k] += a.Deltas[k]
	}
	for _, k := range sortedKeys(a.Sets) {
		next[k] = a.Sets[k]
	}
	return next
}

// --- Scenario ---

// Scenario is the initial state plus the custom actions defining a simulation.
type Scenario struct {
	InitialState State    `json:"initial_state"`
	Actions      []Action `json:"actions,omitempty"`
	Step         float64  `json:"step"`
}

// --- Candidates & runs ---

// PathStep is the snapshot recorded each time an action is applied, so a
// path can be explained exactly without re-running the search.
type PathStep struct {
	Action  string  `json:"action"`
	Values  State   `json:"values"`
	Score   float64 `json:"score"`
	Penalty float64 `json:"penalty"`
}

// Candidate is a state reached via a specific action path.
type Candidate struct {
	Values  State      `json:"values"`
	Score   float64    `json:"score"`
	Penalty float64    `json:"penalty"`
	Path    []PathStep `json:"path"`
}

// Labels returns the action labels of the path, starting with "initial".
func (c Candidate) Labels() []string {
	labels := make([]string, len(c.Path))
	for i, step := range c.Path {
		labels[i] = step.Action
	}
	return labels
}

// ScoreBreakdown splits the best candidate's score into its components.
type ScoreBreakdown struct {
	ValueSum          float64 `json:"value_sum"`
	ConstraintPenalty float64 `json:"constraint_penalty"`
}

// StepSummary describes the frontier after one expansion step.
type StepSummary struct {
	Step       int     `json:"step"`
	PoolSize   int     `json:"pool_size"`
	BeamSize   int     `json:"beam_size"`
	BestScore  float64 `json:"best_score"`
	WorstScore float64 `json:"worst_score"`
}

// Run is one complete, immutable beam-search execution and its result.
type Run struct {
	RunID          string         `json:"run_id"`
	Scenario       Scenario       `json:"scenario"`
	Constraints    Constraints    `json:"constraints"`
	BeamWidth      int            `json:"beam_width"`
	MaxSteps       int            `json:"max_steps"`
	Seed           int64          `json:"seed"`
	Scoring        string         `json:"scoring"`
	BestResult     Candidate      `json:"best_result"`
	TopK           []Candidate    `json:"top_k"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
	Trace          []StepSummary  `json:"trace"`
	CreatedAt      string         `json:"created_at"`
}

// Request holds the inputs of a single engine invocation.
type Request struct {
	Scenario    Scenario
	Constraints Constraints
	BeamWidth   int
	MaxSteps    int
	Seed        int64
}

// timeNow is a package-level variable for testability.
var timeNow = time.Now

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
