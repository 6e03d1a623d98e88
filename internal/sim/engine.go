package sim

import (
	"fmt"
	"sort"
	"time"
)

// Phase is the engine's position in its run lifecycle.
type Phase string

const (
	PhaseInitialized Phase = "initialized"
	PhaseExpanding   Phase = "expanding"
	PhaseTerminated  Phase = "terminated"
)

// Engine orchestrates stepwise expansion, scoring and frontier retention.
// An Engine holds no per-run state and is safe to share across goroutines;
// each call to Run works on its own beam and generator.
type Engine struct {
	scorer     Scorer
	tieBreaker TieBreakerFactory
	observer   func(Phase, int)
}

// Option configures an Engine.
type Option func(*Engine)

// WithScorer replaces the default scoring strategy.
func WithScorer(sc Scorer) Option {
	return func(e *Engine) { e.scorer = sc }
}

// WithTieBreaker replaces the seeded PCG generator.
func WithTieBreaker(f TieBreakerFactory) Option {
	return func(e *Engine) { e.tieBreaker = f }
}

// WithPhaseObserver registers a callback invoked on every phase change
// with the current step index.
func WithPhaseObserver(fn func(Phase, int)) Option {
	return func(e *Engine) { e.observer = fn }
}

// NewEngine creates an Engine using the default scorer and tie-breaker
// unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		scorer:     DefaultScorer,
		tieBreaker: NewSeededTieBreaker,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks a request without running it.
func (e *Engine) Validate(req Request) ([]Constraint, error) {
	if req.BeamWidth < 1 {
		return nil, fmt.Errorf("%w: beamWidth must be >= 1, got %d", ErrInvalidParams, req.BeamWidth)
	}
	if req.MaxSteps < 0 {
		return nil, fmt.Errorf("%w: maxSteps must be >= 0, got %d", ErrInvalidParams, req.MaxSteps)
	}
	if err := ValidateScenario(req.Scenario); err != nil {
		return nil, err
	}
	return ParseConstraints(req.Constraints, req.Scenario.InitialState)
}

// pooled is a scored child waiting for selection.
type pooled struct {
	cand Candidate
	key  uint64
}

// Run executes the beam search to completion. Validation happens before
// any expansion; a non-finite score during expansion aborts the run.
func (e *Engine) Run(req Request) (*Run, error) {
	constraints, err := e.Validate(req)
	if err != nil {
		return nil, err
	}
	if req.Scenario.Step == 0 {
		req.Scenario.Step = DefaultStep
	}
	if req.Constraints == nil {
		req.Constraints = Constraints{}
	}
	runID, err := RunID(req, e.scorer.Name)
	if err != nil {
		return nil, err
	}

	actions := ActionSpace(req.Scenario)
	rng := e.tieBreaker(req.Seed)

	// INITIALIZED
	e.notify(PhaseInitialized, 0)
	// The initial candidate is scored without constraints: penalty 0.
	initial, err := e.candidate(req.Scenario.InitialState.Clone(), nil, InitialAction, nil)
	if err != nil {
		return nil, err
	}
	beam := []Candidate{initial}
	trace := make([]StepSummary, 0, req.MaxSteps)

	// EXPANDING
	for step := 0; step < req.MaxSteps; step++ {
		e.notify(PhaseExpanding, step)

		pool := make([]pooled, 0, len(beam)*len(actions))
		for _, parent := range beam {
			for _, child := range Expand(actions, parent.Values) {
				c, err := e.candidate(child.State, constraints, child.Action.Label(), parent.Path)
				if err != nil {
					return nil, fmt.Errorf("step %d: %w", step, err)
				}
				pool = append(pool, pooled{cand: c, key: rng.Next()})
			}
		}

		sort.SliceStable(pool, func(i, j int) bool {
			if pool[i].cand.Score != pool[j].cand.Score {
				return pool[i].cand.Score > pool[j].cand.Score
			}
			return pool[i].key < pool[j].key
		})

		keep := min(req.BeamWidth, len(pool))
		beam = make([]Candidate, keep)
		for i := range keep {
			beam[i] = pool[i].cand
		}

		trace = append(trace, StepSummary{
			Step:       step + 1,
			PoolSize:   len(pool),
			BeamSize:   len(beam),
			BestScore:  beam[0].Score,
			WorstScore: beam[len(beam)-1].Score,
		})
	}

	// TERMINATED
	e.notify(PhaseTerminated, req.MaxSteps)
	best := beam[0]
	return &Run{
		RunID:       runID,
		Scenario:    req.Scenario,
		Constraints: req.Constraints,
		BeamWidth:   req.BeamWidth,
		MaxSteps:    req.MaxSteps,
		Seed:        req.Seed,
		Scoring:     e.scorer.Name,
		BestResult:  best,
		TopK:        beam,
		ScoreBreakdown: ScoreBreakdown{
			ValueSum:          best.Values.Sum(),
			ConstraintPenalty: best.Penalty,
		},
		Trace:     trace,
		CreatedAt: timeNow().UTC().Format(time.RFC3339),
	}, nil
}

// candidate scores a state and extends parentPath with its snapshot.
func (e *Engine) candidate(s State, constraints []Constraint, label string, parentPath []PathStep) (Candidate, error) {
	for _, k := range s.Keys() {
		if !isFinite(s[k]) {
			return Candidate{}, fmt.Errorf("%w: attribute %q became non-finite after %s", ErrInvalidParams, k, label)
		}
	}
	penalty := Penalty(s, constraints)
	score := e.scorer.Fn(s, penalty)
	if !isFinite(score) || !isFinite(penalty) {
		return Candidate{}, fmt.Errorf("%w: non-finite score after %s", ErrInvalidParams, label)
	}

	path := make([]PathStep, len(parentPath), len(parentPath)+1)
	copy(path, parentPath)
	path = append(path, PathStep{Action: label, Values: s, Score: score, Penalty: penalty})

	return Candidate{Values: s, Score: score, Penalty: penalty, Path: path}, nil
}

func (e *Engine) notify(p Phase, step int) {
	if e.observer != nil {
		e.observer(p, step)
	}
}
