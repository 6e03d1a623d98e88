// Package simulation is the application layer between the MCP surface and
// the engine: it applies configured defaults and limits, runs the search,
// persists the result and notifies listeners about newly stored runs.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/beamsim/beamsim/internal/config"
	"github.com/beamsim/beamsim/internal/explain"
	"github.com/beamsim/beamsim/internal/metrics"
	"github.com/beamsim/beamsim/internal/runstore"
	"github.com/beamsim/beamsim/internal/sim"
)

const tracerName = "github.com/beamsim/beamsim/internal/simulation"

// Params is a fully resolved simulation request. Callers fill omitted
// fields from Defaults before calling Run.
type Params struct {
	Scenario    sim.Scenario
	Constraints sim.Constraints
	BeamWidth   int
	MaxSteps    int
	Seed        int64
	Scoring     string
}

// Options configures a Service.
type Options struct {
	Defaults config.Defaults
	Limits   config.Limits
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Tracer   trace.Tracer
}

// Service runs simulations and serves stored results.
type Service struct {
	store    runstore.Store
	defaults config.Defaults
	limits   config.Limits
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer

	mu    sync.RWMutex
	hooks []func(*sim.Run)
}

// New creates a Service backed by store.
func New(store runstore.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Defaults.BeamWidth == 0 {
		opts.Defaults = config.Default().Defaults
	}

	return &Service{
		store:    store,
		defaults: opts.Defaults,
		limits:   opts.Limits,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
	}
}

// Defaults returns the parameter values used when a request omits them.
func (s *Service) Defaults() config.Defaults {
	return s.defaults
}

// Backend names the store backend in use.
func (s *Service) Backend() string {
	return s.store.Backend()
}

// OnRunStored registers fn to be called after a new run is persisted.
// Replays of an existing run do not fire the hook.
func (s *Service) OnRunStored(fn func(*sim.Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Run executes and persists a simulation. Identical inputs produce the
// same run id; when that id is already stored the stored run is returned.
func (s *Service) Run(ctx context.Context, p Params) (*sim.Run, error) {
	ctx, span := s.tracer.Start(ctx, "simulation.Run", trace.WithAttributes(
		attribute.Int("beamsim.beam_width", p.BeamWidth),
		attribute.Int("beamsim.max_steps", p.MaxSteps),
		attribute.Int64("beamsim.seed", p.Seed),
		attribute.String("beamsim.scoring", p.Scoring),
	))
	defer span.End()

	run, outcome, err := s.run(ctx, p)
	if err != nil {
		s.metrics.RunRejected(outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("beamsim.run_id", run.RunID))
	return run, nil
}

func (s *Service) run(ctx context.Context, p Params) (*sim.Run, string, error) {
	if err := s.checkLimits(p); err != nil {
		return nil, metrics.OutcomeInvalid, err
	}
	scoring := p.Scoring
	if scoring == "" {
		scoring = s.defaults.Scoring
	}
	scorer, err := sim.LookupScorer(scoring)
	if err != nil {
		return nil, metrics.OutcomeInvalid, err
	}
	engine := sim.NewEngine(
		sim.WithScorer(scorer),
		sim.WithPhaseObserver(s.phaseObserver(ctx)),
	)

	start := time.Now()
	run, err := engine.Run(sim.Request{
		Scenario:    p.Scenario,
		Constraints: p.Constraints,
		BeamWidth:   p.BeamWidth,
		MaxSteps:    p.MaxSteps,
		Seed:        p.Seed,
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, classify(err), err
	}

	err = s.store.Append(ctx, run)
	switch {
	case err == nil:
		s.metrics.StoreAppend(s.store.Backend(), "ok")
		s.metrics.ObserveRun(metrics.OutcomeOK, elapsed, run.BeamWidth, evaluated(run))
		s.logger.Info("simulation stored",
			"run_id", run.RunID,
			"best_score", run.BestResult.Score,
			"steps", run.MaxSteps,
			"beam_width", run.BeamWidth,
			"elapsed", elapsed,
		)
		s.notify(run)
		return run, metrics.OutcomeOK, nil

	case errors.Is(err, runstore.ErrRunExists):
		s.metrics.StoreAppend(s.store.Backend(), "duplicate")
		stored, getErr := s.store.Get(ctx, run.RunID)
		if getErr != nil {
			return nil, metrics.OutcomeError, internal(getErr)
		}
		s.metrics.ObserveRun(metrics.OutcomeReplayed, elapsed, stored.BeamWidth, evaluated(stored))
		s.logger.Debug("simulation already stored", "run_id", run.RunID)
		return stored, metrics.OutcomeReplayed, nil

	default:
		s.metrics.StoreAppend(s.store.Backend(), "error")
		s.logger.Error("failed to store simulation", "run_id", run.RunID, "error", err)
		return nil, metrics.OutcomeError, internal(err)
	}
}

// Get returns a stored run.
func (s *Service) Get(ctx context.Context, runID string) (*sim.Run, error) {
	ctx, span := s.tracer.Start(ctx, "simulation.Get", trace.WithAttributes(
		attribute.String("beamsim.run_id", runID),
	))
	defer span.End()

	run, err := s.store.Get(ctx, runID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return run, nil
}

// Explain renders the stored run as markdown.
func (s *Service) Explain(ctx context.Context, runID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "simulation.Explain", trace.WithAttributes(
		attribute.String("beamsim.run_id", runID),
	))
	defer span.End()

	run, err := s.store.Get(ctx, runID)
	if err != nil {
		s.metrics.Explanation(classify(err))
		span.RecordError(err)
		return "", err
	}
	s.metrics.Explanation("ok")
	return explain.Render(run), nil
}

// List returns summaries of all stored runs in insertion order.
func (s *Service) List(ctx context.Context) ([]runstore.Summary, error) {
	return s.store.List(ctx)
}

// phaseObserver records engine phase changes as events on the span in ctx.
func (s *Service) phaseObserver(ctx context.Context) func(sim.Phase, int) {
	span := trace.SpanFromContext(ctx)
	return func(p sim.Phase, step int) {
		span.AddEvent("beamsim.phase", trace.WithAttributes(
			attribute.String("beamsim.phase", string(p)),
			attribute.Int("beamsim.step", step),
		))
		if p != sim.PhaseExpanding {
			s.logger.Debug("engine phase", "phase", p, "step", step)
		}
	}
}

func (s *Service) checkLimits(p Params) error {
	if s.limits.MaxBeamWidth > 0 && p.BeamWidth > s.limits.MaxBeamWidth {
		return fmt.Errorf("%w: beamWidth %d exceeds the configured maximum of %d",
			sim.ErrInvalidParams, p.BeamWidth, s.limits.MaxBeamWidth)
	}
	if s.limits.MaxSteps > 0 && p.MaxSteps > s.limits.MaxSteps {
		return fmt.Errorf("%w: maxSteps %d exceeds the configured maximum of %d",
			sim.ErrInvalidParams, p.MaxSteps, s.limits.MaxSteps)
	}
	return nil
}

func (s *Service) notify(run *sim.Run) {
	s.mu.RLock()
	hooks := make([]func(*sim.Run), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()

	for _, fn := range hooks {
		fn(run)
	}
}

// evaluated counts the children scored across all steps.
func evaluated(run *sim.Run) int {
	n := 0
	for _, st := range run.Trace {
		n += st.PoolSize
	}
	return n
}

func classify(err error) string {
	switch {
	case errors.Is(err, sim.ErrInvalidParams):
		return metrics.OutcomeInvalid
	case errors.Is(err, sim.ErrNotFound):
		return "not_found"
	default:
		return metrics.OutcomeError
	}
}

func internal(err error) error {
	if errors.Is(err, sim.ErrInternal) {
		return err
	}
	return fmt.Errorf("%w: %v", sim.ErrInternal, err)
}
