// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on abstractions.
// No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/beamsim/beamsim/internal/config"
	"github.com/beamsim/beamsim/internal/metrics"
	"github.com/beamsim/beamsim/internal/prompts"
	"github.com/beamsim/beamsim/internal/resources"
	"github.com/beamsim/beamsim/internal/runstore"
	"github.com/beamsim/beamsim/internal/sim"
	"github.com/beamsim/beamsim/internal/simulation"
	"github.com/beamsim/beamsim/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// OpenService opens the configured run store and builds the simulation
// service on top of it. Metrics are registered on reg when it is non-nil.
//
// The returned cleanup function closes the store and must be called on
// shutdown (typically via defer). It is always non-nil.
func OpenService(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*simulation.Service, func(), error) {
	store, err := runstore.Open(runstore.Config{
		Backend: cfg.Store.Backend,
		Path:    cfg.Store.Path,
	}, logger)
	if err != nil {
		return nil, noop, fmt.Errorf("opening run store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("run store close failed", "error", err)
		}
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	svc := simulation.New(store, simulation.Options{
		Defaults: cfg.Defaults,
		Limits:   cfg.Limits,
		Metrics:  m,
		Logger:   logger,
	})
	logger.Info("run store ready", "backend", store.Backend(), "path", cfg.Store.Path)
	return svc, cleanup, nil
}

// New creates the MCP server with all tools, prompts and resources
// registered against svc.
func New(ctx context.Context, svc *simulation.Service, logger *slog.Logger) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		"beamsim",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	runTool := tools.NewSimulateRunTool(svc)
	s.AddTool(runTool.Definition(), runTool.Handle)

	explainTool := tools.NewSimulateExplainTool(svc)
	s.AddTool(explainTool.Definition(), explainTool.Handle)

	listTool := tools.NewSimulateListTool(svc)
	s.AddTool(listTool.Definition(), listTool.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	explainPrompt := prompts.NewExplainPrompt()
	s.AddPrompt(explainPrompt.Definition(), explainPrompt.Handle)

	// --- Register resources ---
	//
	// The template resolves any run id. Stored runs are also published as
	// concrete resources, and every new run is added as it is stored.

	resourceHandler := resources.NewHandler(svc)
	s.AddResourceTemplate(resourceHandler.Template(), resourceHandler.HandleRun)

	existing, err := resourceHandler.Resources(ctx)
	if err != nil {
		return nil, fmt.Errorf("publishing stored simulations: %w", err)
	}
	for _, r := range existing {
		s.AddResource(r, resourceHandler.HandleRun)
	}
	logger.Debug("published stored simulations", "count", len(existing))

	svc.OnRunStored(func(run *sim.Run) {
		s.AddResource(resourceHandler.Resource(runstore.Summarize(run)), resourceHandler.HandleRun)
	})

	return s, nil
}

// noop is the cleanup returned when nothing was opened.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use the simulation tools.
func serverInstructions() string {
	return `You have access to beamsim, a deterministic beam-search simulation server.

## Tools
- simulate_run: search a numeric scenario. Inputs: scenario {initial_state, step?, actions?},
  constraints {max_<attr>|min_<attr>: bound}, beamWidth (default 5), maxSteps (default 10),
  seed (default 0), scoring (sum_minus_penalty or weighted_penalty).
  Returns runId, bestResult {values, score, penalty, path}, topK and scoreBreakdown.
- simulate_explain(runId): step-by-step markdown explanation of a stored run.
- simulate_list: stored runs, oldest first.

## Resources
- simulations://<runId>: the full stored run as JSON, including the per-step trace.

## Rules
- Identical inputs always produce the same runId and result; re-running is free.
- Constraint keys must name an attribute present in initial_state.
- Score = sum of attribute values minus the total constraint violation.
  A candidate can only be penalized, never rewarded, by constraints.
- When explaining a result to the user, call simulate_explain rather than re-deriving the path.`
}
