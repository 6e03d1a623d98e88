// Package resources implements MCP resource handlers for stored simulations.
//
// Resources provide read-only data that the host can consume for context.
// Every run is addressable as simulations://<runId> through a resource
// template; stored runs are also published as concrete resources so they
// show up in resources/list.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beamsim/beamsim/internal/runstore"
	"github.com/beamsim/beamsim/internal/sim"
)

// Scheme is the URI prefix of simulation resources.
const Scheme = "simulations://"

const mimeJSON = "application/json"

// Reader is the read side of the simulation service.
type Reader interface {
	Get(ctx context.Context, runID string) (*sim.Run, error)
	List(ctx context.Context) ([]runstore.Summary, error)
}

// Handler manages simulation resource endpoints.
type Handler struct {
	reader Reader
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// URI returns the resource address of a run.
func URI(runID string) string {
	return Scheme + runID
}

// ParseURI extracts the run id from a simulations:// URI.
func ParseURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, Scheme) {
		return "", fmt.Errorf("%w: resource URI %q must start with %s", sim.ErrInvalidParams, uri, Scheme)
	}
	runID := strings.TrimPrefix(uri, Scheme)
	if runID == "" || strings.Contains(runID, "/") {
		return "", fmt.Errorf("%w: resource URI %q has no run id", sim.ErrInvalidParams, uri)
	}
	return runID, nil
}

// Template returns the resource template covering every run.
func (h *Handler) Template() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		Scheme+"{runId}",
		"Simulation run",
		mcp.WithTemplateDescription("Full stored record of a simulation: inputs, best result, top-K beam and per-step trace"),
		mcp.WithTemplateMIMEType(mimeJSON),
	)
}

// Resource returns the concrete resource definition for a run.
func (h *Handler) Resource(s runstore.Summary) mcp.Resource {
	return mcp.NewResource(
		URI(s.RunID),
		"Simulation "+s.RunID,
		mcp.WithResourceDescription(fmt.Sprintf(
			"Beam search run from %s (beam %d, %d steps, seed %d, best score %g)",
			s.CreatedAt, s.BeamWidth, s.MaxSteps, s.Seed, s.BestScore,
		)),
		mcp.WithMIMEType(mimeJSON),
	)
}

// Resources lists the concrete resources of all stored runs.
func (h *Handler) Resources(ctx context.Context) ([]mcp.Resource, error) {
	summaries, err := h.reader.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing simulations: %w", err)
	}
	out := make([]mcp.Resource, len(summaries))
	for i, s := range summaries {
		out[i] = h.Resource(s)
	}
	return out, nil
}

// HandleRun returns the stored run as JSON. Unknown ids are errors.
func (h *Handler) HandleRun(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runID, err := ParseURI(req.Params.URI)
	if err != nil {
		return nil, err
	}

	run, err := h.reader.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling run %s: %w", runID, err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: mimeJSON,
			Text:     string(data),
		},
	}, nil
}
