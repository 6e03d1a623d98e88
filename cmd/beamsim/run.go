package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/beamsim/beamsim/internal/explain"
	bsserver "github.com/beamsim/beamsim/internal/server"
	"github.com/beamsim/beamsim/internal/sim"
	"github.com/beamsim/beamsim/internal/simulation"
)

type runFlags struct {
	scenario    string
	constraints []string
	beamWidth   int
	maxSteps    int
	seed        int64
	scoring     string
	explain     bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a scenario file and store it",
		Long: `Run a simulation from a YAML or JSON scenario file.

The file holds the scenario itself, optionally with a constraints block:

  initial_state: {x: 0, y: 0}
  step: 1
  constraints: {max_x: 3}

--constraint flags are merged over the file's constraints.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.params(a, cmd)
			if err != nil {
				return err
			}
			svc, cleanup, err := bsserver.OpenService(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := svc.Run(cmd.Context(), p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.explain {
				_, err = fmt.Fprint(out, explain.Render(run))
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		},
	}
	cmd.Flags().StringVar(&f.scenario, "scenario", "", "scenario file (YAML or JSON)")
	cmd.Flags().StringArrayVar(&f.constraints, "constraint", nil, "constraint as max_<attr>=<bound> or min_<attr>=<bound> (repeatable)")
	cmd.Flags().IntVar(&f.beamWidth, "beam-width", 0, "candidates kept per step (default from config)")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", -1, "expansion steps (default from config)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "tie-break seed")
	cmd.Flags().StringVar(&f.scoring, "scoring", "", "scoring function: "+strings.Join(sim.ScorerNames(), ", "))
	cmd.Flags().BoolVar(&f.explain, "explain", false, "print the explanation instead of the run JSON")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func (f *runFlags) params(a *app, cmd *cobra.Command) (simulation.Params, error) {
	data, err := os.ReadFile(f.scenario)
	if err != nil {
		return simulation.Params{}, fmt.Errorf("reading scenario: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return simulation.Params{}, fmt.Errorf("parsing scenario %s: %w", f.scenario, err)
	}

	scenario, err := sim.DecodeScenario(raw)
	if err != nil {
		return simulation.Params{}, err
	}
	constraints, err := sim.DecodeConstraints(raw["constraints"])
	if err != nil {
		return simulation.Params{}, err
	}
	for _, kv := range f.constraints {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return simulation.Params{}, fmt.Errorf("%w: constraint %q must be key=value", sim.ErrInvalidParams, kv)
		}
		bound, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return simulation.Params{}, fmt.Errorf("%w: constraint %q has a non-numeric bound", sim.ErrInvalidParams, kv)
		}
		constraints[strings.TrimSpace(key)] = bound
	}

	d := a.cfg.Defaults
	p := simulation.Params{
		Scenario:    scenario,
		Constraints: constraints,
		BeamWidth:   d.BeamWidth,
		MaxSteps:    d.MaxSteps,
		Seed:        f.seed,
		Scoring:     f.scoring,
	}
	if cmd.Flags().Changed("beam-width") {
		p.BeamWidth = f.beamWidth
	}
	if cmd.Flags().Changed("max-steps") {
		p.MaxSteps = f.maxSteps
	}
	return p, nil
}
