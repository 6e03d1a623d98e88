// Package explain renders a stored run into a human-readable narrative.
//
// Rendering only reads the run: per-step scores and penalties come from
// the snapshots recorded on the path, never from re-scoring, so the text
// is exact and identical on every call.
package explain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beamsim/beamsim/internal/sim"
)

// Render returns the markdown explanation of run.
func Render(run *sim.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Simulation Explanation (Run ID: %s)\n\n", run.RunID)

	b.WriteString("## Initial Scenario\n\n")
	fmt.Fprintf(&b, "- **Starting state:** %s\n", FormatState(run.Scenario.InitialState))
	fmt.Fprintf(&b, "- **Constraints:** %s\n", formatConstraints(run.Constraints))
	fmt.Fprintf(&b, "- **Custom actions:** %s\n", formatActions(run.Scenario.Actions))
	fmt.Fprintf(&b, "- **Step size:** %s\n", num(run.Scenario.Step))
	fmt.Fprintf(&b, "- **Parameters:** beamWidth=%d, maxSteps=%d, seed=%d, scoring=%s\n\n",
		run.BeamWidth, run.MaxSteps, run.Seed, run.Scoring)

	b.WriteString("## Search Process\n\n")
	if len(run.Trace) == 0 {
		b.WriteString("No expansion steps were run; the initial state is the result.\n\n")
	} else {
		fmt.Fprintf(&b, "The beam search ran %d steps, keeping the top %d candidates at each step.\n\n",
			len(run.Trace), run.BeamWidth)
		b.WriteString("| Step | Candidates | Kept | Best score | Worst kept |\n")
		b.WriteString("|------|------------|------|------------|------------|\n")
		for _, st := range run.Trace {
			fmt.Fprintf(&b, "| %d | %d | %d | %s | %s |\n",
				st.Step, st.PoolSize, st.BeamSize, num(st.BestScore), num(st.WorstScore))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Winning Path\n\n")
	for i, step := range run.BestResult.Path {
		if i == 0 {
			fmt.Fprintf(&b, "  0. %s → state %s, score %s (penalty %s)\n",
				step.Action, FormatState(step.Values), num(step.Score), num(step.Penalty))
			continue
		}
		fmt.Fprintf(&b, "  %d. applied %s → state becomes %s, score %s (penalty %s)\n",
			i, step.Action, FormatState(step.Values), num(step.Score), num(step.Penalty))
	}

	b.WriteString("\n## Final Score Breakdown\n\n")
	fmt.Fprintf(&b, "  - value_sum: %s\n", num(run.ScoreBreakdown.ValueSum))
	fmt.Fprintf(&b, "  - constraint_penalty: %s\n", num(run.ScoreBreakdown.ConstraintPenalty))
	fmt.Fprintf(&b, "\n**Total Score: %s**\n", num(run.BestResult.Score))

	b.WriteString("\n## Constraint Status\n\n")
	writeConstraintStatus(&b, run)

	if len(run.TopK) > 1 {
		b.WriteString("\n## Top Candidates\n\n")
		for i, c := range run.TopK {
			via := "initial state"
			if len(c.Path) > 1 {
				via = strings.Join(c.Labels()[1:], ", ")
			}
			fmt.Fprintf(&b, "  %d. score %s (penalty %s) %s via %s\n",
				i+1, num(c.Score), num(c.Penalty), FormatState(c.Values), via)
		}
	}

	return b.String()
}

func writeConstraintStatus(b *strings.Builder, run *sim.Run) {
	constraints, err := sim.ParseConstraints(run.Constraints, run.Scenario.InitialState)
	if err != nil || len(constraints) == 0 {
		b.WriteString("No constraints were applied.\n")
		return
	}

	violated := 0
	for _, c := range constraints {
		value := run.BestResult.Values[c.Attr]
		op := "≤"
		if c.Kind == sim.ConstraintMin {
			op = "≥"
		}
		status := "satisfied"
		if v := c.Violation(value); v > 0 {
			status = "violated by " + num(v)
			violated++
		}
		fmt.Fprintf(b, "  - %s: %s %s %s (actual %s) — %s\n", c.Key, c.Attr, op, num(c.Bound), num(value), status)
	}

	if violated == 0 {
		b.WriteString("\nThe winning state respects every constraint.\n")
	} else {
		fmt.Fprintf(b, "\nThe winning state violates %d of %d constraints; its values outweighed the penalty.\n",
			violated, len(constraints))
	}
}

// FormatState renders a state with attributes in key order, e.g. {x: 1, y: 2.5}.
func FormatState(s sim.State) string {
	parts := make([]string, 0, len(s))
	for _, k := range s.Keys() {
		parts = append(parts, k+": "+num(s[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatConstraints(c sim.Constraints) string {
	if len(c) == 0 {
		return "none"
	}
	return FormatState(sim.State(c))
}

func formatActions(actions []sim.Action) string {
	if len(actions) == 0 {
		return "none"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// num prints the shortest representation that round-trips exactly.
func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
