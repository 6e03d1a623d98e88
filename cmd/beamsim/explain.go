package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	bsserver "github.com/beamsim/beamsim/internal/server"
)

func newExplainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <runId>",
		Short: "Explain a stored simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := bsserver.OpenService(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := svc.Explain(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored simulations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := bsserver.OpenService(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tCREATED\tBEAM\tSTEPS\tSEED\tSCORING\tBEST")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%g\n",
					r.RunID, r.CreatedAt, r.BeamWidth, r.MaxSteps, r.Seed, r.Scoring, r.BestScore)
			}
			return w.Flush()
		},
	}
}
