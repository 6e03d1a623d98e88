// beamsim: deterministic beam-search simulation server.
//
// Expands a numeric scenario step by step, keeps the best candidates under
// a set of attribute constraints, and stores every run so it can be
// explained later. Exposed to AI tools over MCP (stdio) and as a CLI.
//
// Usage:
//
//	beamsim serve                         # Start MCP server (stdio transport)
//	beamsim run --scenario scenario.yaml  # Run a simulation from a file
//	beamsim explain <runId>               # Explain a stored run
//	beamsim list                          # List stored runs
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/beamsim/beamsim/internal/config"
	"github.com/beamsim/beamsim/internal/logging"
	bsserver "github.com/beamsim/beamsim/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "beamsim",
		Short:         "Deterministic beam-search simulation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			a.cfg = cfg
			// stdout belongs to the MCP transport and command output.
			a.logger = logging.NewWithWriter(logging.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
			}, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $BEAMSIM_CONFIG or ~/.beamsim/config.yaml)")

	root.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newExplainCmd(a),
		newListCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "beamsim v%s\n", bsserver.Version)
			},
		},
	)
	return root
}
