// Package cli wires the stratum commands: serve, bootstrap, projects.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/stratum/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	DataDir string
	viper   *viper.Viper
}

// Config resolves the effective configuration: defaults, optional
// stratum.yaml, STRATUM_* env vars, then explicit flags on top.
func (o *RootOptions) Config() (*config.Config, error) {
	cfg, err := config.LoadWith(o.viper)
	if err != nil {
		return nil, err
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	return cfg, nil
}

// NewRootCommand creates the root command for the stratum CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: config.New()}

	cmd := &cobra.Command{
		Use:   "stratum",
		Short: "Stratum - versioned annotation store",
		Long: `Stratum stores layered linguistic annotation: typed units with
tiered feature values, full edit history, suggestion reconciliation,
and primary/secondary relations, one SQLite database per project.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.Config(); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "project data directory (overrides config)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewBootstrapCommand(opts))
	cmd.AddCommand(NewProjectsCommand(opts))

	return cmd
}
