package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stratum/internal/compiler"
	"github.com/roach88/stratum/internal/config"
	"github.com/roach88/stratum/internal/project"
)

// BootstrapOptions holds flags for the bootstrap command.
type BootstrapOptions struct {
	*RootOptions
	Template string
}

// NewBootstrapCommand creates the bootstrap command.
func NewBootstrapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BootstrapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bootstrap <project>",
		Short: "Create a project from a CUE template",
		Long: `Create a new project database and register the unit types and
features declared in a CUE template.

Example:
  stratum bootstrap fieldnotes --template templates/gloss.cue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Template, "template", "", "CUE template file (required)")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func runBootstrap(opts *BootstrapOptions, projectID string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	// Compile before creating anything so a bad template leaves no
	// empty database behind.
	tmpl, err := compiler.LoadTemplate(opts.Template)
	if err != nil {
		return fmt.Errorf("compile template: %w", err)
	}

	log, err := config.NewLogger(cfg.LogJSON, opts.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	manager := project.NewManager(cfg, nil, log)
	defer func() { _ = manager.Close() }()

	eng, err := manager.Create(cmd.Context(), projectID)
	if err != nil {
		return err
	}
	if err := compiler.Apply(cmd.Context(), eng, tmpl); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created project %s with %d unit types\n", projectID, len(tmpl.Types))
	return nil
}
