package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stratum/internal/project"
)

// NewProjectsCommand creates the projects command.
func NewProjectsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.Config()
			if err != nil {
				return err
			}

			manager := project.NewManager(cfg, nil, nil)
			defer func() { _ = manager.Close() }()

			projects, err := manager.List()
			if err != nil {
				return err
			}
			for _, id := range projects {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
