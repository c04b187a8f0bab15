package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose    bool
	projectDir string
}

func newRootCmd(app *AppContext, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "orchestrator",
		Short:         "Runs configuration-driven method pipelines over a pluggable engine registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug-level logging")
	cmd.PersistentFlags().StringVarP(&flags.projectDir, "project-dir", "p", ".", "Project directory holding .pipeline/ state")

	cmd.AddCommand(newRunCmd(app, flags))
	cmd.AddCommand(newGraphCmd(app, flags))
	cmd.AddCommand(newStatusCmd(app, flags))
	cmd.AddCommand(newEnginesCmd(app, flags))
	cmd.AddCommand(newMetricsCmd(app, flags))
	cmd.AddCommand(newCacheCmd(app, flags))

	return cmd
}
