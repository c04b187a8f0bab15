package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatusCmd reports the registry's current shape: components, their
// methods, and how many candidate implementations each method has.
// Failure-snapshot bookkeeping lives under `run --resume`, which is the
// command that actually consumes it.
func newStatusCmd(app *AppContext, root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print registry and component counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			components := app.Registry.ListComponents()
			fmt.Printf("%d component(s) registered\n", len(components))

			methodTotal := 0
			for _, component := range components {
				methods := app.Registry.ListMethods(component)
				methodTotal += len(methods)
				fmt.Printf("  %s (%d method(s))\n", component, len(methods))
				for _, method := range methods {
					candidates := app.Registry.Describe(component, method)
					fmt.Printf("    %s: %d candidate(s)\n", method, len(candidates))
				}
			}
			fmt.Printf("%d method(s) total across all components\n", methodTotal)
			return nil
		},
	}
	return cmd
}
