package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnginesCmd(app *AppContext, root *rootFlags) *cobra.Command {
	var component, method string

	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List registered engines for a component/method",
		RunE: func(cmd *cobra.Command, args []string) error {
			if component == "" {
				for _, c := range app.Registry.ListComponents() {
					fmt.Println(c)
				}
				return nil
			}
			if method == "" {
				for _, m := range app.Registry.ListMethods(component) {
					fmt.Println(m)
				}
				return nil
			}
			for _, info := range app.Registry.Describe(component, method) {
				deprecated := ""
				if info.Deprecated {
					deprecated = " (deprecated)"
				}
				fmt.Printf("%s v%s priority=%d%s\n", info.Engine, info.Version, info.Priority, deprecated)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&component, "component", "", "Component to list methods/engines for")
	cmd.Flags().StringVar(&method, "method", "", "Method to list engines for (requires --component)")
	return cmd
}
