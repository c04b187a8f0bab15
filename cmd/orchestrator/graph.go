package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newGraphCmd(app *AppContext, root *rootFlags) *cobra.Command {
	var configPath string
	var format string
	var outPath string
	var summary bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render a pipeline's dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(configPath)
			if err != nil {
				return err
			}
			build, err := app.Config.Build(cfg)
			if err != nil {
				return err
			}

			var rendered string
			switch format {
			case "mermaid":
				rendered = build.Graph.RenderMermaid()
			case "dot", "graphviz":
				rendered = build.Graph.RenderGraphviz()
			case "plan":
				rendered = build.Plan.RenderText()
			default:
				rendered = build.Graph.RenderText()
			}

			if summary {
				rendered += fmt.Sprintf("\n%d node(s), %d edge(s), %d layer(s), critical_path=%d, max_parallelism=%d\n",
					len(build.Graph.Nodes()), len(build.Graph.Edges()), len(build.Plan.Layers),
					build.Plan.CriticalPath, build.Plan.MaxParallelism)
			}

			if outPath != "" {
				return os.WriteFile(outPath, []byte(rendered), 0o644)
			}
			fmt.Println(rendered)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to pipeline configuration file")
	cmd.MarkFlagRequired("config") //nolint:errcheck
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|mermaid|dot|plan")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the rendering to a file instead of stdout")
	cmd.Flags().BoolVar(&summary, "summary", false, "Append node/edge/layer counts to the rendering")

	return cmd
}
