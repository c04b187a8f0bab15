package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowkit/orchestrator/internal/cachestore"
)

// newMetricsCmd prints the NodeMetrics persisted by the most recent `run`
// invocation against this project directory. A fresh Prometheus registry
// never observes anything on its own; metrics only exist once a run has
// happened and written them to disk, so this command reads that file
// back rather than gathering an always-empty in-process registry.
func newMetricsCmd(app *AppContext, root *rootFlags) *cobra.Command {
	var configPath string
	var format string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the last run's metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(configPath)
			if err != nil {
				return err
			}

			run, err := cachestore.ReadRunMetrics(metricsPath(root.projectDir))
			if err != nil {
				return fmt.Errorf("no run metrics found, run the pipeline first: %w", err)
			}
			if run.Pipeline != cfg.Pipeline.Name {
				return fmt.Errorf("last recorded run metrics belong to pipeline %q, not %q", run.Pipeline, cfg.Pipeline.Name)
			}

			switch format {
			case "json":
				return printMetricsJSON(run)
			case "markdown", "md":
				printMetricsMarkdown(run)
				return nil
			default:
				return fmt.Errorf("unknown format %q, expected json or markdown", format)
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to pipeline configuration file")
	cmd.MarkFlagRequired("config") //nolint:errcheck
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json|markdown")

	return cmd
}

func printMetricsJSON(run cachestore.RunMetrics) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printMetricsMarkdown(run cachestore.RunMetrics) {
	fmt.Printf("# %s (last run: %s)\n\n", run.Pipeline, run.Timestamp.Format("2006-01-02T15:04:05"))
	fmt.Println("| step | status | cached | duration |")
	fmt.Println("|---|---|---|---|")
	for _, m := range run.Nodes {
		fmt.Printf("| %s | %s | %t | %s |\n", m.Step, m.Status, m.Cached, m.Duration)
	}

	if len(run.Counters) == 0 {
		return
	}
	fmt.Println("\n| counter | value |")
	fmt.Println("|---|---|")
	for name, value := range run.Counters {
		fmt.Printf("| %s | %v |\n", name, value)
	}
}
