package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/flowkit/orchestrator/internal/cachestore"
	"github.com/flowkit/orchestrator/internal/config"
	"github.com/flowkit/orchestrator/internal/execengine"
	"github.com/flowkit/orchestrator/internal/telemetry"
)

func newRunCmd(app *AppContext, root *rootFlags) *cobra.Command {
	var configPath string
	var resume bool
	var force bool
	var only string
	var exclude string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a pipeline configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, log := app.CommandContext(cmd, "run")

			cfg, err := app.Config.Load(configPath)
			if err != nil {
				return err
			}
			build, err := app.Config.Build(cfg)
			if err != nil {
				return err
			}

			index, err := openCacheIndex(root.projectDir)
			if err != nil {
				return err
			}
			defer index.Close()

			snapshots, err := openSnapshotStore(root.projectDir)
			if err != nil {
				return err
			}

			if resume {
				names, err := snapshots.List()
				if err != nil {
					return err
				}
				for _, name := range names {
					if snap, err := snapshots.Read(name); err == nil {
						printSnapshot(snap)
					}
				}
				log.Info(ctx, "resuming, clearing stale signatures for previously failed steps", "steps", names)
				if err := index.Delete(names...); err != nil {
					return err
				}
			}

			opts := execengine.RunOptions{
				Only:    splitCommaList(only),
				Exclude: splitCommaList(exclude),
				Force:   force,
			}

			promReg := prometheus.NewRegistry()
			metrics, err := telemetry.New(promReg)
			if err != nil {
				return err
			}
			metrics.Subscribe(app.Hooks)

			eng := execengine.New(app.Registry, app.Hooks, log, index, snapshots)
			result, err := eng.Run(ctx, build, opts)

			metrics.ObserveMetrics(result.Metrics, widestLayer(build))
			counters, snapErr := telemetry.Snapshot(promReg)
			if snapErr != nil {
				log.Warn(ctx, "failed to snapshot run counters", "error", snapErr)
			}

			headerStyle := lipgloss.NewStyle().Bold(true)
			okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
			failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

			fmt.Println(headerStyle.Render(fmt.Sprintf("pipeline %q", cfg.Pipeline.Name)))
			for _, m := range result.Metrics {
				style := okStyle
				if m.Status != execengine.StatusSuccess {
					style = failStyle
				}
				fmt.Printf("  %s %s (%s)\n", style.Render(m.Status), m.Step, m.Duration)
			}

			if persistErr := cachestore.WriteRunMetrics(metricsPath(root.projectDir), cachestore.RunMetrics{
				Pipeline:  cfg.Pipeline.Name,
				Timestamp: time.Now(),
				Nodes:     result.Metrics,
				Counters:  counters,
			}); persistErr != nil {
				log.Warn(ctx, "failed to persist run metrics", "error", persistErr)
			}

			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to pipeline configuration file")
	cmd.MarkFlagRequired("config") //nolint:errcheck
	cmd.Flags().BoolVar(&resume, "resume", false, "Re-run only steps that failed on a previous attempt")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the cache and re-execute every selected step")
	cmd.Flags().StringVar(&only, "only", "", "Comma-separated step names to run, skipping all others")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Comma-separated step names to skip")

	return cmd
}

// widestLayer returns the largest layer size in build's execution plan, fed
// to telemetry.Metrics.ObserveMetrics as the orchestrator_layer_width gauge.
func widestLayer(build *config.BuildResult) int {
	widest := 0
	for _, layer := range build.Plan.Layers {
		if len(layer.Steps) > widest {
			widest = len(layer.Steps)
		}
	}
	return widest
}

// printSnapshot renders one failure snapshot left over from a previous run,
// printed by `run --resume` before its stale signatures are cleared.
func printSnapshot(snap cachestore.FailureSnapshot) {
	fmt.Printf("%s: %s (%s) at %s\n", snap.StepName, snap.ErrorMessage, snap.ErrorType, snap.Timestamp.Format("2006-01-02T15:04:05"))
}

// splitCommaList splits a comma-separated flag value into its elements,
// returning nil for an empty string so RunOptions.Only/Exclude stay nil
// (not an empty-but-non-nil slice) when the flag was never set.
func splitCommaList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
