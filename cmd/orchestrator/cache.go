package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowkit/orchestrator/internal/execengine"
)

func newCacheCmd(app *AppContext, root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect, warm, or clear the on-disk signature cache",
	}
	cmd.AddCommand(newCachePlanCmd(app, root))
	cmd.AddCommand(newCacheWarmCmd(app, root))
	cmd.AddCommand(newCacheClearCmd(root))
	return cmd
}

// newCachePlanCmd predicts, per step, whether a `run` right now would hit
// or miss the cache: it computes each node's signature the way a cold run
// would (execengine.PredictSignatures) without executing any method, and
// compares it against what's actually stored.
func newCachePlanCmd(app *AppContext, root *rootFlags) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Predict cache hits/misses for a pipeline's next run",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			predicted, err := execengine.PredictSignatures(build, app.Registry)
			if err != nil {
				return err
			}

			for _, name := range build.Order {
				stored, ok, err := index.Get(name)
				if err != nil {
					return err
				}
				status := "miss"
				if ok && stored == predicted[name] {
					status = "hit"
				}
				fmt.Printf("%s %s (%s)\n", name, status, predicted[name])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to pipeline configuration file")
	cmd.MarkFlagRequired("config") //nolint:errcheck
	return cmd
}

// newCacheWarmCmd runs the pipeline once so its cache is fully populated,
// without printing the per-step pipeline report `run` prints.
func newCacheWarmCmd(app *AppContext, root *rootFlags) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Execute a pipeline once to populate its signature cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, log := app.CommandContext(cmd, "cache-warm")

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

			eng := execengine.New(app.Registry, app.Hooks, log, index, snapshots)
			result, err := eng.Run(ctx, build, execengine.RunOptions{})

			hits, misses := 0, 0
			for _, m := range result.Metrics {
				if m.Cached {
					hits++
				} else {
					misses++
				}
			}
			fmt.Printf("warmed %q: %d already cached, %d newly executed\n", cfg.Pipeline.Name, hits, misses)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to pipeline configuration file")
	cmd.MarkFlagRequired("config") //nolint:errcheck
	return cmd
}

func newCacheClearCmd(root *rootFlags) *cobra.Command {
	var stepsFlag string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached signatures, all steps by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := openCacheIndex(root.projectDir)
			if err != nil {
				return err
			}
			defer index.Close()

			var steps []string
			if stepsFlag != "" {
				steps = strings.Split(stepsFlag, ",")
			}
			return index.Delete(steps...)
		},
	}

	cmd.Flags().StringVar(&stepsFlag, "steps", "", "Comma-separated step names to clear (default: all)")
	return cmd
}
