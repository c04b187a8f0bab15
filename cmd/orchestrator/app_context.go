package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flowkit/orchestrator/internal/cachestore"
	"github.com/flowkit/orchestrator/internal/config"
	"github.com/flowkit/orchestrator/internal/hooks"
	"github.com/flowkit/orchestrator/internal/ports"
	"github.com/flowkit/orchestrator/internal/registry"
)

// AppContext bundles the long-lived services created at startup, so each
// subcommand pulls what it needs from one place.
type AppContext struct {
	Logger   ports.Logger
	Registry *registry.Registry
	Hooks    *hooks.Bus
	Config   *config.Service
}

// CommandContext returns the command's context (falling back to
// Background) together with a component-scoped logger.
func (a *AppContext) CommandContext(cmd *cobra.Command, component string) (context.Context, ports.Logger) {
	ctx := context.Background()
	if cmd != nil && cmd.Context() != nil {
		ctx = cmd.Context()
	}
	return ctx, a.LoggerFor(component)
}

// LoggerFor derives a child logger scoped to component.
func (a *AppContext) LoggerFor(component string) ports.Logger {
	if a == nil || a.Logger == nil {
		return nil
	}
	return a.Logger.With("component", component)
}

// cachePaths returns the standard on-disk state paths under projectDir:
// .pipeline/failures and .pipeline/cache/signatures.db.
func cachePaths(projectDir string) (failuresDir, cacheIndexPath string) {
	return filepath.Join(projectDir, ".pipeline", "failures"), filepath.Join(projectDir, ".pipeline", "cache", "signatures.db")
}

// metricsPath returns the path `run` persists its NodeMetrics to, and
// `metrics` reads back from.
func metricsPath(projectDir string) string {
	return filepath.Join(projectDir, ".pipeline", "metrics.json")
}

// openCacheIndex opens the on-disk signature index for a project
// directory, creating its parent directories as needed.
func openCacheIndex(projectDir string) (*cachestore.SignatureIndex, error) {
	_, cacheIndexPath := cachePaths(projectDir)
	if err := os.MkdirAll(filepath.Dir(cacheIndexPath), 0o755); err != nil {
		return nil, err
	}
	return cachestore.OpenSignatureIndex(cacheIndexPath)
}

// openSnapshotStore opens the failure-snapshot directory for a project.
func openSnapshotStore(projectDir string) (*cachestore.SnapshotStore, error) {
	failuresDir, _ := cachePaths(projectDir)
	return cachestore.NewSnapshotStore(failuresDir)
}
