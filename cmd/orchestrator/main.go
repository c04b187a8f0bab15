package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/flowkit/orchestrator/internal/config"
	"github.com/flowkit/orchestrator/internal/hooks"
	"github.com/flowkit/orchestrator/internal/logging"
	"github.com/flowkit/orchestrator/internal/ports"
	"github.com/flowkit/orchestrator/internal/registry"
	"github.com/flowkit/orchestrator/pkg/orcherrors"
)

func main() {
	flags := &rootFlags{}

	level := "info"
	for _, a := range os.Args {
		if a == "-v" || a == "--verbose" {
			level = "debug"
		}
	}

	appLogger, err := logging.New(logging.Options{Level: level, Component: "cli"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application logger: %v\n", err)
		os.Exit(1)
	}

	correlationID := ports.GenerateCorrelationID()
	ctx := ports.WithCorrelationID(context.Background(), correlationID)

	reg := registry.New(registry.ConflictOverwriteNewer)
	bus := hooks.New(appLogger.With("component", "hooks"))
	reg.SetNotifier(bus)

	app := &AppContext{
		Logger:   appLogger,
		Registry: reg,
		Hooks:    bus,
		Config:   config.NewService(),
	}

	rootCmd := newRootCmd(app, flags)
	appLogger.Info(ctx, "starting orchestrator command", "pid", os.Getpid())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command's returned error onto the documented exit
// codes: 2 for any pre-execution configuration failure (a malformed
// document, a cycle, an unknown reference, a duplicate registration), 1
// for any other failure.
func exitCodeFor(err error) int {
	var configErr *orcherrors.ConfigError
	var cycleErr *orcherrors.CyclicDependencyError
	var refErr *orcherrors.UnknownReferenceError
	var dupErr *orcherrors.DuplicateRegistrationError
	switch {
	case errors.As(err, &configErr),
		errors.As(err, &cycleErr),
		errors.As(err, &refErr),
		errors.As(err, &dupErr):
		return 2
	}
	return 1
}
