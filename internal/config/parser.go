package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flowkit/orchestrator/pkg/orcherrors"
)

// Parse reads and decodes a pipeline configuration file, applies
// orchestration defaults, and structurally validates it, wrapping every
// failure with the config path it occurred at.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, orcherrors.NewConfigError(path, fmt.Errorf("read config: %w", err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, orcherrors.NewConfigError(path, fmt.Errorf("parse yaml: %w", err))
	}

	cfg.Pipeline.Orchestration.ApplyDefaults()

	if err := validatorInstance().Struct(cfg.Pipeline); err != nil {
		return nil, orcherrors.NewConfigError("pipeline", err)
	}

	if err := validateStepNamesUnique(cfg.Pipeline.Steps); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateStepNamesUnique(steps []StepSpec) error {
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if seen[s.Name] {
			return orcherrors.NewConfigError("pipeline.steps", fmt.Errorf("duplicate step name %q", s.Name))
		}
		seen[s.Name] = true
	}
	return nil
}
