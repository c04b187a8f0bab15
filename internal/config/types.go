// Package config parses a pipeline configuration document into StepSpecs,
// scans parameter references, and hands the result to internal/graph and
// internal/handle to build NodeConfigs. Heterogeneous YAML fields (the
// string-or-list `method`, the bare-string-or-tagged-object reference
// values) are normalized into one canonical Go shape at decode time so
// the rest of the pipeline only ever deals with a single form.
package config

import "gopkg.in/yaml.v3"

// Config is the decoded top-level configuration document.
type Config struct {
	Pipeline PipelineSpec `yaml:"pipeline"`
}

// PipelineSpec is the `pipeline:` document body.
type PipelineSpec struct {
	Name          string        `yaml:"name" validate:"required"`
	Orchestration Orchestration `yaml:"orchestration"`
	Steps         []StepSpec    `yaml:"steps" validate:"required,min=1,dive"`
}

// Orchestration carries the flow-level execution directives.
type Orchestration struct {
	Granularity string `yaml:"granularity"` // node|pipeline
	TaskRunner  string `yaml:"task_runner"` // sequential|concurrent
	MaxWorkers  int    `yaml:"max_workers"`
	SoftFail    bool   `yaml:"soft_fail"`
	RetryCount  int    `yaml:"retry_count"`
	RetryDelay  int    `yaml:"retry_delay"` // seconds
	Timeout     int    `yaml:"timeout"`     // seconds; 0 means no timeout
}

// ApplyDefaults fills in the documented defaults for any field left at
// its YAML zero value.
func (o *Orchestration) ApplyDefaults() {
	if o.Granularity == "" {
		o.Granularity = "node"
	}
	if o.TaskRunner == "" {
		o.TaskRunner = "sequential"
	}
	if o.MaxWorkers == 0 {
		o.MaxWorkers = 1
	}
}

// OutputSpec declares one output parameter name a step produces.
type OutputSpec struct {
	Name string `yaml:"name" validate:"required"`
}

// OutputsSpec is the `outputs:` block of a step.
type OutputsSpec struct {
	Parameters []OutputSpec `yaml:"parameters"`
}

// StepSpec is the declarative, as-parsed form of one pipeline step.
// Method is always normalized to a non-empty list regardless of whether
// the YAML wrote a bare string or a list; see UnmarshalYAML below.
type StepSpec struct {
	Name       string                 `yaml:"name" validate:"required,step_id"`
	Component  string                 `yaml:"component" validate:"required"`
	Engine     string                 `yaml:"engine"` // engine tag, or "auto"
	Method     []string               `yaml:"-" validate:"required,min=1"`
	Parameters map[string]interface{} `yaml:"parameters"`
	Outputs    OutputsSpec            `yaml:"outputs"`
	DependsOn  []string               `yaml:"depends_on"`
}

// EngineIsAuto reports whether the step's engine field requests
// strategy-based auto-selection.
func (s StepSpec) EngineIsAuto() bool {
	return s.Engine == "" || s.Engine == "auto"
}

// stepSpecYAML mirrors StepSpec's YAML shape with Method left untyped so
// UnmarshalYAML can accept either a bare string or a list.
type stepSpecYAML struct {
	Name       string                 `yaml:"name"`
	Component  string                 `yaml:"component"`
	Engine     string                 `yaml:"engine"`
	Method     interface{}            `yaml:"method"`
	Parameters map[string]interface{} `yaml:"parameters"`
	Outputs    OutputsSpec            `yaml:"outputs"`
	DependsOn  []string               `yaml:"depends_on"`
}

// UnmarshalYAML normalizes the `method` field: a bare string becomes a
// single-element chain; a list is used as-is.
func (s *StepSpec) UnmarshalYAML(value *yaml.Node) error {
	var raw stepSpecYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}

	s.Name = raw.Name
	s.Component = raw.Component
	s.Engine = raw.Engine
	s.Parameters = normalizeParameters(raw.Parameters)
	s.Outputs = raw.Outputs
	s.DependsOn = raw.DependsOn

	switch v := raw.Method.(type) {
	case string:
		s.Method = []string{v}
	case []interface{}:
		methods := make([]string, 0, len(v))
		for _, m := range v {
			if str, ok := m.(string); ok {
				methods = append(methods, str)
			}
		}
		s.Method = methods
	default:
		s.Method = nil
	}
	return nil
}

// normalizeParameters rewrites any tagged reference object
// {__ref__: "steps.X...."} into the equivalent bare reference string, so
// downstream code (reference scanning, signature computation) only ever
// deals with one shape.
func normalizeParameters(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if m, ok := v.(map[string]interface{}); ok {
			if ref, ok := m["__ref__"].(string); ok && len(m) == 1 {
				out[k] = ref
				continue
			}
		}
		out[k] = v
	}
	return out
}
