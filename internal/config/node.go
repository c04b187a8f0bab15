package config

import "github.com/flowkit/orchestrator/internal/handle"

// NodeConfig is the resolved, execution-ready form of one StepSpec: a
// chain of method handles, the literal and reference-valued parameters
// that feed it, and the dataset names it is declared to produce.
type NodeConfig struct {
	Name       string
	Component  string
	Handles    []*handle.Handle // one per entry in StepSpec.Method, in chain order
	Parameters map[string]interface{}
	Outputs    []string // declared + auto-added output names
	DependsOn  []string // explicit depends_on entries, copied as declared
}

// PrimaryOutput returns the node's first declared output name, or "" if
// it has none. A non-map method result lands under this name.
func (n NodeConfig) PrimaryOutput() string {
	if len(n.Outputs) == 0 {
		return ""
	}
	return n.Outputs[0]
}
