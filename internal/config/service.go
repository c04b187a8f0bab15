// Package config's Service turns a parsed pipeline document into an
// execution-ready plan: parse steps into NodeConfigs, scan parameter
// values for step-output references (auto-adding any undeclared output a
// reference names), build the typed dependency graph from those
// references plus explicit depends_on entries, and compute the layered
// execution plan.
package config

import (
	"fmt"
	"sort"

	"github.com/flowkit/orchestrator/internal/graph"
	"github.com/flowkit/orchestrator/internal/handle"
	"github.com/flowkit/orchestrator/pkg/orcherrors"
)

// BuildResult is everything compute_execution_plan hands to the execution
// engine: the resolved nodes, the dependency graph they were built from,
// the layered plan, and the flow-level orchestration directives.
type BuildResult struct {
	Nodes         map[string]*NodeConfig
	Order         []string // step names in declaration order
	Graph         *graph.Graph
	Plan          *graph.Plan
	Orchestration Orchestration
}

// DependencySource extracts the inbound edges for one node, given the
// complete node-config map. The two built-ins cover data references and
// explicit depends_on entries; hosts may register further sources
// (resource, temporal) via NewServiceWithSources.
type DependencySource interface {
	Name() string
	Edges(nodes map[string]*NodeConfig, name string) ([]graph.Edge, error)
}

// Service turns a parsed Config into a BuildResult by running each of its
// dependency sources over every node.
type Service struct {
	sources []DependencySource
}

// NewService constructs a ConfigService with the two built-in dependency
// sources: data references and explicit depends_on.
func NewService() *Service {
	return NewServiceWithSources(DataDependencySource{}, ExplicitDependencySource{})
}

// NewServiceWithSources constructs a ConfigService with an explicit source
// list, for hosts that add resource or temporal edge extractors.
func NewServiceWithSources(sources ...DependencySource) *Service {
	return &Service{sources: sources}
}

// Load reads and validates a pipeline document from path.
func (s *Service) Load(path string) (*Config, error) {
	return Parse(path)
}

// Build runs parse_steps, scan_references, build_dependency_graph, and
// compute_execution_plan in sequence, returning the fully resolved plan.
func (s *Service) Build(cfg *Config) (*BuildResult, error) {
	nodes, order := s.parseSteps(cfg.Pipeline.Steps)

	g := graph.New()
	for _, name := range order {
		g.AddNode(name)
	}

	for _, name := range order {
		for _, source := range s.sources {
			edges, err := source.Edges(nodes, name)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				if err := g.AddEdge(edge); err != nil {
					return nil, err
				}
			}
		}
	}

	plan, err := g.BuildPlan()
	if err != nil {
		return nil, err
	}

	return &BuildResult{
		Nodes:         nodes,
		Order:         order,
		Graph:         g,
		Plan:          plan,
		Orchestration: cfg.Pipeline.Orchestration,
	}, nil
}

// parseSteps converts each StepSpec into a NodeConfig with one
// handle.Handle per method in its chain (build_auto_nodes: a multi-method
// chain becomes a chain of handles, one per hop).
func (s *Service) parseSteps(steps []StepSpec) (map[string]*NodeConfig, []string) {
	nodes := make(map[string]*NodeConfig, len(steps))
	order := make([]string, 0, len(steps))

	for _, step := range steps {
		prefer := handle.PreferAuto
		fixed := ""
		if !step.EngineIsAuto() {
			prefer = handle.PreferFixed
			fixed = step.Engine
		}

		handles := make([]*handle.Handle, 0, len(step.Method))
		for _, method := range step.Method {
			handles = append(handles, handle.New(step.Component, method, prefer, fixed))
		}

		outputs := make([]string, 0, len(step.Outputs.Parameters))
		for _, o := range step.Outputs.Parameters {
			outputs = append(outputs, o.Name)
		}

		nodes[step.Name] = &NodeConfig{
			Name:       step.Name,
			Component:  step.Component,
			Handles:    handles,
			Parameters: step.Parameters,
			Outputs:    outputs,
			DependsOn:  append([]string(nil), step.DependsOn...),
		}
		order = append(order, step.Name)
	}
	return nodes, order
}

// DataDependencySource walks a node's parameters looking for
// "steps.<name>.outputs.parameters.<output>" reference strings. A
// reference to an unknown step is an UnknownReferenceError; a reference to
// an output the upstream step never declared is auto-added to that step's
// NodeConfig.Outputs rather than rejected. Each resolved reference yields
// a DepData edge carrying the output and parameter names.
type DataDependencySource struct{}

func (DataDependencySource) Name() string { return "data" }

func (DataDependencySource) Edges(nodes map[string]*NodeConfig, name string) ([]graph.Edge, error) {
	node := nodes[name]
	paramKeys := make([]string, 0, len(node.Parameters))
	for k := range node.Parameters {
		paramKeys = append(paramKeys, k)
	}
	sort.Strings(paramKeys)

	var edges []graph.Edge
	for _, key := range paramKeys {
		str, ok := node.Parameters[key].(string)
		if !ok {
			continue
		}
		ref, isRef := ParseReference(str)
		if !isRef {
			continue
		}

		upstream, exists := nodes[ref.Step]
		if !exists {
			return nil, &orcherrors.UnknownReferenceError{Step: name, Reference: ref.Step}
		}
		if !containsString(upstream.Outputs, ref.Output) {
			upstream.Outputs = append(upstream.Outputs, ref.Output)
		}

		edges = append(edges, graph.Edge{
			From: ref.Step,
			To:   name,
			Type: graph.DepData,
			Metadata: map[string]string{
				"output":    ref.Output,
				"parameter": key,
			},
		})
	}
	return edges, nil
}

// ExplicitDependencySource emits one ordering-only DepExplicit edge per
// depends_on entry, rejecting names that do not resolve to a declared step.
type ExplicitDependencySource struct{}

func (ExplicitDependencySource) Name() string { return "explicit" }

func (ExplicitDependencySource) Edges(nodes map[string]*NodeConfig, name string) ([]graph.Edge, error) {
	var edges []graph.Edge
	for _, dep := range nodes[name].DependsOn {
		if _, ok := nodes[dep]; !ok {
			return nil, &orcherrors.UnknownReferenceError{Step: name, Reference: dep}
		}
		edges = append(edges, graph.Edge{From: dep, To: name, Type: graph.DepExplicit})
	}
	return edges, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// DescribeNode renders a one-line human summary of a node: its name,
// component, and method chain.
func DescribeNode(n *NodeConfig) string {
	methods := make([]string, 0, len(n.Handles))
	for _, h := range n.Handles {
		methods = append(methods, h.Method)
	}
	return fmt.Sprintf("%s (%s::%v)", n.Name, n.Component, methods)
}
