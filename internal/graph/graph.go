// Package graph implements the step dependency graph: typed-edge DAG
// construction, cycle detection, Kahn's-algorithm topological sort,
// layered grouping for parallel execution, and critical-path analysis.
package graph

import (
	"sort"

	"github.com/flowkit/orchestrator/pkg/orcherrors"
)

// DepType classifies why an edge exists.
type DepType int

const (
	DepData DepType = iota
	DepExplicit
	DepResource
	DepTemporal
)

func (d DepType) String() string {
	switch d {
	case DepData:
		return "DATA"
	case DepExplicit:
		return "EXPLICIT"
	case DepResource:
		return "RESOURCE"
	case DepTemporal:
		return "TEMPORAL"
	default:
		return "UNKNOWN"
	}
}

// Edge is a directed arc between two step names.
type Edge struct {
	From, To string
	Type     DepType
	Metadata map[string]string
}

// Graph holds nodes (step names) and their typed edges, plus adjacency
// built from them.
type Graph struct {
	nodes    map[string]struct{}
	order    []string // insertion order, for deterministic iteration
	edges    []Edge
	outgoing map[string]map[string]struct{} // from -> set of to
	incoming map[string]map[string]struct{} // to -> set of from
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]struct{}),
		outgoing: make(map[string]map[string]struct{}),
		incoming: make(map[string]map[string]struct{}),
	}
}

// AddNode registers a step name as a vertex, if not already present.
func (g *Graph) AddNode(name string) {
	if _, ok := g.nodes[name]; ok {
		return
	}
	g.nodes[name] = struct{}{}
	g.order = append(g.order, name)
	g.outgoing[name] = make(map[string]struct{})
	g.incoming[name] = make(map[string]struct{})
}

// HasNode reports whether name is a registered vertex.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// AddEdge records a from->to edge. Both endpoints must already exist as
// nodes; callers (ConfigService) are responsible for raising
// UnknownReferenceError before calling AddEdge with an unregistered name.
func (g *Graph) AddEdge(edge Edge) error {
	if !g.HasNode(edge.From) {
		return &orcherrors.UnknownReferenceError{Step: edge.To, Reference: edge.From}
	}
	if !g.HasNode(edge.To) {
		return &orcherrors.UnknownReferenceError{Step: edge.From, Reference: edge.To}
	}
	g.edges = append(g.edges, edge)
	g.outgoing[edge.From][edge.To] = struct{}{}
	g.incoming[edge.To][edge.From] = struct{}{}
	return nil
}

// Nodes returns every step name in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Edges returns every recorded edge.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Predecessors returns the sorted set of nodes with an edge into node.
func (g *Graph) Predecessors(node string) []string {
	return sortedKeys(g.incoming[node])
}

// Successors returns the sorted set of nodes node has an edge into.
func (g *Graph) Successors(node string) []string {
	return sortedKeys(g.outgoing[node])
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TopologicalSort runs Kahn's algorithm and returns the flat node order.
// On a cycle it returns CyclicDependencyError carrying one concrete cycle
// found by DFS back-traversal.
func (g *Graph) TopologicalSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		indegree[n] = len(g.incoming[n])
	}

	queue := make([]string, 0)
	for n, d := range indegree {
		if d == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		sort.Strings(queue)
		n := queue[0]
		queue = queue[1:]
		result = append(result, n)
		for _, succ := range g.Successors(n) {
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(result) != len(g.nodes) {
		cycle := g.findCycle()
		return nil, &orcherrors.CyclicDependencyError{Cycle: cycle}
	}
	return result, nil
}

// findCycle performs a DFS back-traversal to produce one concrete cycle
// for error reporting.
func (g *Graph) findCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	path := []string{}
	var cycle []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, succ := range g.Successors(node) {
			if !visited[succ] {
				if dfs(succ) {
					return true
				}
			} else if onStack[succ] {
				idx := len(path) - 1
				for idx >= 0 && path[idx] != succ {
					idx--
				}
				if idx >= 0 {
					cycle = append([]string{}, path[idx:]...)
					return true
				}
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		return false
	}

	nodes := append([]string(nil), g.order...)
	sort.Strings(nodes)
	for _, n := range nodes {
		if !visited[n] {
			if dfs(n) {
				break
			}
		}
	}
	return cycle
}

// Layer returns a set of nodes mutually independent given all earlier
// layers.
type Layer struct {
	Steps []string
}

// Plan is the ordered list of layers, plus the critical path length and
// the max parallelism the layering allows.
type Plan struct {
	Layers         []Layer
	CriticalPath   int // longest chain of layers on any source-to-sink path
	MaxParallelism int // largest layer size
}

// BuildPlan performs the layered grouping: layer 0 is every node with no
// remaining predecessors; remove them; repeat.
// Returns CyclicDependencyError under the same conditions as
// TopologicalSort.
func (g *Graph) BuildPlan() (*Plan, error) {
	indegree := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		indegree[n] = len(g.incoming[n])
	}

	remaining := len(g.nodes)
	var layers []Layer
	maxWidth := 0

	for remaining > 0 {
		var layer []string
		for n, d := range indegree {
			if d == 0 {
				layer = append(layer, n)
			}
		}
		if len(layer) == 0 {
			return nil, &orcherrors.CyclicDependencyError{Cycle: g.findCycle()}
		}
		sort.Strings(layer)
		layers = append(layers, Layer{Steps: layer})
		if len(layer) > maxWidth {
			maxWidth = len(layer)
		}

		for _, n := range layer {
			indegree[n] = -1 // remove from future consideration
			remaining--
			for _, succ := range g.Successors(n) {
				if indegree[succ] >= 0 {
					indegree[succ]--
				}
			}
		}
	}

	return &Plan{Layers: layers, CriticalPath: len(layers), MaxParallelism: maxWidth}, nil
}
