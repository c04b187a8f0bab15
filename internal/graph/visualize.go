package graph

import (
	"fmt"
	"strings"
)

// RenderText produces the plain-text layer summary: one line per layer
// with its members, then the critical-path and max-parallelism figures.
func (p *Plan) RenderText() string {
	var b strings.Builder
	for i, layer := range p.Layers {
		fmt.Fprintf(&b, "Layer %d (%d steps): %s\n", i, len(layer.Steps), strings.Join(layer.Steps, ", "))
	}
	fmt.Fprintf(&b, "critical_path=%d max_parallelism=%d\n", p.CriticalPath, p.MaxParallelism)
	return b.String()
}

// RenderMermaid exports the graph as a Mermaid flowchart, one arrow per
// edge, labelled with its dependency type.
func (g *Graph) RenderMermaid() string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	for _, n := range g.order {
		fmt.Fprintf(&b, "    %s[%q]\n", sanitizeID(n), n)
	}
	for _, e := range g.edges {
		label := e.Type.String()
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", sanitizeID(e.From), label, sanitizeID(e.To))
	}
	return b.String()
}

// RenderGraphviz exports the graph as a Graphviz "dot" digraph.
func (g *Graph) RenderGraphviz() string {
	var b strings.Builder
	b.WriteString("digraph pipeline {\n")
	for _, n := range g.order {
		fmt.Fprintf(&b, "  %q;\n", n)
	}
	for _, e := range g.edges {
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.From, e.To, e.Type.String())
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderText exports the graph itself (not a plan) as a flat adjacency
// listing, used by `graph --format text` when no plan was requested.
func (g *Graph) RenderText() string {
	var b strings.Builder
	for _, n := range g.order {
		succs := g.Successors(n)
		if len(succs) == 0 {
			fmt.Fprintf(&b, "%s\n", n)
			continue
		}
		fmt.Fprintf(&b, "%s -> %s\n", n, strings.Join(succs, ", "))
	}
	return b.String()
}

func sanitizeID(s string) string {
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(s)
}
