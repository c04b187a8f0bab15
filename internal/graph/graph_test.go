package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowkit/orchestrator/pkg/orcherrors"
)

func TestBuildPlanDiamond(t *testing.T) {
	g := New()
	for _, n := range []string{"A", "B", "C", "D"} {
		g.AddNode(n)
	}
	require.NoError(t, g.AddEdge(Edge{From: "A", To: "B", Type: DepData}))
	require.NoError(t, g.AddEdge(Edge{From: "A", To: "C", Type: DepData}))
	require.NoError(t, g.AddEdge(Edge{From: "B", To: "D", Type: DepExplicit}))
	require.NoError(t, g.AddEdge(Edge{From: "C", To: "D", Type: DepExplicit}))

	plan, err := g.BuildPlan()
	require.NoError(t, err)
	require.Len(t, plan.Layers, 3)
	require.Equal(t, []string{"A"}, plan.Layers[0].Steps)
	require.ElementsMatch(t, []string{"B", "C"}, plan.Layers[1].Steps)
	require.Equal(t, []string{"D"}, plan.Layers[2].Steps)
	require.Equal(t, 3, plan.CriticalPath)
	require.Equal(t, 2, plan.MaxParallelism)
}

func TestBuildPlanLayerCorrectness(t *testing.T) {
	g := New()
	for _, n := range []string{"A", "B", "C", "D", "E"} {
		g.AddNode(n)
	}
	require.NoError(t, g.AddEdge(Edge{From: "A", To: "B"}))
	require.NoError(t, g.AddEdge(Edge{From: "B", To: "C"}))
	require.NoError(t, g.AddEdge(Edge{From: "A", To: "D"}))
	require.NoError(t, g.AddEdge(Edge{From: "D", To: "E"}))

	plan, err := g.BuildPlan()
	require.NoError(t, err)

	layerOf := make(map[string]int)
	for i, layer := range plan.Layers {
		for _, s := range layer.Steps {
			layerOf[s] = i
		}
	}
	for _, e := range g.Edges() {
		require.Less(t, layerOf[e.From], layerOf[e.To], "edge %s->%s must cross increasing layers", e.From, e.To)
	}
}

func TestTopologicalSortReportsConcreteCycle(t *testing.T) {
	g := New()
	g.AddNode("A")
	g.AddNode("B")
	require.NoError(t, g.AddEdge(Edge{From: "B", To: "A"}))
	require.NoError(t, g.AddEdge(Edge{From: "A", To: "B"}))

	_, err := g.TopologicalSort()
	require.Error(t, err)
	var cycErr *orcherrors.CyclicDependencyError
	require.ErrorAs(t, err, &cycErr)
	require.Len(t, cycErr.Cycle, 2)
	require.ElementsMatch(t, []string{"A", "B"}, cycErr.Cycle)
}

func TestAddEdgeUnknownNodeRejected(t *testing.T) {
	g := New()
	g.AddNode("A")
	err := g.AddEdge(Edge{From: "A", To: "missing"})
	require.Error(t, err)
}

func TestRenderMermaidIncludesEdgesAndTypes(t *testing.T) {
	g := New()
	g.AddNode("A")
	g.AddNode("B")
	require.NoError(t, g.AddEdge(Edge{From: "A", To: "B", Type: DepData}))

	out := g.RenderMermaid()
	require.Contains(t, out, "flowchart TD")
	require.Contains(t, out, "DATA")
}
