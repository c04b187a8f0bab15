package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/flowkit/orchestrator/internal/graph"
)

func parseYAMLString(doc string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func diamondSteps() []StepSpec {
	return []StepSpec{
		{Name: "ingest", Component: "loader", Method: []string{"load"}},
		{
			Name: "transform_a", Component: "xform", Method: []string{"run"},
			Parameters: map[string]interface{}{"input": "steps.ingest.outputs.parameters.rows"},
		},
		{
			Name: "transform_b", Component: "xform", Method: []string{"run"},
			Parameters: map[string]interface{}{"input": "steps.ingest.outputs.parameters.rows"},
		},
		{
			Name: "merge", Component: "merger", Method: []string{"run"},
			Parameters: map[string]interface{}{
				"left":  "steps.transform_a.outputs.parameters.out",
				"right": "steps.transform_b.outputs.parameters.out",
			},
		},
	}
}

func TestServiceBuildDiamondGraph(t *testing.T) {
	svc := NewService()
	result, err := svc.Build(&Config{Pipeline: PipelineSpec{Name: "p", Steps: diamondSteps()}})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Plan.CriticalPath)
	assert.Equal(t, 2, result.Plan.MaxParallelism)

	assert.Contains(t, result.Nodes["ingest"].Outputs, "rows")
	assert.Contains(t, result.Nodes["transform_a"].Outputs, "out")
	assert.Contains(t, result.Nodes["transform_b"].Outputs, "out")

	dataEdges := 0
	for _, e := range result.Graph.Edges() {
		if e.Type == graph.DepData {
			dataEdges++
			assert.NotEmpty(t, e.Metadata["output"])
			assert.NotEmpty(t, e.Metadata["parameter"])
		}
	}
	assert.Equal(t, 4, dataEdges)
}

func TestDataDependencySourceAutoAddsUndeclaredOutput(t *testing.T) {
	svc := NewService()
	nodes, _ := svc.parseSteps(diamondSteps())

	edges, err := DataDependencySource{}.Edges(nodes, "transform_a")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "ingest", edges[0].From)
	assert.Contains(t, nodes["ingest"].Outputs, "rows")
}

func TestServiceBuildUnknownReference(t *testing.T) {
	svc := NewService()
	steps := []StepSpec{
		{Name: "only", Component: "c", Method: []string{"m"},
			Parameters: map[string]interface{}{"x": "steps.missing.outputs.parameters.y"}},
	}
	_, err := svc.Build(&Config{Pipeline: PipelineSpec{Name: "p", Steps: steps}})
	require.Error(t, err)
}

func TestServiceBuildExplicitDependsOn(t *testing.T) {
	svc := NewService()
	steps := []StepSpec{
		{Name: "first", Component: "c", Method: []string{"m"}},
		{Name: "second", Component: "c", Method: []string{"m"}, DependsOn: []string{"first"}},
	}
	result, err := svc.Build(&Config{Pipeline: PipelineSpec{Name: "p", Steps: steps}})
	require.NoError(t, err)
	require.Len(t, result.Plan.Layers, 2)
	assert.Equal(t, []string{"first"}, result.Plan.Layers[0].Steps)
	assert.Equal(t, []string{"second"}, result.Plan.Layers[1].Steps)
}

func TestServiceBuildCycleRejected(t *testing.T) {
	svc := NewService()
	steps := []StepSpec{
		{Name: "a", Component: "c", Method: []string{"m"}, DependsOn: []string{"b"}},
		{Name: "b", Component: "c", Method: []string{"m"}, DependsOn: []string{"a"}},
	}
	_, err := svc.Build(&Config{Pipeline: PipelineSpec{Name: "p", Steps: steps}})
	require.Error(t, err)
}

func TestStepSpecUnmarshalNormalizesMethodAndRefs(t *testing.T) {
	cfg, err := parseYAMLString(`
pipeline:
  name: demo
  steps:
    - name: one
      component: c
      method: solo
      parameters:
        x:
          __ref__: "steps.zero.outputs.parameters.y"
    - name: multi
      component: c
      method: [first, second]
`)
	require.NoError(t, err)
	require.Len(t, cfg.Pipeline.Steps, 2)
	assert.Equal(t, []string{"solo"}, cfg.Pipeline.Steps[0].Method)
	assert.Equal(t, "steps.zero.outputs.parameters.y", cfg.Pipeline.Steps[0].Parameters["x"])
	assert.Equal(t, []string{"first", "second"}, cfg.Pipeline.Steps[1].Method)
}
