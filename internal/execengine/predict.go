package execengine

import (
	"fmt"

	"github.com/flowkit/orchestrator/internal/config"
	"github.com/flowkit/orchestrator/internal/registry"
	"github.com/flowkit/orchestrator/internal/signature"
)

// PredictSignatures computes the signature every node in build would get on
// a cold run, without invoking any method or touching the cache index. It
// mirrors runState.computeSignature exactly, but accumulates upstream
// signatures into a local map as it walks build.Plan.Layers in order
// instead of reading them from a live run's Lineage, since no run exists
// yet.
// It backs `cache plan`, which forecasts hit/miss per step before any node
// actually executes.
func PredictSignatures(build *config.BuildResult, reg *registry.Registry) (map[string]string, error) {
	predicted := make(map[string]string, len(build.Nodes))

	for _, layer := range build.Plan.Layers {
		for _, name := range layer.Steps {
			node := build.Nodes[name]

			literals := make(map[string]string)
			for key, v := range node.Parameters {
				if str, ok := v.(string); ok {
					if _, isRef := config.ParseReference(str); isRef {
						continue
					}
				}
				literals[key] = fmt.Sprintf("%v", v)
			}

			methodChain := make([]string, 0, len(node.Handles))
			implementations := make([]string, 0, len(node.Handles))
			for _, h := range node.Handles {
				methodChain = append(methodChain, h.Method)
				info, err := h.PredictSignature(reg)
				if err != nil {
					return nil, err
				}
				implementations = append(implementations, fmt.Sprintf("%s@%s:%s:%d", h.Method, info.Engine, info.Version, info.Priority))
			}

			upstream := make(map[string]string)
			for _, pred := range build.Graph.Predecessors(name) {
				if sig, ok := predicted[pred]; ok {
					upstream[pred] = sig
				}
			}

			sig, err := signature.Compute(signature.Input{
				MethodChain:        methodChain,
				Implementations:    implementations,
				LiteralParams:      literals,
				UpstreamSignatures: upstream,
			})
			if err != nil {
				return nil, err
			}
			predicted[name] = sig
		}
	}
	return predicted, nil
}
