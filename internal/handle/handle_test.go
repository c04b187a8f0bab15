package handle

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowkit/orchestrator/internal/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(registry.ConflictOverwriteNewer)
	require.NoError(t, r.Register(context.Background(), registry.Registration{
		Component: "Y", Method: "clean", Engine: "v1", Version: "1.0.0", Priority: 1,
		Callable: func(args map[string]interface{}) (interface{}, error) { return "v1-result", nil },
	}))
	require.NoError(t, r.Register(context.Background(), registry.Registration{
		Component: "Y", Method: "clean", Engine: "v2", Version: "2.0.0", Priority: 5,
		Callable: func(args map[string]interface{}) (interface{}, error) { return "v2-result", nil },
	}))
	return r
}

func TestHandleResolveAutoPicksDefaultStrategyWinner(t *testing.T) {
	r := newTestRegistry(t)
	h := New("Y", "clean", PreferAuto, "")
	sel, err := h.Resolve(r)
	require.NoError(t, err)
	require.Equal(t, "v2", sel.Engine)
}

func TestHandleResolveFixedAlwaysReturnsFixedEngine(t *testing.T) {
	r := newTestRegistry(t)
	h := New("Y", "clean", PreferFixed, "v1")
	sel, err := h.Resolve(r)
	require.NoError(t, err)
	require.Equal(t, "v1", sel.Engine)
}

func TestHandlePredictSignatureStableAcrossResolve(t *testing.T) {
	r := newTestRegistry(t)
	h := New("Y", "clean", PreferAuto, "")

	before, err := h.PredictSignature(r)
	require.NoError(t, err)

	_, err = h.Resolve(r)
	require.NoError(t, err)

	after, err := h.PredictSignature(r)
	require.NoError(t, err)
	require.Equal(t, before.Engine, after.Engine)
}

func TestHandleInvalidateForcesReresolve(t *testing.T) {
	r := newTestRegistry(t)
	h := New("Y", "clean", PreferAuto, "")
	_, err := h.Resolve(r)
	require.NoError(t, err)
	h.Invalidate()

	require.NoError(t, r.Register(context.Background(), registry.Registration{
		Component: "Y", Method: "clean", Engine: "v3", Version: "3.0.0", Priority: 100,
		Callable: func(args map[string]interface{}) (interface{}, error) { return "v3-result", nil },
	}))

	sel, err := h.Resolve(r)
	require.NoError(t, err)
	require.Equal(t, "v3", sel.Engine)
}

func TestHandleConcurrentResolveSingleWinner(t *testing.T) {
	r := newTestRegistry(t)
	h := New("Y", "clean", PreferAuto, "")

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sel, err := h.Resolve(r)
			require.NoError(t, err)
			results[idx] = sel.Engine
		}(i)
	}
	wg.Wait()
	for _, engine := range results {
		require.Equal(t, "v2", engine)
	}
}

func TestHandleExecuteDispatchesToResolvedEngine(t *testing.T) {
	r := newTestRegistry(t)
	h := New("Y", "clean", PreferFixed, "v1")
	result, err := h.Execute(context.Background(), r, map[string]interface{}{"df": 21})
	require.NoError(t, err)
	require.Equal(t, "v1-result", result)
}
