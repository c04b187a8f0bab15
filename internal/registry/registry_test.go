package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowkit/orchestrator/pkg/orcherrors"
)

func echoCallable(v interface{}) Callable {
	return func(args map[string]interface{}) (interface{}, error) { return v, nil }
}

func TestRegistryDefaultStrategyPrefersPriorityThenVersion(t *testing.T) {
	r := New(ConflictOverwriteNewer)
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, Registration{Component: "Y", Method: "clean", Engine: "v1", Version: "1.0.0", Priority: 1, Callable: echoCallable("v1")}))
	require.NoError(t, r.Register(ctx, Registration{Component: "Y", Method: "clean", Engine: "v2", Version: "2.0.0", Priority: 5, Callable: echoCallable("v2")}))

	reg, err := r.Select("Y", "clean", "default")
	require.NoError(t, err)
	require.Equal(t, "v2", reg.Engine)
}

func TestRegistryRejectsDuplicateUnderRejectPolicy(t *testing.T) {
	r := New(ConflictReject)
	ctx := context.Background()
	reg := Registration{Component: "X", Method: "load", Engine: "mem", Version: "1.0.0", Callable: echoCallable(1)}
	require.NoError(t, r.Register(ctx, reg))
	err := r.Register(ctx, reg)
	require.Error(t, err)
}

func TestRegistryDeprecatedExcludedFromDefaultStrategy(t *testing.T) {
	r := New(ConflictOverwriteNewer)
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, Registration{Component: "Y", Method: "clean", Engine: "old", Version: "3.0.0", Priority: 10, Deprecated: true, Callable: echoCallable("old")}))
	require.NoError(t, r.Register(ctx, Registration{Component: "Y", Method: "clean", Engine: "new", Version: "1.0.0", Priority: 1, Callable: echoCallable("new")}))

	reg, err := r.Select("Y", "clean", "default")
	require.NoError(t, err)
	require.Equal(t, "new", reg.Engine)
}

func TestRegistryNoCandidateWhenAllDeprecated(t *testing.T) {
	r := New(ConflictOverwriteNewer)
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, Registration{Component: "Y", Method: "clean", Engine: "old", Version: "1.0.0", Deprecated: true, Callable: echoCallable("old")}))
	_, err := r.Select("Y", "clean", "default")
	require.Error(t, err)
}

func TestRegistryExecuteStripsDirectivesAndOverridesEngine(t *testing.T) {
	r := New(ConflictOverwriteNewer)
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, Registration{Component: "Y", Method: "clean", Engine: "v1", Version: "1.0.0", Priority: 10, Callable: func(args map[string]interface{}) (interface{}, error) {
		_, hasDirective := args["_engine_type"]
		require.False(t, hasDirective)
		return "v1", nil
	}}))
	require.NoError(t, r.Register(ctx, Registration{Component: "Y", Method: "clean", Engine: "v2", Version: "1.0.0", Priority: 1, Callable: func(args map[string]interface{}) (interface{}, error) {
		return "v2", nil
	}}))

	result, err := r.Execute(ctx, "Y", "clean", map[string]interface{}{"_engine_type": "v2", "df": 1})
	require.NoError(t, err)
	require.Equal(t, "v2", result)
}

func TestRegistryExecuteEnforcesInputStyleFromEnv(t *testing.T) {
	t.Setenv("ORCH_INPUT_STYLE", "strict_single")

	r := New(ConflictOverwriteNewer)
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, Registration{
		Component: "Y", Method: "clean", Engine: "v1", Version: "1.0.0",
		ListParams: []string{"items"},
		Callable: func(args map[string]interface{}) (interface{}, error) {
			return args["items"], nil
		},
	}))

	_, err := r.Execute(ctx, "Y", "clean", map[string]interface{}{"items": []interface{}{"only"}})
	require.Error(t, err)
	var styleErr *orcherrors.InputStyleError
	require.ErrorAs(t, err, &styleErr)
}

func TestRegistryExecuteAllowsDeclaredInputUnderAutoStyle(t *testing.T) {
	r := New(ConflictOverwriteNewer)
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, Registration{
		Component: "Y", Method: "clean", Engine: "v1", Version: "1.0.0",
		ListParams: []string{"items"},
		Callable: func(args map[string]interface{}) (interface{}, error) {
			return args["items"], nil
		},
	}))

	result, err := r.Execute(ctx, "Y", "clean", map[string]interface{}{"items": []interface{}{"only"}})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"only"}, result)
}

func TestRegistryStableStrategyExcludesPrerelease(t *testing.T) {
	r := New(ConflictOverwriteNewer)
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, Registration{Component: "Y", Method: "clean", Engine: "rc", Version: "2.0.0-rc1", Priority: 100, Callable: echoCallable("rc")}))
	require.NoError(t, r.Register(ctx, Registration{Component: "Y", Method: "clean", Engine: "stable", Version: "1.0.0", Priority: 1, Callable: echoCallable("stable")}))

	reg, err := r.Select("Y", "clean", "stable")
	require.NoError(t, err)
	require.Equal(t, "stable", reg.Engine)
}
