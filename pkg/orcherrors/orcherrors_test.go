package orcherrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigErrorUnwrapsUnderlyingCause(t *testing.T) {
	cause := errors.New("missing field")
	err := NewConfigError("pipeline.steps[0].method", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "pipeline.steps[0].method")
}

func TestNodeExecutionErrorUnwrapsMethodFailure(t *testing.T) {
	cause := errors.New("divide by zero")
	err := NewNodeExecutionError("B", "abc123", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "B")
	require.Contains(t, err.Error(), "abc123")
}

func TestCyclicDependencyErrorReportsRotation(t *testing.T) {
	err := &CyclicDependencyError{Cycle: []string{"A", "B"}}
	require.Equal(t, "cyclic dependency detected: A -> B -> A", err.Error())
}

func TestCancellationAndTimeoutErrorsDistinguishFlowFromStep(t *testing.T) {
	require.Equal(t, "flow cancelled", (&CancellationError{}).Error())
	require.Equal(t, `step "A" cancelled`, (&CancellationError{Step: "A"}).Error())
	require.Equal(t, "flow timed out", (&TimeoutError{}).Error())
	require.Equal(t, `step "A" timed out`, (&TimeoutError{Step: "A"}).Error())
}

func TestCacheIntegrityErrorListsMissingOutputs(t *testing.T) {
	err := &CacheIntegrityError{Step: "B", MissingOutputs: []string{"cleaned"}}
	require.Contains(t, err.Error(), "B")
	require.Contains(t, err.Error(), "cleaned")
}

func TestDuplicateRegistrationAndNoCandidateErrors(t *testing.T) {
	dup := &DuplicateRegistrationError{FullKey: "Y::v1::clean"}
	require.Contains(t, dup.Error(), "Y::v1::clean")

	nc := &NoCandidateError{Component: "Y", Method: "clean", Strategy: "default"}
	require.Contains(t, nc.Error(), "Y::clean")
	require.Contains(t, nc.Error(), "default")
}

func TestErrorsAsRecoversConcreteType(t *testing.T) {
	var err error = &UnknownReferenceError{Step: "B", Reference: "steps.A.outputs.parameters.raw"}

	var target *UnknownReferenceError
	require.True(t, errors.As(err, &target))
	require.Equal(t, "B", target.Step)
}
