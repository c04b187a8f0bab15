// Package orcherrors defines the user-visible error taxonomy for the
// orchestrator: configuration, graph, registry, execution, and cache
// failures. Each kind carries the structured fields callers need (step
// name, cycle path, signature) and implements Unwrap so callers can test
// with errors.Is/errors.As.
package orcherrors

import (
	"fmt"
	"strings"
)

// OrchError is the common shape every taxonomy member satisfies.
type OrchError interface {
	error
	Unwrap() error
}

// ConfigError reports a malformed configuration document: a missing
// required field, an invalid orchestration directive, or a structurally
// invalid step entry.
type ConfigError struct {
	Path string // config file path, or dotted path into the config tree, e.g. "pipeline.steps"
	Err  error
}

func NewConfigError(path string, err error) *ConfigError { return &ConfigError{Path: path, Err: err} }

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("config error at %s", e.Path)
	}
	return fmt.Sprintf("config error at %s: %s", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// UnknownReferenceError reports a parameter reference naming a step or
// output that does not exist in the configuration.
type UnknownReferenceError struct {
	Step      string
	Reference string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("step %q references unknown %q", e.Step, e.Reference)
}

func (e *UnknownReferenceError) Unwrap() error { return nil }

// CyclicDependencyError carries a concrete cycle found by DFS
// back-traversal, reported as a rotation of the cycle starting at the
// first node revisited.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return "cyclic dependency detected"
	}
	path := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("cyclic dependency detected: %s", strings.Join(path, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error { return nil }

// DuplicateRegistrationError reports a conflicting registration under the
// "reject" conflict policy.
type DuplicateRegistrationError struct {
	FullKey string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("duplicate registration for %q (conflict policy: reject)", e.FullKey)
}

func (e *DuplicateRegistrationError) Unwrap() error { return nil }

// MethodNotFoundError reports that no registration exists for a
// (component, method) pair at all.
type MethodNotFoundError struct {
	Component, Method string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("no method %q registered for component %q", e.Method, e.Component)
}

func (e *MethodNotFoundError) Unwrap() error { return nil }

// EngineNotFoundError reports a direct-dispatch lookup naming an engine
// tag that has no registration.
type EngineNotFoundError struct {
	Component, Method, Engine string
}

func (e *EngineNotFoundError) Error() string {
	return fmt.Sprintf("no engine %q registered for %s::%s", e.Engine, e.Component, e.Method)
}

func (e *EngineNotFoundError) Unwrap() error { return nil }

// NoCandidateError reports that a strategy was given zero eligible
// candidates (after deprecated/pre-release filtering).
type NoCandidateError struct {
	Component, Method, Strategy string
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("strategy %q selected no candidate for %s::%s", e.Strategy, e.Component, e.Method)
}

func (e *NoCandidateError) Unwrap() error { return nil }

// InputStyleError reports a violation of the ORCH_INPUT_STYLE contract:
// a method declared strict-single received a disguised one-element list,
// or a list-style method received a bare scalar under enforce_list.
type InputStyleError struct {
	Component, Method, Style string
	Detail                   string
}

func (e *InputStyleError) Error() string {
	return fmt.Sprintf("input style violation for %s.%s under %s: %s", e.Component, e.Method, e.Style, e.Detail)
}

func (e *InputStyleError) Unwrap() error { return nil }

// NodeExecutionError wraps a method's native error with the step name and
// the signature that was computed for the attempt, so callers can
// correlate a failure with the exact planned execution that produced it.
type NodeExecutionError struct {
	Step      string
	Signature string
	Err       error
}

func NewNodeExecutionError(step, signature string, err error) *NodeExecutionError {
	return &NodeExecutionError{Step: step, Signature: signature, Err: err}
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("step %q failed (signature %s): %s", e.Step, e.Signature, e.Err)
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }

// CacheIntegrityError reports a declared output missing from the cached
// outputs although the stored signature matched the freshly computed one.
type CacheIntegrityError struct {
	Step           string
	MissingOutputs []string
}

func (e *CacheIntegrityError) Error() string {
	return fmt.Sprintf("cache integrity error for step %q: missing outputs %v despite matching signature", e.Step, e.MissingOutputs)
}

func (e *CacheIntegrityError) Unwrap() error { return nil }

// CancellationError reports a node or flow aborted by an external
// cancellation signal.
type CancellationError struct {
	Step string
}

func (e *CancellationError) Error() string {
	if e.Step == "" {
		return "flow cancelled"
	}
	return fmt.Sprintf("step %q cancelled", e.Step)
}

func (e *CancellationError) Unwrap() error { return nil }

// TimeoutError reports a node or flow aborted by a wall-clock timeout.
type TimeoutError struct {
	Step string
}

func (e *TimeoutError) Error() string {
	if e.Step == "" {
		return "flow timed out"
	}
	return fmt.Sprintf("step %q timed out", e.Step)
}

func (e *TimeoutError) Unwrap() error { return nil }
