// Package registry implements the method registry: a process-wide index
// of (component, method, engine) implementations selected via a
// pluggable strategy. Writes happen at startup or explicit Refresh;
// execution-time access is read-only.
package registry

import "fmt"

// Callable is the shape every registered implementation has: a map of
// bound argument names to values, returning a result or an error. Directive
// arguments ("_strategy", "_engine_type") are stripped before the callable
// sees args; see Registry.Execute.
type Callable func(args map[string]interface{}) (interface{}, error)

// ConflictPolicy governs what Register does when a full_key collides with
// an existing live registration.
type ConflictPolicy int

const (
	// ConflictOverwriteNewer, the default, replaces the existing
	// registration when the incoming one has a higher (priority, version)
	// pair.
	ConflictOverwriteNewer ConflictPolicy = iota
	// ConflictReject fails registration with DuplicateRegistrationError.
	ConflictReject
	// ConflictKeepExisting silently discards the incoming registration.
	ConflictKeepExisting
)

// Registration is one callable made available by a domain plug-in.
type Registration struct {
	Component   string
	Method      string
	Engine      string
	Version     string
	Priority    int
	Deprecated  bool
	Description string
	Callable    Callable

	// ListParams names the parameters this callable accepts as a
	// designated single-or-list value, subject to the ORCH_INPUT_STYLE
	// contract; see methodcall.Guard, applied at Register time.
	ListParams []string

	// seq records insertion order for deterministic tie-breaks; assigned by
	// the registry on Register, not by callers.
	seq uint64
}

// FullKey returns the registration's unique identity: component::engine::method.
func (r Registration) FullKey() string {
	return fmt.Sprintf("%s::%s::%s", r.Component, r.Engine, r.Method)
}

// ImplementationInfo is the read-only view of a Registration returned by
// Describe; it omits the callable.
type ImplementationInfo struct {
	Engine      string
	Version     string
	Priority    int
	Deprecated  bool
	Description string
}

// Info returns the read-only ImplementationInfo view of this registration.
func (r Registration) Info() ImplementationInfo {
	return ImplementationInfo{
		Engine:      r.Engine,
		Version:     r.Version,
		Priority:    r.Priority,
		Deprecated:  r.Deprecated,
		Description: r.Description,
	}
}
