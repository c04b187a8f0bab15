// Package handle implements the late-binding method handle: a token
// created at configuration time that defers choosing an implementation
// until execution time, while still being able to predict a stable
// signature for cache keys before any resolution happens. Configuration
// completes before every plug-in has registered, so the handle captures
// intent (component, method, engine preference) and resolves it lazily.
//
// A single mutex serializes resolution, so at most one strategy
// evaluation is in flight per handle without a separate singleflight
// mechanism.
package handle

import (
	"context"
	"sync"
	"time"

	"github.com/flowkit/orchestrator/internal/registry"
)

// Prefer selects whether a handle auto-selects an engine via strategy or
// is pinned to one chosen at configuration time.
type Prefer int

const (
	PreferAuto Prefer = iota
	PreferFixed
)

// resolveTTL is the soft cache TTL for a resolved engine choice.
const resolveTTL = 5 * time.Second

// predictFastPathFraction divides the TTL to give the window (TTL/5)
// within which predict_signature may reuse a cached resolution instead of
// re-running the strategy. A fast path, disablable via DisableFastPath.
const predictFastPathFraction = 5

// Handle is one step's late-binding method-call token. Its cache is
// exclusively its own: no handle ever reads another's state.
type Handle struct {
	Component   string
	Method      string
	Prefer      Prefer
	FixedEngine string

	// DisableFastPath turns off predict_signature's TTL/5 cache reuse,
	// forcing it to always consult the registry fresh.
	DisableFastPath bool

	mu         sync.Mutex
	resolved   *registry.Registration
	resolvedAt time.Time
}

// New creates a handle bound to a component/method with the given
// engine preference.
func New(component, method string, prefer Prefer, fixedEngine string) *Handle {
	return &Handle{Component: component, Method: method, Prefer: prefer, FixedEngine: fixedEngine}
}

// PredictSignature runs the default strategy against reg without writing
// to the handle's cache, so repeated calls produce a stable answer
// regardless of resolve() having run. When the fast path is enabled and a
// cached resolution exists within TTL/5, it is reused instead of
// re-running the strategy.
func (h *Handle) PredictSignature(reg *registry.Registry) (*registry.ImplementationInfo, error) {
	if h.Prefer == PreferFixed {
		info, err := reg.SelectWithEngine(h.Component, h.Method, h.FixedEngine)
		if err != nil {
			return nil, err
		}
		out := info.Info()
		return &out, nil
	}

	h.mu.Lock()
	if !h.DisableFastPath && h.resolved != nil && time.Since(h.resolvedAt) < resolveTTL/predictFastPathFraction {
		cached := *h.resolved
		h.mu.Unlock()
		out := cached.Info()
		return &out, nil
	}
	h.mu.Unlock()

	sel, err := reg.Select(h.Component, h.Method, "default")
	if err != nil {
		return nil, err
	}
	out := sel.Info()
	return &out, nil
}

// Resolve returns the cached resolution when it is within TTL; otherwise
// it re-runs selection and caches the result with its timestamp.
// PreferFixed handles bypass caching entirely and always return the fixed
// engine's current registration.
func (h *Handle) Resolve(reg *registry.Registry) (registry.Registration, error) {
	if h.Prefer == PreferFixed {
		return reg.SelectWithEngine(h.Component, h.Method, h.FixedEngine)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.resolved != nil && time.Since(h.resolvedAt) < resolveTTL {
		return *h.resolved, nil
	}

	sel, err := reg.Select(h.Component, h.Method, "default")
	if err != nil {
		return registry.Registration{}, err
	}
	h.resolved = &sel
	h.resolvedAt = time.Now()
	return sel, nil
}

// Execute ensures the handle is resolved, then dispatches directly to the
// resolved engine, bypassing strategy selection a second time.
func (h *Handle) Execute(ctx context.Context, reg *registry.Registry, args map[string]interface{}) (interface{}, error) {
	sel, err := h.Resolve(reg)
	if err != nil {
		return nil, err
	}
	return reg.ExecuteWithEngine(ctx, h.Component, sel.Engine, h.Method, args)
}

// Invalidate clears the cached resolution, forcing the next Resolve to
// re-run selection regardless of TTL.
func (h *Handle) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resolved = nil
	h.resolvedAt = time.Time{}
}
