package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/flowkit/orchestrator/internal/methodcall"
	"github.com/flowkit/orchestrator/pkg/orcherrors"
)

// Notifier receives registry lifecycle events (after_method_registered,
// after_registry_refresh). internal/hooks.Bus implements this so the
// registry can fire hook events without importing the hooks package
// directly.
type Notifier interface {
	Notify(ctx context.Context, event string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, interface{}) {}

// Registry is the process-wide index of (component, method, engine)
// implementations. An RWMutex protects the nested maps; writes only
// happen at startup or an explicit Refresh, so execution-time reads
// never contend with each other.
type Registry struct {
	mu         sync.RWMutex
	idx        *index
	policy     ConflictPolicy
	seq        uint64
	notifier   Notifier
	scanners   []scanEntry
	strategies *strategyTable
}

type scanEntry struct {
	component, engine string
	provide           func() []Registration
}

// New creates an empty Registry with the given conflict policy.
func New(policy ConflictPolicy) *Registry {
	return &Registry{idx: newIndex(), policy: policy, notifier: noopNotifier{}, strategies: newStrategyTable()}
}

// SetNotifier wires the registry to a hook bus (or any Notifier); pass nil
// to detach it.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n == nil {
		n = noopNotifier{}
	}
	r.notifier = n
}

// Register inserts reg under its full_key, applying the conflict policy on
// collision. Fires after_method_registered on success.
//
// Before insertion, reg.Callable is wrapped with methodcall.Guard using
// the process's ORCH_INPUT_STYLE setting and reg.ListParams, so a
// disguised single-element list or a bare scalar on a declared list
// parameter fails with InputStyleError the first time the method is ever
// invoked through the registry.
func (r *Registry) Register(ctx context.Context, reg Registration) error {
	reg.Callable = methodcall.Guard(reg.Component, reg.Method, methodcall.StyleFromEnv(), reg.ListParams, reg.Callable)

	r.mu.Lock()
	existing, has := r.idx.get(reg.Component, reg.Method, reg.Engine)
	if has {
		switch r.policy {
		case ConflictReject:
			r.mu.Unlock()
			return &orcherrors.DuplicateRegistrationError{FullKey: reg.FullKey()}
		case ConflictKeepExisting:
			r.mu.Unlock()
			return nil
		case ConflictOverwriteNewer:
			if !winsOver(reg, *existing) {
				r.mu.Unlock()
				return nil
			}
		}
	}
	r.seq++
	reg.seq = r.seq
	r.idx.put(&reg)
	notifier := r.notifier
	r.mu.Unlock()

	notifier.Notify(ctx, "after_method_registered", reg.Info())
	return nil
}

// winsOver reports whether incoming should replace existing under
// overwrite-newer-by-version-and-priority, the default conflict policy:
// higher priority wins; ties broken by higher semver version.
func winsOver(incoming, existing Registration) bool {
	if incoming.Priority != existing.Priority {
		return incoming.Priority > existing.Priority
	}
	return compareSemver(incoming.Version, existing.Version) > 0
}

// Describe returns every live candidate registration's info for a
// (component, method) pair, in insertion order. Deprecated registrations
// are included; strategies, not Describe, are what exclude them.
func (r *Registry) Describe(component, method string) []ImplementationInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cands := r.idx.candidates(component, method)
	out := make([]ImplementationInfo, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Info())
	}
	return out
}

// ListEngines returns just the engine tags for a (component, method) pair.
func (r *Registry) ListEngines(component, method string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx.engines(component, method)
}

// ListComponents returns every distinct component with at least one
// registration, used by the `engines` CLI command.
func (r *Registry) ListComponents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.idx.byComponent))
	for c := range r.idx.byComponent {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ListMethods returns every method declared under a component.
func (r *Registry) ListMethods(component string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byMethod, ok := r.idx.byComponent[component]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byMethod))
	for m := range byMethod {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Select runs the named strategy (default when empty) against the
// candidates for (component, method) and returns the chosen registration,
// without invoking it. MethodHandle.resolve and predict_signature both
// call this.
func (r *Registry) Select(component, method, strategyName string) (Registration, error) {
	r.mu.RLock()
	cands := r.idx.candidates(component, method)
	table := r.strategies
	r.mu.RUnlock()

	if len(cands) == 0 {
		return Registration{}, &orcherrors.MethodNotFoundError{Component: component, Method: method}
	}
	if strategyName == "" {
		strategyName = "default"
	}
	strat, ok := table.get(strategyName)
	if !ok {
		strat = defaultStrategy{}
	}
	chosen, err := strat.Select(component, method, cands)
	if err != nil {
		return Registration{}, err
	}
	return *chosen, nil
}

// SelectWithEngine bypasses strategy selection and returns the exact
// engine's registration, or EngineNotFoundError.
func (r *Registry) SelectWithEngine(component, method, engine string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.idx.byComponent[component]; !ok {
		return Registration{}, &orcherrors.MethodNotFoundError{Component: component, Method: method}
	}
	reg, ok := r.idx.get(component, method, engine)
	if !ok {
		return Registration{}, &orcherrors.EngineNotFoundError{Component: component, Method: method, Engine: engine}
	}
	return *reg, nil
}

// Execute selects an implementation via the default strategy (or the
// "_strategy"/"_engine_type" directive arguments) and invokes it.
func (r *Registry) Execute(ctx context.Context, component, method string, args map[string]interface{}) (interface{}, error) {
	callArgs, strategyName, engineOverride := splitDirectives(args)

	var reg Registration
	var err error
	if engineOverride != "" {
		reg, err = r.SelectWithEngine(component, method, engineOverride)
	} else {
		reg, err = r.Select(component, method, strategyName)
	}
	if err != nil {
		return nil, err
	}
	return r.invoke(ctx, reg, callArgs)
}

// ExecuteWithEngine bypasses strategy selection entirely.
func (r *Registry) ExecuteWithEngine(ctx context.Context, component, engine, method string, args map[string]interface{}) (interface{}, error) {
	reg, err := r.SelectWithEngine(component, method, engine)
	if err != nil {
		return nil, err
	}
	return r.invoke(ctx, reg, args)
}

func (r *Registry) invoke(ctx context.Context, reg Registration, args map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	notifier := r.notifier
	r.mu.RUnlock()
	notifier.Notify(ctx, "on_method_execute", reg.FullKey())
	return reg.Callable(args)
}

// splitDirectives strips "_strategy" and "_engine_type" directive keys out
// of the call arguments before they reach the callable.
func splitDirectives(args map[string]interface{}) (callArgs map[string]interface{}, strategyName, engine string) {
	callArgs = make(map[string]interface{}, len(args))
	for k, v := range args {
		switch k {
		case "_strategy":
			if s, ok := v.(string); ok {
				strategyName = s
			}
		case "_engine_type":
			if s, ok := v.(string); ok {
				engine = s
			}
		default:
			callArgs[k] = v
		}
	}
	return callArgs, strategyName, engine
}

// RegisterStrategy adds or replaces a named strategy, extending the five
// built-ins.
func (r *Registry) RegisterStrategy(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies.register(s)
}

// RegisterScanSource records a provider function for a component/engine
// pair so a later Refresh() call can re-invoke it. provide returns the
// registrations that component/engine currently exposes; a plain
// callback suffices since domain methods are ordinary functions, not a
// reflective plug-in interface.
func (r *Registry) RegisterScanSource(component, engine string, provide func() []Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanners = append(r.scanners, scanEntry{component: component, engine: engine, provide: provide})
}

// Refresh clears the index and re-scans every registered scan source,
// firing after_registry_refresh once complete. Scan sources whose component
// appears in the ORCH_DISABLE_PLUGINS list (or the .pipeline_disable_plugins
// file) are skipped, so a disabled plug-in's methods vanish on the next
// refresh without touching direct Register calls.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.idx = newIndex()
	r.seq = 0
	scanners := append([]scanEntry(nil), r.scanners...)
	r.mu.Unlock()

	disabled := methodcall.DisabledPlugins()

	for _, s := range scanners {
		if disabled[s.component] {
			continue
		}
		for _, reg := range s.provide() {
			if err := r.Register(ctx, reg); err != nil {
				return err
			}
		}
	}

	r.mu.RLock()
	notifier := r.notifier
	r.mu.RUnlock()
	notifier.Notify(ctx, "after_registry_refresh", nil)
	return nil
}
